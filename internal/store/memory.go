package store

import (
	"context"
	"sort"
	"sync"

	"github.com/uledger-dev/uledger/internal/model"
)

// Memory is a Gateway held entirely in process memory.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]model.AccountRow
	txs      map[string]map[string]model.TransactionRow // account id -> token -> row
	wallets  map[string]model.WalletRow
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]model.AccountRow),
		txs:      make(map[string]map[string]model.TransactionRow),
		wallets:  make(map[string]model.WalletRow),
	}
}

// GetAccount implements Gateway.
func (m *Memory) GetAccount(_ context.Context, id string) (model.AccountRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.accounts[id]
	if !ok {
		return model.AccountRow{}, ErrNotFound
	}
	return row, nil
}

// PutAccount implements Gateway.
func (m *Memory) PutAccount(_ context.Context, row model.AccountRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[row.ID] = row
	return nil
}

// GetTransactions implements Gateway.
func (m *Memory) GetTransactions(_ context.Context, accountID string, limit int) ([]model.TransactionRow, error) {
	m.mu.RLock()
	rows := make([]model.TransactionRow, 0, len(m.txs[accountID]))
	for _, row := range m.txs[accountID] {
		rows = append(rows, row)
	}
	m.mu.RUnlock()

	SortNewestFirst(rows)
	return Limit(rows, limit), nil
}

// PutTransaction implements Gateway.
func (m *Memory) PutTransaction(_ context.Context, row model.TransactionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putTransaction(row)
	return nil
}

func (m *Memory) putTransaction(row model.TransactionRow) {
	byToken, ok := m.txs[row.AccountID]
	if !ok {
		byToken = make(map[string]model.TransactionRow)
		m.txs[row.AccountID] = byToken
	}
	byToken[row.Token] = row
}

// Commit implements Batcher.
func (m *Memory) Commit(_ context.Context, account model.AccountRow, txs []model.TransactionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.putTransaction(tx)
	}
	m.accounts[account.ID] = account
	return nil
}

// Flush implements Flusher.
func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]model.AccountRow)
	m.txs = make(map[string]map[string]model.TransactionRow)
	m.wallets = make(map[string]model.WalletRow)
	return nil
}

// GetWallet implements WalletStore.
func (m *Memory) GetWallet(_ context.Context, id string) (model.WalletRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.wallets[id]
	if !ok {
		return model.WalletRow{}, ErrNotFound
	}
	return row, nil
}

// PutWallet implements WalletStore.
func (m *Memory) PutWallet(_ context.Context, row model.WalletRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[row.ID] = row
	return nil
}

// AccountsByWallet implements WalletStore. Rows are ordered by id.
func (m *Memory) AccountsByWallet(_ context.Context, walletID string) ([]model.AccountRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []model.AccountRow
	for _, row := range m.accounts {
		if row.WalletID == walletID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}
