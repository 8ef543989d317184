// Package store defines the persistence gateway the ledger commits to, plus an
// in-memory implementation.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/uledger-dev/uledger/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Gateway is the durable store for accounts and their transactions.
type Gateway interface {
	// GetAccount returns ErrNotFound when no row exists for id.
	GetAccount(ctx context.Context, id string) (model.AccountRow, error)
	// PutAccount upserts by id.
	PutAccount(ctx context.Context, row model.AccountRow) error
	// GetTransactions returns up to limit rows, newest first. A limit <= 0
	// returns every row.
	GetTransactions(ctx context.Context, accountID string, limit int) ([]model.TransactionRow, error)
	// PutTransaction upserts by (AccountID, Token).
	PutTransaction(ctx context.Context, row model.TransactionRow) error
}

// Batcher is implemented by gateways that can write an account and its new
// transactions as one atomic unit.
type Batcher interface {
	Commit(ctx context.Context, account model.AccountRow, txs []model.TransactionRow) error
}

// Flusher is implemented by gateways that support wiping all data.
type Flusher interface {
	Flush(ctx context.Context) error
}

// WalletStore persists wallets and resolves their accounts.
type WalletStore interface {
	GetWallet(ctx context.Context, id string) (model.WalletRow, error)
	PutWallet(ctx context.Context, row model.WalletRow) error
	AccountsByWallet(ctx context.Context, walletID string) ([]model.AccountRow, error)
}

// SortNewestFirst orders rows by time descending. Rows with equal timestamps
// are ordered by sequence descending.
func SortNewestFirst(rows []model.TransactionRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Time.Equal(rows[j].Time) {
			return rows[i].Time.After(rows[j].Time)
		}
		return rows[i].Seq > rows[j].Seq
	})
}

// Limit truncates rows to at most n entries; n <= 0 keeps all.
func Limit(rows []model.TransactionRow, n int) []model.TransactionRow {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
