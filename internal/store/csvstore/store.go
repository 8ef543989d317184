// Package csvstore persists ledger data as CSV files in a directory:
//
//	<dir>/accounts.csv
//	<dir>/wallets.csv
//	<dir>/transactions/<account_id>.csv
//
// Every upsert rewrites the affected file through a temporary file and a
// rename, so a crash never leaves a half written file behind.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

const (
	accountsFile = "accounts.csv"
	walletsFile  = "wallets.csv"
	txDir        = "transactions"
)

// Store is a file backed store.Gateway.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// Open returns a Store rooted at dir, creating the directory layout if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, txDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// GetAccount implements store.Gateway.
func (s *Store) GetAccount(_ context.Context, accountID string) (model.AccountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return model.AccountRow{}, err
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return a, nil
		}
	}
	return model.AccountRow{}, store.ErrNotFound
}

// PutAccount implements store.Gateway.
func (s *Store) PutAccount(_ context.Context, row model.AccountRow) error {
	if err := id.Validate(row.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	replaced := false
	for i := range accounts {
		if accounts[i].ID == row.ID {
			accounts[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		accounts = append(accounts, row)
	}
	return writeFile(filepath.Join(s.dir, accountsFile), func(w io.Writer) error {
		return WriteAccounts(w, accounts)
	})
}

// GetTransactions implements store.Gateway.
func (s *Store) GetTransactions(_ context.Context, accountID string, limit int) ([]model.TransactionRow, error) {
	if err := id.Validate(accountID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	txs, err := s.readTransactions(accountID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	store.SortNewestFirst(txs)
	return store.Limit(txs, limit), nil
}

// PutTransaction implements store.Gateway.
func (s *Store) PutTransaction(_ context.Context, row model.TransactionRow) error {
	if err := id.Validate(row.AccountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.readTransactions(row.AccountID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range txs {
		if txs[i].Token == row.Token {
			txs[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		txs = append(txs, row)
	}
	return writeFile(s.txPath(row.AccountID), func(w io.Writer) error {
		return WriteTransactions(w, txs)
	})
}

// Flush implements store.Flusher.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{accountsFile, walletsFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	if err := os.RemoveAll(filepath.Join(s.dir, txDir)); err != nil {
		return fmt.Errorf("removing transactions: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, txDir), 0o755); err != nil {
		return fmt.Errorf("creating transactions dir: %w", err)
	}
	return nil
}

// GetWallet implements store.WalletStore.
func (s *Store) GetWallet(_ context.Context, walletID string) (model.WalletRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets, err := s.readWallets()
	if err != nil {
		return model.WalletRow{}, err
	}
	for _, w := range wallets {
		if w.ID == walletID {
			return w, nil
		}
	}
	return model.WalletRow{}, store.ErrNotFound
}

// PutWallet implements store.WalletStore.
func (s *Store) PutWallet(_ context.Context, row model.WalletRow) error {
	if err := id.Validate(row.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, err := s.readWallets()
	if err != nil {
		return err
	}
	replaced := false
	for i := range wallets {
		if wallets[i].ID == row.ID {
			wallets[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		wallets = append(wallets, row)
	}
	return writeFile(filepath.Join(s.dir, walletsFile), func(w io.Writer) error {
		return WriteWallets(w, wallets)
	})
}

// AccountsByWallet implements store.WalletStore. Rows are ordered by id.
func (s *Store) AccountsByWallet(_ context.Context, walletID string) ([]model.AccountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return nil, err
	}
	var rows []model.AccountRow
	for _, a := range accounts {
		if a.WalletID == walletID {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *Store) txPath(accountID string) string {
	return filepath.Join(s.dir, txDir, accountID+".csv")
}

func (s *Store) readAccounts() ([]model.AccountRow, error) {
	var rows []model.AccountRow
	err := readFile(filepath.Join(s.dir, accountsFile), func(r io.Reader) (err error) {
		rows, err = ReadAccounts(r)
		return err
	})
	return rows, err
}

func (s *Store) readTransactions(accountID string) ([]model.TransactionRow, error) {
	var rows []model.TransactionRow
	err := readFile(s.txPath(accountID), func(r io.Reader) (err error) {
		rows, err = ReadTransactions(r, accountID)
		return err
	})
	return rows, err
}

func (s *Store) readWallets() ([]model.WalletRow, error) {
	var rows []model.WalletRow
	err := readFile(filepath.Join(s.dir, walletsFile), func(r io.Reader) (err error) {
		rows, err = ReadWallets(r)
		return err
	})
	return rows, err
}

// readFile calls read with the opened file; a missing file reads as empty.
func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := read(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// writeFile writes path through a temporary file and an atomic rename.
func writeFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
