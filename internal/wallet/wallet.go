// Package wallet groups the accounts of one owner under readable names.
// Every operation resolves a name to an account id and delegates to the
// ledger; a transfer is a withdrawal followed by a deposit, not an atomic
// unit.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/uledger-dev/uledger/internal/currency"
	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/ledger"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

var (
	ErrNoSuchWallet = errors.New("no such wallet")
	ErrWalletExists = errors.New("wallet already exists")
	ErrSameAccount  = errors.New("cannot transfer to the same account")
)

// Wallet maps account names to ledger account ids.
type Wallet struct {
	id     string
	region string
	ledger *ledger.Ledger
	ws     store.WalletStore

	mu       sync.RWMutex
	accounts map[string]string // name -> account id
}

// New creates and persists a wallet. An empty walletID gets a generated one.
func New(ctx context.Context, l *ledger.Ledger, ws store.WalletStore, walletID, region string) (*Wallet, error) {
	if walletID == "" {
		walletID = id.New()
	}
	if err := id.Validate(walletID); err != nil {
		return nil, fmt.Errorf("invalid wallet id: %w", err)
	}
	if region == "" {
		region = ledger.DefaultRegion
	}

	_, err := ws.GetWallet(ctx, walletID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, walletID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("checking wallet %s: %w", walletID, err)
	}

	if err := ws.PutWallet(ctx, model.WalletRow{ID: walletID, Region: region}); err != nil {
		return nil, fmt.Errorf("saving wallet %s: %w", walletID, err)
	}
	return &Wallet{
		id:       walletID,
		region:   region,
		ledger:   l,
		ws:       ws,
		accounts: make(map[string]string),
	}, nil
}

// Load reads a wallet and the names of its accounts.
func Load(ctx context.Context, l *ledger.Ledger, ws store.WalletStore, walletID string) (*Wallet, error) {
	row, err := ws.GetWallet(ctx, walletID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchWallet, walletID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading wallet %s: %w", walletID, err)
	}

	rows, err := ws.AccountsByWallet(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("loading accounts of wallet %s: %w", walletID, err)
	}
	w := &Wallet{
		id:       row.ID,
		region:   row.Region,
		ledger:   l,
		ws:       ws,
		accounts: make(map[string]string, len(rows)),
	}
	for _, acct := range rows {
		w.accounts[acct.Name] = acct.ID
	}
	return w, nil
}

func (w *Wallet) ID() string     { return w.id }
func (w *Wallet) Region() string { return w.region }

// Accounts returns the account names in the wallet, sorted.
func (w *Wallet) Accounts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.accounts))
	for name := range w.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AccountID resolves name to its ledger account id.
func (w *Wallet) AccountID(name string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	accountID, ok := w.accounts[name]
	if !ok {
		return "", fmt.Errorf("%w: wallet %s has no account %q", ledger.ErrNoSuchAccount, w.id, name)
	}
	return accountID, nil
}

// CreateAccount adds a named account in the wallet's region.
func (w *Wallet) CreateAccount(ctx context.Context, name string) (*ledger.Account, error) {
	if name == "" {
		return nil, errors.New("account name must not be empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.accounts[name]; ok {
		return nil, fmt.Errorf("%w: wallet %s already has account %q", ledger.ErrDuplicateIdentifier, w.id, name)
	}
	acct, err := w.ledger.CreateAccount(ctx, ledger.NewAccount{
		ID:       id.FormatWalletAccountID(w.id, len(w.accounts)+1),
		Name:     name,
		WalletID: w.id,
		Region:   w.region,
	})
	if err != nil {
		return nil, err
	}
	w.accounts[name] = acct.ID()
	return acct, nil
}

func (w *Wallet) account(ctx context.Context, name string) (*ledger.Account, error) {
	accountID, err := w.AccountID(name)
	if err != nil {
		return nil, err
	}
	return w.ledger.Load(ctx, accountID)
}

// Deposit deposits amt into the named account.
func (w *Wallet) Deposit(ctx context.Context, name string, amt decimal.Decimal, description ...string) (ledger.Record, error) {
	acct, err := w.account(ctx, name)
	if err != nil {
		return ledger.Record{}, err
	}
	return acct.Deposit(ctx, amt, description...)
}

// Withdraw withdraws amt from the named account.
func (w *Wallet) Withdraw(ctx context.Context, name string, amt decimal.Decimal, description ...string) (ledger.Record, error) {
	acct, err := w.account(ctx, name)
	if err != nil {
		return ledger.Record{}, err
	}
	return acct.Withdraw(ctx, amt, description...)
}

// Transfer withdraws amt from one account and deposits it into another. If
// the withdrawal fails neither account changes. If the deposit fails after a
// successful withdrawal the error says so and nothing is undone.
func (w *Wallet) Transfer(ctx context.Context, amt decimal.Decimal, from, to string) error {
	if from == to {
		return ErrSameAccount
	}
	src, err := w.account(ctx, from)
	if err != nil {
		return err
	}
	dst, err := w.account(ctx, to)
	if err != nil {
		return err
	}

	desc := "transfer to " + to
	if len([]rune(desc)) > ledger.MaxDescriptionLen {
		desc = "transfer"
	}
	if _, err := src.Withdraw(ctx, amt, desc); err != nil {
		return err
	}

	desc = "transfer from " + from
	if len([]rune(desc)) > ledger.MaxDescriptionLen {
		desc = "transfer"
	}
	if _, err := dst.Deposit(ctx, amt, desc); err != nil {
		return fmt.Errorf("withdrew from %s but deposit to %s failed: %w", from, to, err)
	}
	return nil
}

// Balance returns the balance of the named account.
func (w *Wallet) Balance(ctx context.Context, name string) (decimal.Decimal, error) {
	acct, err := w.account(ctx, name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return acct.Balance(), nil
}

// FormattedBalance renders the named account's balance in the wallet's
// currency.
func (w *Wallet) FormattedBalance(ctx context.Context, name string) (string, error) {
	bal, err := w.Balance(ctx, name)
	if err != nil {
		return "", err
	}
	return currency.Format(w.region, bal), nil
}

// PastTransactions returns up to n records of the named account, newest
// first.
func (w *Wallet) PastTransactions(ctx context.Context, name string, n int) ([]ledger.Record, error) {
	acct, err := w.account(ctx, name)
	if err != nil {
		return nil, err
	}
	return acct.PastTransactions(ctx, n)
}
