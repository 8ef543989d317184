// Package ledger implements accounts, their transaction records and the
// protocol that commits both to a store.Gateway.
//
// A Ledger owns an identity registry: for each account id at most one
// *Account is live at a time, so every caller observes the same balance.
// Mutations on one account are serialized by that account's lock; distinct
// accounts never contend.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/registry"
	"github.com/uledger-dev/uledger/internal/store"
)

// DefaultRegion is used for accounts created without a region.
const DefaultRegion = "US"

// Ledger loads, creates and commits accounts against one gateway.
type Ledger struct {
	gw       store.Gateway
	accounts *registry.Registry[Account]
	log      *slog.Logger
	clock    func() time.Time
	region   string

	createMu sync.Mutex // serializes the uniqueness check of CreateAccount
	// writeMu is held exclusively by commits to gateways that do not batch
	// and by Flush; batched commits share it.
	writeMu sync.RWMutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock replaces time.Now as the source of record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithDefaultRegion sets the region given to accounts created without one.
func WithDefaultRegion(region string) Option {
	return func(l *Ledger) { l.region = region }
}

// New creates a Ledger over gw.
func New(gw store.Gateway, opts ...Option) *Ledger {
	l := &Ledger{
		gw:       gw,
		accounts: registry.New[Account](),
		log:      slog.New(slog.DiscardHandler),
		clock:    time.Now,
		region:   DefaultRegion,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Gateway returns the store the ledger commits to.
func (l *Ledger) Gateway() store.Gateway { return l.gw }

// now truncates to microseconds, the finest resolution every gateway keeps.
func (l *Ledger) now() time.Time {
	return l.clock().UTC().Truncate(time.Microsecond)
}

// NewAccount holds the immutable attributes of an account to create.
type NewAccount struct {
	ID       string
	Name     string // defaults to ID
	WalletID string
	Region   string // defaults to the ledger's default region
}

// CreateAccount persists a new account with a zero balance and returns its
// live handle. It fails with ErrDuplicateIdentifier if the id is already live
// or persisted.
func (l *Ledger) CreateAccount(ctx context.Context, params NewAccount) (*Account, error) {
	if err := id.Validate(params.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountID, err)
	}
	if params.Name == "" {
		params.Name = params.ID
	}
	if params.Region == "" {
		params.Region = l.region
	}

	l.createMu.Lock()
	defer l.createMu.Unlock()

	if _, ok := l.accounts.FindLive(params.ID); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, params.ID)
	}
	_, err := l.gw.GetAccount(ctx, params.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, params.ID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, &PersistenceError{Op: "checking account " + params.ID, Err: err}
	}

	acct := newAccount(l, model.AccountRow{
		ID:       params.ID,
		Name:     params.Name,
		WalletID: params.WalletID,
		Region:   params.Region,
		Balance:  amount.Zero,
	})
	if err := l.commit(ctx, acct.Snapshot(), nil); err != nil {
		return nil, err
	}

	l.log.Info("account created", "account", params.ID, "name", params.Name, "region", params.Region)
	return l.accounts.Register(params.ID, acct), nil
}

// Load returns the live handle for id, hydrating it from the gateway when no
// instance is live. Concurrent loads of the same id return the same handle.
func (l *Ledger) Load(ctx context.Context, accountID string) (*Account, error) {
	return l.accounts.LoadOrStore(accountID, func() (*Account, error) {
		row, err := l.gw.GetAccount(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchAccount, accountID)
		}
		if err != nil {
			return nil, &PersistenceError{Op: "loading account " + accountID, Err: err}
		}
		l.log.Debug("account hydrated", "account", accountID, "seq", row.Seq)
		return newAccount(l, row), nil
	})
}

// Deposit loads accountID and deposits amt into it.
func (l *Ledger) Deposit(ctx context.Context, accountID string, amt decimal.Decimal, description ...string) (Record, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	return a.Deposit(ctx, amt, description...)
}

// Withdraw loads accountID and withdraws amt from it.
func (l *Ledger) Withdraw(ctx context.Context, accountID string, amt decimal.Decimal, description ...string) (Record, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	return a.Withdraw(ctx, amt, description...)
}

// Balance returns the current balance of accountID.
func (l *Ledger) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return a.Balance(), nil
}

// PastTransactions returns up to n committed records of accountID, newest
// first.
func (l *Ledger) PastTransactions(ctx context.Context, accountID string, n int) ([]Record, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.PastTransactions(ctx, n)
}

// Flush wipes every account and transaction from the gateway and forgets all
// live handles. Commits already in progress finish before the wipe. Handles
// held by callers must not be used afterwards.
func (l *Ledger) Flush(ctx context.Context) error {
	f, ok := l.gw.(store.Flusher)
	if !ok {
		return ErrFlushUnsupported
	}

	l.createMu.Lock()
	defer l.createMu.Unlock()
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := f.Flush(ctx); err != nil {
		return &PersistenceError{Op: "flushing store", Err: err}
	}
	l.accounts.Forget()
	l.log.Warn("store flushed")
	return nil
}
