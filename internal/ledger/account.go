package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/currency"
	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/model"
)

// Account is the single live in-memory representative of one persisted
// account. Obtain one from Ledger.CreateAccount or Ledger.Load; never copy it.
type Account struct {
	id       string
	name     string
	walletID string
	region   string
	ledger   *Ledger

	mu       sync.Mutex
	balance  decimal.Decimal
	seq      int
	lastTime time.Time
	pending  []Record // applied in memory, not yet durable
}

func newAccount(l *Ledger, row model.AccountRow) *Account {
	return &Account{
		id:       row.ID,
		name:     row.Name,
		walletID: row.WalletID,
		region:   row.Region,
		ledger:   l,
		balance:  row.Balance,
		seq:      row.Seq,
	}
}

func (a *Account) ID() string       { return a.id }
func (a *Account) Name() string     { return a.name }
func (a *Account) WalletID() string { return a.walletID }
func (a *Account) Region() string   { return a.region }

// Balance returns the current balance, including mutations whose commit
// failed and is awaiting retry.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// FormattedBalance renders the balance in the account's currency.
func (a *Account) FormattedBalance() string {
	return currency.Format(a.region, a.Balance())
}

// LastSeq returns the sequence number of the latest transaction.
func (a *Account) LastSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq
}

// Pending returns the number of records whose commit has not succeeded.
func (a *Account) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Snapshot returns the account's current state as a persistable row.
func (a *Account) Snapshot() model.AccountRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Account) snapshot() model.AccountRow {
	return model.AccountRow{
		ID:       a.id,
		Name:     a.name,
		WalletID: a.walletID,
		Region:   a.region,
		Seq:      a.seq,
		Balance:  a.balance,
	}
}

func (a *Account) String() string {
	return fmt.Sprintf("%s|%s : %s", a.id, a.name, a.FormattedBalance())
}

// Deposit adds amt to the balance and commits the resulting record. A zero
// amount is recorded like any other.
func (a *Account) Deposit(ctx context.Context, amt decimal.Decimal, description ...string) (Record, error) {
	return a.mutate(ctx, model.Deposit, amt, description)
}

// Withdraw subtracts amt from the balance and commits the resulting record.
// If the balance would go negative nothing changes, no sequence number is
// consumed and the error is an *InsufficientFundsError.
func (a *Account) Withdraw(ctx context.Context, amt decimal.Decimal, description ...string) (Record, error) {
	return a.mutate(ctx, model.Withdrawal, amt, description)
}

func (a *Account) mutate(ctx context.Context, kind model.Kind, amt decimal.Decimal, description []string) (Record, error) {
	if amt.IsNegative() {
		return Record{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amount.Text(amt))
	}
	desc, err := describe(description)
	if err != nil {
		return Record{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := kind.Apply(a.balance, amt)
	if kind == model.Withdrawal && next.IsNegative() {
		return Record{}, &InsufficientFundsError{
			Account: a.name,
			Balance: currency.Format(a.region, a.balance),
		}
	}

	// Timestamps never run backwards within one account.
	now := a.ledger.now()
	if now.Before(a.lastTime) {
		now = a.lastTime
	}

	a.seq++
	rec := Record{
		AccountID:   a.id,
		AccountName: a.name,
		Region:      a.region,
		Token:       id.FormatTxToken(a.seq),
		Seq:         a.seq,
		Time:        now,
		Kind:        kind,
		Amount:      amt,
		Balance:     next,
		Description: desc,
	}
	a.balance = next
	a.lastTime = now
	a.pending = append(a.pending, rec)

	if err := a.commit(ctx); err != nil {
		return rec, err
	}
	return rec, nil
}

// Commit writes the account row and any records left pending by a failed
// commit. Retry a *PersistenceError with Commit, never by repeating the
// deposit or withdrawal.
func (a *Account) Commit(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commit(ctx)
}

func (a *Account) commit(ctx context.Context) error {
	rows := make([]model.TransactionRow, len(a.pending))
	for i, rec := range a.pending {
		rows[i] = rec.row()
	}
	if err := a.ledger.commit(ctx, a.snapshot(), rows); err != nil {
		return err
	}
	a.pending = nil
	return nil
}

// PastTransactions returns up to n committed records, newest first.
func (a *Account) PastTransactions(ctx context.Context, n int) ([]Record, error) {
	return a.ledger.history(ctx, a.id, a.name, a.region, n)
}
