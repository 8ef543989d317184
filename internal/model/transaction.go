package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a ledger transaction.
type Kind string

const (
	Deposit    Kind = "DR"
	Withdrawal Kind = "CR"
)

// ParseKind accepts a symbol ("DR", "CR") or a name ("deposit", "withdrawal").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "DR", "deposit":
		return Deposit, nil
	case "CR", "withdrawal":
		return Withdrawal, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// Symbol returns the stored tag of the kind.
func (k Kind) Symbol() string { return string(k) }

// Name returns the human readable kind.
func (k Kind) Name() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdrawal:
		return "withdrawal"
	}
	return "unknown"
}

// Apply returns the balance after a transaction of magnitude amt.
func (k Kind) Apply(balance, amt decimal.Decimal) decimal.Decimal {
	if k == Withdrawal {
		return balance.Sub(amt)
	}
	return balance.Add(amt)
}

// Signed returns amt with the sign of the kind's effect on the balance.
func (k Kind) Signed(amt decimal.Decimal) decimal.Decimal {
	if k == Withdrawal {
		return amt.Neg()
	}
	return amt
}

// TransactionRow is the persisted form of one transaction record. Rows are
// keyed by (AccountID, Token).
type TransactionRow struct {
	AccountID   string
	Token       string // "TX" + Seq
	Seq         int
	Time        time.Time
	Kind        Kind
	Amount      decimal.Decimal // magnitude, never negative
	Balance     decimal.Decimal // resulting balance
	Description string
}

// BankTransaction is one row of a bank statement, already mapped to the
// ledger operation it becomes.
type BankTransaction struct {
	Date        time.Time
	Description string
	Kind        Kind
	Amount      decimal.Decimal // magnitude, never negative
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, etc.)
}

// Signed returns the amount as the bank reports it: negative for
// withdrawals.
func (t BankTransaction) Signed() decimal.Decimal { return t.Kind.Signed(t.Amount) }
