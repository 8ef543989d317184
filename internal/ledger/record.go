package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uledger-dev/uledger/internal/currency"
	"github.com/uledger-dev/uledger/internal/model"
)

// MaxDescriptionLen is the longest description a record accepts.
const MaxDescriptionLen = 50

// DefaultDescription is stored when a mutation carries no description.
const DefaultDescription = "N/A"

// Record is one committed (or pending) balance change. It is immutable.
type Record struct {
	AccountID   string
	AccountName string
	Region      string
	Token       string
	Seq         int
	Time        time.Time
	Kind        model.Kind
	Amount      decimal.Decimal // magnitude
	Balance     decimal.Decimal // after the change
	Description string
}

// Delta returns the signed change the record applied to the balance.
func (r Record) Delta() decimal.Decimal {
	return r.Kind.Signed(r.Amount)
}

func (r Record) String() string {
	return fmt.Sprintf("%s | %s | account:%s | %s | %s | Ending Balance: %s | %s",
		r.Time.Format("2006-01-02 15:04:05"),
		r.Token,
		r.AccountName,
		r.Kind.Symbol(),
		currency.Format(r.Region, r.Amount),
		currency.Format(r.Region, r.Balance),
		r.Description,
	)
}

func (r Record) row() model.TransactionRow {
	return model.TransactionRow{
		AccountID:   r.AccountID,
		Token:       r.Token,
		Seq:         r.Seq,
		Time:        r.Time,
		Kind:        r.Kind,
		Amount:      r.Amount,
		Balance:     r.Balance,
		Description: r.Description,
	}
}

func recordFromRow(row model.TransactionRow, name, region string) Record {
	return Record{
		AccountID:   row.AccountID,
		AccountName: name,
		Region:      region,
		Token:       row.Token,
		Seq:         row.Seq,
		Time:        row.Time,
		Kind:        row.Kind,
		Amount:      row.Amount,
		Balance:     row.Balance,
		Description: row.Description,
	}
}

// describe picks the stored description from the optional argument.
func describe(description []string) (string, error) {
	if len(description) == 0 || description[0] == "" {
		return DefaultDescription, nil
	}
	d := description[0]
	if n := len([]rune(d)); n > MaxDescriptionLen {
		return "", fmt.Errorf("%w: got %d", ErrDescriptionTooLong, n)
	}
	return d, nil
}
