package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/id"
)

// ValidationError describes one inconsistency found in an account history.
type ValidationError struct {
	Rule        string
	Token       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.Token, e.Description)
}

// Verify checks a complete account history, in any order, starting from a
// zero balance:
//   - tokens parse and match their sequence numbers, without duplicates,
//   - sequence numbers run 1..N without gaps,
//   - each resulting balance equals the previous one plus the record's delta,
//   - no resulting balance is negative.
func Verify(records []Record) []ValidationError {
	var errs []ValidationError

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	seen := make(map[string]bool)
	for _, rec := range sorted {
		seq, err := id.ParseTxToken(rec.Token)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{Rule: "token", Token: rec.Token, Description: err.Error()})
		case seq != rec.Seq:
			errs = append(errs, ValidationError{
				Rule:        "token",
				Token:       rec.Token,
				Description: fmt.Sprintf("token does not match sequence %d", rec.Seq),
			})
		}
		if seen[rec.Token] {
			errs = append(errs, ValidationError{Rule: "unique", Token: rec.Token, Description: "duplicate token"})
		}
		seen[rec.Token] = true
	}

	for i, rec := range sorted {
		if want := i + 1; rec.Seq != want {
			errs = append(errs, ValidationError{
				Rule:        "sequence",
				Token:       rec.Token,
				Description: fmt.Sprintf("expected sequence %d, got %d", want, rec.Seq),
			})
			break
		}
	}

	balance := amount.Zero
	for _, rec := range sorted {
		want := amount.Add(balance, rec.Delta())
		if !want.Equal(rec.Balance) {
			errs = append(errs, ValidationError{
				Rule:  "balance",
				Token: rec.Token,
				Description: fmt.Sprintf("balance %s, expected %s after %s %s",
					amount.Text(rec.Balance), amount.Text(want), rec.Kind.Name(), amount.Text(rec.Amount)),
			})
		}
		if rec.Balance.IsNegative() {
			errs = append(errs, ValidationError{
				Rule:        "negative",
				Token:       rec.Token,
				Description: fmt.Sprintf("balance %s is negative", amount.Text(rec.Balance)),
			})
		}
		balance = rec.Balance
	}

	return errs
}

// VerifyAccount runs Verify over the committed history of accountID and also
// checks that the account row agrees with its latest record.
func (l *Ledger) VerifyAccount(ctx context.Context, accountID string) ([]ValidationError, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	records, err := l.AllTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	errs := Verify(records)

	row := a.Snapshot()
	if a.Pending() > 0 {
		return errs, nil
	}
	if row.Seq != len(records) {
		errs = append(errs, ValidationError{
			Rule:        "account",
			Token:       accountID,
			Description: fmt.Sprintf("last sequence %d but %d records", row.Seq, len(records)),
		})
	}
	if len(records) > 0 && !records[0].Balance.Equal(row.Balance) {
		errs = append(errs, ValidationError{
			Rule:  "account",
			Token: accountID,
			Description: fmt.Sprintf("balance %s but latest record shows %s",
				amount.Text(row.Balance), amount.Text(records[0].Balance)),
		})
	}
	return errs, nil
}
