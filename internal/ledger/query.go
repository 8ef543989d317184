package ledger

import (
	"context"

	"github.com/uledger-dev/uledger/internal/store"
)

// history reads up to n committed records, newest first. Records sharing a
// timestamp are ordered by sequence descending whatever order the gateway
// returned them in.
func (l *Ledger) history(ctx context.Context, accountID, name, region string, n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}
	rows, err := l.gw.GetTransactions(ctx, accountID, n)
	if err != nil {
		return nil, &PersistenceError{Op: "reading transactions of " + accountID, Err: err}
	}
	store.SortNewestFirst(rows)
	rows = store.Limit(rows, n)

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = recordFromRow(row, name, region)
	}
	return out, nil
}

// AllTransactions returns every committed record of accountID, newest first.
func (l *Ledger) AllTransactions(ctx context.Context, accountID string) ([]Record, error) {
	a, err := l.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rows, err := l.gw.GetTransactions(ctx, accountID, 0)
	if err != nil {
		return nil, &PersistenceError{Op: "reading transactions of " + accountID, Err: err}
	}
	store.SortNewestFirst(rows)

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = recordFromRow(row, a.name, a.region)
	}
	return out, nil
}
