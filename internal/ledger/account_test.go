package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

func TestDeposit_NoFloatDrift(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")

	f1, err := amount.FromFloat(0.1)
	require.NoError(t, err)
	f2, err := amount.FromFloat(0.2)
	require.NoError(t, err)

	_, err = a.Deposit(ctx, f1)
	require.NoError(t, err)
	_, err = a.Deposit(ctx, f2)
	require.NoError(t, err)

	assert.True(t, a.Balance().Equal(amount.MustParse("0.3")), "balance %s", a.Balance())
	assert.Equal(t, "$0.30", a.FormattedBalance())
}

func TestDeposit_ThirdsRoundForDisplay(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	third, err := amount.FromFloat(1.0 / 3)
	require.NoError(t, err)

	for range 3 {
		_, err := a.Deposit(ctx, third)
		require.NoError(t, err)
	}
	assert.Equal(t, "$1.00", a.FormattedBalance())
}

func TestDeposit_UnboundedMagnitude(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	assert.Equal(t, "0.00", amount.Text(a.Balance()))

	_, err := a.Deposit(ctx, amount.MustParse("1000000000000000000000.00"))
	require.NoError(t, err)
	_, err = a.Deposit(ctx, amount.MustParse("10.21"))
	require.NoError(t, err)

	assert.Equal(t, "1000000000000000000010.21", amount.Text(a.Balance()))
	assert.Equal(t, "$1,000,000,000,000,000,000,010.21", a.FormattedBalance())
}

func TestDeposit_RecordsAndCommits(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	a := mustCreate(t, newTestLedger(t, gw), "A")

	rec, err := a.Deposit(ctx, amount.MustParse("25.50"), "paycheque")
	require.NoError(t, err)
	assert.Equal(t, "TX1", rec.Token)
	assert.Equal(t, 1, rec.Seq)
	assert.Equal(t, model.Deposit, rec.Kind)
	assert.Equal(t, "25.50", amount.Text(rec.Balance))
	assert.Equal(t, "paycheque", rec.Description)
	assert.Equal(t, 0, a.Pending())

	row, err := gw.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Seq)
	assert.Equal(t, "25.50", amount.Text(row.Balance))
}

func TestDeposit_ZeroIsRecorded(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")

	rec, err := a.Deposit(ctx, amount.MustParse("0"))
	require.NoError(t, err)
	assert.Equal(t, "TX1", rec.Token)
	assert.Equal(t, 1, a.LastSeq())
	assert.Equal(t, DefaultDescription, rec.Description)
}

func TestDeposit_Rejections(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")

	_, err := a.Deposit(ctx, amount.MustParse("-1"))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = a.Deposit(ctx, amount.MustParse("1"), strings.Repeat("x", MaxDescriptionLen+1))
	assert.ErrorIs(t, err, ErrDescriptionTooLong)

	_, err = a.Deposit(ctx, amount.MustParse("1"), strings.Repeat("é", MaxDescriptionLen))
	assert.NoError(t, err)
	assert.Equal(t, 1, a.LastSeq())
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	_, err := a.Deposit(ctx, amount.MustParse("1"))
	require.NoError(t, err)

	rec, err := a.Withdraw(ctx, amount.MustParse("0.3"))
	require.NoError(t, err)
	assert.Equal(t, model.Withdrawal, rec.Kind)
	assert.True(t, rec.Delta().Equal(amount.MustParse("-0.3")))
	assert.Equal(t, "$0.70", a.FormattedBalance())
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	a := mustCreate(t, newTestLedger(t, gw), "A")
	_, err := a.Deposit(ctx, amount.MustParse("0.25"))
	require.NoError(t, err)

	_, err = a.Withdraw(ctx, amount.MustParse("0.3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var ife *InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, "chequing", ife.Account)
	assert.Equal(t, "$0.25", ife.Balance)
	assert.Equal(t, "chequing only has $0.25", err.Error())

	// Nothing changed: no balance move, no sequence number, no record.
	assert.Equal(t, "0.25", amount.Text(a.Balance()))
	assert.Equal(t, 1, a.LastSeq())
	rows, err := gw.GetTransactions(ctx, "A", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rec, err := a.Deposit(ctx, amount.MustParse("1"))
	require.NoError(t, err)
	assert.Equal(t, "TX2", rec.Token)
}

func TestWithdraw_FromEmptyAccount(t *testing.T) {
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	_, err := a.Withdraw(context.Background(), amount.MustParse("0.3"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, a.LastSeq())
}

func TestWithdraw_ParallelOnlyOneFits(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	_, err := a.Deposit(ctx, amount.MustParse("0.5"))
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = a.Withdraw(ctx, amount.MustParse("0.3"))
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.True(t, a.Balance().Equal(amount.MustParse("0.2")))
	assert.Equal(t, 2, a.LastSeq())
}

func TestWithdraw_ParallelSerialized(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	a := mustCreate(t, newTestLedger(t, gw), "A")
	_, err := a.Deposit(ctx, amount.MustParse("100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Withdraw(ctx, amount.MustParse("0.3"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, a.Balance().Equal(amount.MustParse("70")), "balance %s", a.Balance())
	assert.Equal(t, 101, a.LastSeq())

	rows, err := gw.GetTransactions(ctx, "A", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 101)
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = recordFromRow(row, a.Name(), a.Region())
	}
	assert.Empty(t, Verify(records))
}

func TestCommit_FailureKeepsMutationAndRetries(t *testing.T) {
	ctx := context.Background()
	gw := newFlakyGateway()
	a := mustCreate(t, newTestLedger(t, gw), "A")

	gw.down.Store(true)
	_, err := a.Deposit(ctx, amount.MustParse("10"))
	require.Error(t, err)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, errStoreDown)

	// In-memory state is kept; nothing durable yet.
	assert.Equal(t, "10.00", amount.Text(a.Balance()))
	assert.Equal(t, 1, a.Pending())
	row, err := gw.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, row.Seq)

	gw.down.Store(false)
	require.NoError(t, a.Commit(ctx))
	assert.Equal(t, 0, a.Pending())
	require.NoError(t, a.Commit(ctx))
	assert.Equal(t, 1, gw.writes("TX1"))

	row, err = gw.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Seq)
	assert.Equal(t, "10.00", amount.Text(row.Balance))

	records, err := a.PastTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TX1", records[0].Token)
}

func TestCommit_PendingFlushedByNextMutation(t *testing.T) {
	ctx := context.Background()
	gw := newFlakyGateway()
	a := mustCreate(t, newTestLedger(t, gw), "A")

	gw.down.Store(true)
	_, err := a.Deposit(ctx, amount.MustParse("10"))
	require.Error(t, err)
	gw.down.Store(false)

	_, err = a.Deposit(ctx, amount.MustParse("5"))
	require.NoError(t, err)

	records, err := a.PastTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TX2", records[0].Token)
	assert.Equal(t, "15.00", amount.Text(records[0].Balance))
	assert.Equal(t, "TX1", records[1].Token)
}

func TestPastTransactions(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")

	records, err := a.PastTransactions(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	for _, s := range []string{"1", "2", "3"} {
		_, err := a.Deposit(ctx, amount.MustParse(s))
		require.NoError(t, err)
	}
	_, err = a.Withdraw(ctx, amount.MustParse("4"))
	require.NoError(t, err)

	records, err = a.PastTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 4)
	tokens := []string{records[0].Token, records[1].Token, records[2].Token, records[3].Token}
	assert.Equal(t, []string{"TX4", "TX3", "TX2", "TX1"}, tokens)
	assert.Equal(t, "2.00", amount.Text(records[0].Balance))
	for i := 0; i < len(records)-1; i++ {
		assert.False(t, records[i].Time.Before(records[i+1].Time))
	}

	records, err = a.PastTransactions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TX4", records[0].Token)

	records, err = a.PastTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPastTransactions_EqualTimestampsTieBreak(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), WithClock(func() time.Time { return base }))
	a := mustCreate(t, l, "A")

	for range 3 {
		_, err := a.Deposit(ctx, amount.MustParse("1"))
		require.NoError(t, err)
	}
	records, err := a.PastTransactions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "TX3", records[0].Token)
	assert.Equal(t, "TX2", records[1].Token)
	assert.Equal(t, "TX1", records[2].Token)
}

func TestRecordString(t *testing.T) {
	ctx := context.Background()
	a := mustCreate(t, newTestLedger(t, store.NewMemory()), "A")
	rec, err := a.Deposit(ctx, amount.MustParse("1"))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-01 09:00:00 | TX1 | account:chequing | DR | $1.00 | Ending Balance: $1.00 | N/A", rec.String())
	assert.Equal(t, "A|chequing : $1.00", a.String())
}
