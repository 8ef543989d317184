// Package storetest holds a conformance suite every store.Gateway
// implementation runs from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

// Base is a fixed, microsecond aligned instant so every backend round-trips it.
var Base = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// Tx builds a transaction row for accountID with sequence seq.
func Tx(accountID string, seq int, at time.Time, kind model.Kind, amt, bal string) model.TransactionRow {
	return model.TransactionRow{
		AccountID:   accountID,
		Token:       id.FormatTxToken(seq),
		Seq:         seq,
		Time:        at,
		Kind:        kind,
		Amount:      amount.MustParse(amt),
		Balance:     amount.MustParse(bal),
		Description: "N/A",
	}
}

// Run exercises the Gateway contract. newGateway must return an empty store.
func Run(t *testing.T, newGateway func(t *testing.T) store.Gateway) {
	t.Run("AccountNotFound", func(t *testing.T) {
		g := newGateway(t)
		_, err := g.GetAccount(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("AccountRoundTrip", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		row := model.AccountRow{
			ID:       "A",
			Name:     "savings",
			WalletID: "w1",
			Region:   "US",
			Seq:      2,
			Balance:  amount.MustParse("1000000000000000000010.21"),
		}
		require.NoError(t, g.PutAccount(ctx, row))

		got, err := g.GetAccount(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, row.ID, got.ID)
		assert.Equal(t, row.Name, got.Name)
		assert.Equal(t, row.WalletID, got.WalletID)
		assert.Equal(t, row.Region, got.Region)
		assert.Equal(t, row.Seq, got.Seq)
		assert.Equal(t, "1000000000000000000010.21", amount.Text(got.Balance))
	})

	t.Run("AccountUpsert", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		row := model.AccountRow{ID: "A", Name: "n", Region: "US", Balance: amount.Zero}
		require.NoError(t, g.PutAccount(ctx, row))
		assert.Equal(t, "0.00", mustAccount(t, g, "A").Balance.StringFixed(2))

		row.Seq = 1
		row.Balance = amount.MustParse("5.00")
		require.NoError(t, g.PutAccount(ctx, row))

		got := mustAccount(t, g, "A")
		assert.Equal(t, 1, got.Seq)
		assert.Equal(t, "5.00", amount.Text(got.Balance))
	})

	t.Run("TransactionsNewestFirst", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "A", Name: "n", Region: "US", Balance: amount.Zero}))
		for i := 1; i <= 5; i++ {
			row := Tx("A", i, Base.Add(time.Duration(i)*time.Second), model.Deposit, "1", "0")
			require.NoError(t, g.PutTransaction(ctx, row))
		}

		rows, err := g.GetTransactions(ctx, "A", 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"TX5", "TX4", "TX3"}, tokens(rows))

		all, err := g.GetTransactions(ctx, "A", 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("TransactionTieBreak", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "A", Name: "n", Region: "US", Balance: amount.Zero}))
		for i := 1; i <= 3; i++ {
			require.NoError(t, g.PutTransaction(ctx, Tx("A", i, Base, model.Deposit, "1", "0")))
		}

		rows, err := g.GetTransactions(ctx, "A", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"TX3", "TX2", "TX1"}, tokens(rows))
	})

	t.Run("TransactionIdempotentUpsert", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "A", Name: "n", Region: "US", Balance: amount.Zero}))
		row := Tx("A", 1, Base, model.Withdrawal, "0.3", "99.7")
		require.NoError(t, g.PutTransaction(ctx, row))
		require.NoError(t, g.PutTransaction(ctx, row))

		rows, err := g.GetTransactions(ctx, "A", 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		got := rows[0]
		assert.Equal(t, model.Withdrawal, got.Kind)
		assert.Equal(t, "0.3", amount.Text(got.Amount))
		assert.Equal(t, "99.7", amount.Text(got.Balance))
		assert.Equal(t, "N/A", got.Description)
		assert.True(t, Base.Equal(got.Time), "time %s", got.Time)
	})

	t.Run("TransactionsPerAccount", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		for _, acct := range []string{"A", "B"} {
			require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: acct, Name: acct, Region: "US", Balance: amount.Zero}))
		}
		require.NoError(t, g.PutTransaction(ctx, Tx("A", 1, Base, model.Deposit, "1", "1")))
		require.NoError(t, g.PutTransaction(ctx, Tx("B", 1, Base, model.Deposit, "2", "2")))

		rows, err := g.GetTransactions(ctx, "B", 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "2", amount.Text(rows[0].Amount))

		rows, err = g.GetTransactions(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Batch", func(t *testing.T) {
		g := newGateway(t)
		b, ok := g.(store.Batcher)
		if !ok {
			t.Skip("gateway does not batch")
		}
		ctx := context.Background()
		acct := model.AccountRow{ID: "A", Name: "n", Region: "US", Seq: 2, Balance: amount.MustParse("3")}
		txs := []model.TransactionRow{
			Tx("A", 1, Base, model.Deposit, "1", "1"),
			Tx("A", 2, Base.Add(time.Second), model.Deposit, "2", "3"),
		}
		require.NoError(t, b.Commit(ctx, acct, txs))
		require.NoError(t, b.Commit(ctx, acct, txs))

		assert.Equal(t, 2, mustAccount(t, g, "A").Seq)
		rows, err := g.GetTransactions(ctx, "A", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"TX2", "TX1"}, tokens(rows))
	})

	t.Run("Flush", func(t *testing.T) {
		g := newGateway(t)
		f, ok := g.(store.Flusher)
		if !ok {
			t.Skip("gateway does not flush")
		}
		ctx := context.Background()
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "A", Name: "n", Region: "US", Balance: amount.Zero}))
		require.NoError(t, g.PutTransaction(ctx, Tx("A", 1, Base, model.Deposit, "1", "1")))
		require.NoError(t, f.Flush(ctx))

		_, err := g.GetAccount(ctx, "A")
		assert.ErrorIs(t, err, store.ErrNotFound)
		rows, err := g.GetTransactions(ctx, "A", 0)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Wallets", func(t *testing.T) {
		g := newGateway(t)
		ws, ok := g.(store.WalletStore)
		if !ok {
			t.Skip("gateway does not store wallets")
		}
		ctx := context.Background()
		_, err := ws.GetWallet(ctx, "w1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, ws.PutWallet(ctx, model.WalletRow{ID: "w1", Region: "GB"}))
		w, err := ws.GetWallet(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, "GB", w.Region)

		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "w1ACC2", Name: "b", WalletID: "w1", Region: "GB", Balance: amount.Zero}))
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "w1ACC1", Name: "a", WalletID: "w1", Region: "GB", Balance: amount.Zero}))
		require.NoError(t, g.PutAccount(ctx, model.AccountRow{ID: "other", Name: "c", WalletID: "w2", Region: "GB", Balance: amount.Zero}))

		rows, err := ws.AccountsByWallet(ctx, "w1")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "w1ACC1", rows[0].ID)
		assert.Equal(t, "w1ACC2", rows[1].ID)
	})
}

func mustAccount(t *testing.T, g store.Gateway, accountID string) model.AccountRow {
	t.Helper()
	row, err := g.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return row
}

func tokens(rows []model.TransactionRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Token
	}
	return out
}
