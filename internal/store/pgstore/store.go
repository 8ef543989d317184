// Package pgstore is a PostgreSQL store.Gateway built on pgx. Every query is
// parameterized; no caller supplied value is ever spliced into SQL text.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

// Store is a PostgreSQL backed gateway.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const (
	upsertAccount = `
		INSERT INTO accounts (id, name, wallet_id, region, last_seq, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			wallet_id = EXCLUDED.wallet_id,
			region = EXCLUDED.region,
			last_seq = EXCLUDED.last_seq,
			balance = EXCLUDED.balance`

	upsertTransaction = `
		INSERT INTO transactions (account_id, token, seq, created_at, kind, amount, balance, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id, token) DO UPDATE SET
			seq = EXCLUDED.seq,
			created_at = EXCLUDED.created_at,
			kind = EXCLUDED.kind,
			amount = EXCLUDED.amount,
			balance = EXCLUDED.balance,
			description = EXCLUDED.description`

	selectAccount = `SELECT id, name, wallet_id, region, last_seq, balance FROM accounts`
)

// GetAccount implements store.Gateway.
func (s *Store) GetAccount(ctx context.Context, id string) (model.AccountRow, error) {
	row := s.pool.QueryRow(ctx, selectAccount+` WHERE id = $1`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AccountRow{}, store.ErrNotFound
	}
	if err != nil {
		return model.AccountRow{}, fmt.Errorf("getting account %s: %w", id, err)
	}
	return acct, nil
}

// PutAccount implements store.Gateway.
func (s *Store) PutAccount(ctx context.Context, row model.AccountRow) error {
	if _, err := s.pool.Exec(ctx, upsertAccount, accountArgs(row)...); err != nil {
		return fmt.Errorf("putting account %s: %w", row.ID, err)
	}
	return nil
}

// GetTransactions implements store.Gateway.
func (s *Store) GetTransactions(ctx context.Context, accountID string, limit int) ([]model.TransactionRow, error) {
	query := `
		SELECT account_id, token, seq, created_at, kind, amount, balance, description
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, seq DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions of %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []model.TransactionRow
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction of %s: %w", accountID, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions of %s: %w", accountID, err)
	}
	return out, nil
}

// PutTransaction implements store.Gateway.
func (s *Store) PutTransaction(ctx context.Context, row model.TransactionRow) error {
	if _, err := s.pool.Exec(ctx, upsertTransaction, transactionArgs(row)...); err != nil {
		return fmt.Errorf("putting transaction %s/%s: %w", row.AccountID, row.Token, err)
	}
	return nil
}

// Commit implements store.Batcher: the account row and its transactions are
// written in one database transaction.
func (s *Store) Commit(ctx context.Context, account model.AccountRow, txs []model.TransactionRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback(ctx)

	// The account row goes first so the transactions' foreign key holds.
	if _, err := tx.Exec(ctx, upsertAccount, accountArgs(account)...); err != nil {
		return fmt.Errorf("putting account %s: %w", account.ID, err)
	}
	for _, row := range txs {
		if _, err := tx.Exec(ctx, upsertTransaction, transactionArgs(row)...); err != nil {
			return fmt.Errorf("putting transaction %s/%s: %w", row.AccountID, row.Token, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Flush implements store.Flusher.
func (s *Store) Flush(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"transactions", "accounts", "wallets"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
				return fmt.Errorf("flushing %s: %w", table, err)
			}
		}
		return nil
	})
}

// GetWallet implements store.WalletStore.
func (s *Store) GetWallet(ctx context.Context, id string) (model.WalletRow, error) {
	var w model.WalletRow
	err := s.pool.QueryRow(ctx, `SELECT id, region FROM wallets WHERE id = $1`, id).Scan(&w.ID, &w.Region)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WalletRow{}, store.ErrNotFound
	}
	if err != nil {
		return model.WalletRow{}, fmt.Errorf("getting wallet %s: %w", id, err)
	}
	return w, nil
}

// PutWallet implements store.WalletStore.
func (s *Store) PutWallet(ctx context.Context, row model.WalletRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallets (id, region) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET region = EXCLUDED.region`, row.ID, row.Region)
	if err != nil {
		return fmt.Errorf("putting wallet %s: %w", row.ID, err)
	}
	return nil
}

// AccountsByWallet implements store.WalletStore.
func (s *Store) AccountsByWallet(ctx context.Context, walletID string) ([]model.AccountRow, error) {
	rows, err := s.pool.Query(ctx, selectAccount+` WHERE wallet_id = $1 ORDER BY id`, walletID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts of wallet %s: %w", walletID, err)
	}
	defer rows.Close()

	var out []model.AccountRow
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account of wallet %s: %w", walletID, err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func accountArgs(row model.AccountRow) []any {
	return []any{row.ID, row.Name, row.WalletID, row.Region, row.Seq, amount.Text(row.Balance)}
}

func transactionArgs(row model.TransactionRow) []any {
	return []any{
		row.AccountID, row.Token, row.Seq, row.Time.UTC(), row.Kind.Symbol(),
		amount.Text(row.Amount), amount.Text(row.Balance), row.Description,
	}
}

func scanAccount(row pgx.Row) (model.AccountRow, error) {
	var (
		acct    model.AccountRow
		balance string
	)
	if err := row.Scan(&acct.ID, &acct.Name, &acct.WalletID, &acct.Region, &acct.Seq, &balance); err != nil {
		return model.AccountRow{}, err
	}
	bal, err := amount.Parse(balance)
	if err != nil {
		return model.AccountRow{}, err
	}
	acct.Balance = bal
	return acct, nil
}

func scanTransaction(row pgx.Row) (model.TransactionRow, error) {
	var (
		tx                 model.TransactionRow
		kind, amt, balance string
	)
	err := row.Scan(&tx.AccountID, &tx.Token, &tx.Seq, &tx.Time, &kind, &amt, &balance, &tx.Description)
	if err != nil {
		return model.TransactionRow{}, err
	}
	if tx.Kind, err = model.ParseKind(kind); err != nil {
		return model.TransactionRow{}, err
	}
	if tx.Amount, err = amount.Parse(amt); err != nil {
		return model.TransactionRow{}, err
	}
	if tx.Balance, err = amount.Parse(balance); err != nil {
		return model.TransactionRow{}, err
	}
	tx.Time = tx.Time.UTC()
	return tx, nil
}
