package ledger

import (
	"context"

	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

// commit makes account and txs durable as one unit. Batching gateways write
// them in a single storage transaction; otherwise records go first and the
// account row last, so a reader never sees a sequence number ahead of its
// records.
func (l *Ledger) commit(ctx context.Context, account model.AccountRow, txs []model.TransactionRow) error {
	if b, ok := l.gw.(store.Batcher); ok {
		l.writeMu.RLock()
		defer l.writeMu.RUnlock()
		if err := b.Commit(ctx, account, txs); err != nil {
			l.log.Warn("commit failed", "account", account.ID, "seq", account.Seq, "error", err)
			return &PersistenceError{Op: "committing account " + account.ID, Err: err}
		}
		l.log.Debug("committed", "account", account.ID, "seq", account.Seq, "records", len(txs))
		return nil
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	for _, tx := range txs {
		if err := l.gw.PutTransaction(ctx, tx); err != nil {
			l.log.Warn("commit failed", "account", account.ID, "token", tx.Token, "error", err)
			return &PersistenceError{Op: "writing transaction " + account.ID + "/" + tx.Token, Err: err}
		}
	}
	if err := l.gw.PutAccount(ctx, account); err != nil {
		l.log.Warn("commit failed", "account", account.ID, "seq", account.Seq, "error", err)
		return &PersistenceError{Op: "writing account " + account.ID, Err: err}
	}
	l.log.Debug("committed", "account", account.ID, "seq", account.Seq, "records", len(txs))
	return nil
}
