package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

var errStoreDown = errors.New("store down")

// flakyGateway wraps a Memory store without exposing Batcher, so the ledger
// uses its sequential write path. Writes fail while down is set.
type flakyGateway struct {
	mem    *store.Memory
	down   atomic.Bool
	mu     sync.Mutex
	txPuts map[string]int // token -> successful writes
}

func newFlakyGateway() *flakyGateway {
	return &flakyGateway{mem: store.NewMemory(), txPuts: make(map[string]int)}
}

func (g *flakyGateway) GetAccount(ctx context.Context, id string) (model.AccountRow, error) {
	return g.mem.GetAccount(ctx, id)
}

func (g *flakyGateway) PutAccount(ctx context.Context, row model.AccountRow) error {
	if g.down.Load() {
		return errStoreDown
	}
	return g.mem.PutAccount(ctx, row)
}

func (g *flakyGateway) GetTransactions(ctx context.Context, accountID string, limit int) ([]model.TransactionRow, error) {
	return g.mem.GetTransactions(ctx, accountID, limit)
}

func (g *flakyGateway) PutTransaction(ctx context.Context, row model.TransactionRow) error {
	if g.down.Load() {
		return errStoreDown
	}
	g.mu.Lock()
	g.txPuts[row.Token]++
	g.mu.Unlock()
	return g.mem.PutTransaction(ctx, row)
}

func (g *flakyGateway) writes(token string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txPuts[token]
}

// stepClock returns base, base+1s, base+2s, ...
func stepClock(base time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)-1) * time.Second)
	}
}

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, gw store.Gateway) *Ledger {
	t.Helper()
	return New(gw, WithClock(stepClock(base)))
}

func mustCreate(t *testing.T, l *Ledger, accountID string) *Account {
	t.Helper()
	a, err := l.CreateAccount(context.Background(), NewAccount{ID: accountID, Name: "chequing", WalletID: "wallet", Region: "US"})
	require.NoError(t, err)
	return a
}

// gatedGateway is a Memory store whose next GetAccount, once armed, reads the
// row and then holds it until release is closed.
type gatedGateway struct {
	*store.Memory
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newGatedGateway() *gatedGateway {
	return &gatedGateway{
		Memory:  store.NewMemory(),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedGateway) GetAccount(ctx context.Context, id string) (model.AccountRow, error) {
	row, err := g.Memory.GetAccount(ctx, id)
	if g.armed.CompareAndSwap(true, false) {
		close(g.read)
		<-g.release
	}
	return row, err
}

// stallingBatcher is a batching Memory store whose next Commit, once armed,
// waits for release before writing.
type stallingBatcher struct {
	*store.Memory
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newStallingBatcher() *stallingBatcher {
	return &stallingBatcher{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *stallingBatcher) Commit(ctx context.Context, account model.AccountRow, txs []model.TransactionRow) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Commit(ctx, account, txs)
}
