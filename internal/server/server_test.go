package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/ledger"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

// doJSON sends body as JSON and decodes the response into out when non-nil.
func doJSON(t *testing.T, method, url, token string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantCode, resp.StatusCode, "%s %s", method, url)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func newTestServer(t *testing.T, gw store.Gateway, opts Options) string {
	t.Helper()
	srv := httptest.NewServer(New(ledger.New(gw), opts).Router())
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

func TestHTTPFlow(t *testing.T) {
	var writes atomic.Int32
	audit := auditlog.New(t.TempDir())
	base := newTestServer(t, store.NewMemory(), Options{
		Audit: audit,
		AfterWrite: func(string) error {
			writes.Add(1)
			return nil
		},
	})

	var health map[string]string
	doJSON(t, http.MethodGet, base+"/health", "", nil, http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])

	var acct accountResponse
	doJSON(t, http.MethodPost, base+"/accounts", "", map[string]string{"id": "A", "name": "savings", "region": "US"}, http.StatusCreated, &acct)
	assert.Equal(t, "A", acct.ID)
	assert.Equal(t, "0.00", acct.Balance)
	assert.Equal(t, "$0.00", acct.Formatted)

	doJSON(t, http.MethodPost, base+"/accounts", "", map[string]string{"id": "A"}, http.StatusConflict, nil)
	doJSON(t, http.MethodPost, base+"/accounts", "", map[string]string{"id": "../x"}, http.StatusBadRequest, nil)
	doJSON(t, http.MethodPost, base+"/accounts", "", map[string]string{"id": "B", "name": "chequing"}, http.StatusCreated, nil)

	var mut mutationResponse
	doJSON(t, http.MethodPost, base+"/accounts/A/deposit", "", mutationRequest{Amount: "1000000000000000000000.00"}, http.StatusOK, nil)
	doJSON(t, http.MethodPost, base+"/accounts/A/deposit", "", mutationRequest{Amount: "10.21", Description: "interest"}, http.StatusOK, &mut)
	assert.Equal(t, "1000000000000000000010.21", mut.Account.Balance)
	assert.Equal(t, "$1,000,000,000,000,000,000,010.21", mut.Account.Formatted)
	assert.Equal(t, "TX2", mut.Transaction.Token)
	assert.Equal(t, "deposit", mut.Transaction.Kind)
	assert.Equal(t, "interest", mut.Transaction.Description)

	var apiErr errorResponse
	doJSON(t, http.MethodPost, base+"/accounts/B/withdraw", "", mutationRequest{Amount: "0.3"}, http.StatusConflict, &apiErr)
	assert.Equal(t, "chequing only has $0.00", apiErr.Error)

	doJSON(t, http.MethodPost, base+"/accounts/A/withdraw", "", mutationRequest{Amount: "abc"}, http.StatusBadRequest, nil)
	doJSON(t, http.MethodPost, base+"/accounts/A/withdraw", "", mutationRequest{Amount: "-1"}, http.StatusBadRequest, nil)
	doJSON(t, http.MethodPost, base+"/accounts/A/withdraw", "", map[string]any{"amount": "1", "extra": true}, http.StatusBadRequest, nil)
	doJSON(t, http.MethodPost, base+"/accounts/nobody/deposit", "", mutationRequest{Amount: "1"}, http.StatusNotFound, nil)
	doJSON(t, http.MethodGet, base+"/accounts/nobody", "", nil, http.StatusNotFound, nil)

	var got accountResponse
	doJSON(t, http.MethodGet, base+"/accounts/A", "", nil, http.StatusOK, &got)
	assert.Equal(t, 2, got.LastSeq)

	var records []recordResponse
	doJSON(t, http.MethodGet, base+"/accounts/A/transactions?n=1", "", nil, http.StatusOK, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "TX2", records[0].Token)
	doJSON(t, http.MethodGet, base+"/accounts/A/transactions", "", nil, http.StatusOK, &records)
	assert.Len(t, records, 2)
	doJSON(t, http.MethodGet, base+"/accounts/A/transactions?n=x", "", nil, http.StatusBadRequest, nil)

	var moved map[string]recordResponse
	doJSON(t, http.MethodPost, base+"/transfer", "", map[string]string{"from": "A", "to": "B", "amount": "0.21"}, http.StatusOK, &moved)
	assert.Equal(t, "withdrawal", moved["withdrawal"].Kind)
	assert.Equal(t, "0.21", moved["deposit"].Balance)
	doJSON(t, http.MethodPost, base+"/transfer", "", map[string]string{"from": "B", "to": "B", "amount": "1"}, http.StatusBadRequest, nil)
	doJSON(t, http.MethodPost, base+"/transfer", "", map[string]string{"from": "B", "to": "A", "amount": "5"}, http.StatusConflict, nil)

	// create A, create B, two deposits, transfer out and in.
	assert.Equal(t, int32(6), writes.Load())
	entries, err := audit.Read()
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.Equal(t, "create_account", entries[0].Action)
	assert.Equal(t, "api", entries[0].Actor)
	assert.Equal(t, "deposit", entries[2].Action)
	assert.Equal(t, "1000000000000000000000.00", entries[2].Amount)
}

type failingBatch struct {
	*store.Memory
}

func (failingBatch) Commit(context.Context, model.AccountRow, []model.TransactionRow) error {
	return errors.New("disk full")
}

func TestPersistenceFailure(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.PutAccount(context.Background(), model.AccountRow{ID: "A", Name: "a", Region: "US", Balance: amount.Zero}))
	base := newTestServer(t, failingBatch{mem}, Options{})

	var apiErr errorResponse
	doJSON(t, http.MethodPost, base+"/accounts/A/deposit", "", mutationRequest{Amount: "1"}, http.StatusServiceUnavailable, &apiErr)
	assert.Contains(t, apiErr.Error, "disk full")
}

func TestAuthentication(t *testing.T) {
	const secret = "test-secret"
	audit := auditlog.New(t.TempDir())
	base := newTestServer(t, store.NewMemory(), Options{JWTSecret: secret, Audit: audit})

	doJSON(t, http.MethodGet, base+"/health", "", nil, http.StatusOK, nil)
	doJSON(t, http.MethodGet, base+"/accounts/A", "", nil, http.StatusUnauthorized, nil)

	forged, err := IssueToken("other-secret", "mallory", time.Hour)
	require.NoError(t, err)
	doJSON(t, http.MethodGet, base+"/accounts/A", forged, nil, http.StatusUnauthorized, nil)

	forever, err := IssueToken(secret, "alice", 0)
	require.NoError(t, err)
	doJSON(t, http.MethodGet, base+"/accounts/A", forever, nil, http.StatusNotFound, nil)

	token, err := IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	doJSON(t, http.MethodPost, base+"/accounts", token, map[string]string{"id": "A"}, http.StatusCreated, nil)

	entries, err := audit.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "api:alice", entries[0].Actor)

	_, err = IssueToken("", "alice", 0)
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrNoSuchAccount, http.StatusNotFound},
		{ledger.ErrDuplicateIdentifier, http.StatusConflict},
		{&ledger.InsufficientFundsError{Account: "a", Balance: "$0.00"}, http.StatusConflict},
		{&amount.ParseError{Input: "x"}, http.StatusBadRequest},
		{ledger.ErrNegativeAmount, http.StatusBadRequest},
		{ledger.ErrDescriptionTooLong, http.StatusBadRequest},
		{&ledger.PersistenceError{Op: "op", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
