package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/currency"
	"github.com/uledger-dev/uledger/internal/ledger"
)

var errBadRequest = errors.New("bad request")

// defaultHistory is the number of records returned when n is not given.
const defaultHistory = 10

type accountResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WalletID  string `json:"wallet_id,omitempty"`
	Region    string `json:"region"`
	Balance   string `json:"balance"`
	Formatted string `json:"formatted_balance"`
	LastSeq   int    `json:"last_seq"`
}

func toAccountResponse(a *ledger.Account) accountResponse {
	row := a.Snapshot()
	return accountResponse{
		ID:        row.ID,
		Name:      row.Name,
		WalletID:  row.WalletID,
		Region:    row.Region,
		Balance:   amount.Text(row.Balance),
		Formatted: currency.Format(row.Region, row.Balance),
		LastSeq:   row.Seq,
	}
}

type recordResponse struct {
	Token       string    `json:"token"`
	Seq         int       `json:"seq"`
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Balance     string    `json:"balance"`
	Description string    `json:"description"`
}

func toRecordResponse(rec ledger.Record) recordResponse {
	return recordResponse{
		Token:       rec.Token,
		Seq:         rec.Seq,
		Time:        rec.Time,
		Kind:        rec.Kind.Name(),
		Amount:      amount.Text(rec.Amount),
		Balance:     amount.Text(rec.Balance),
		Description: rec.Description,
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		WalletID string `json:"wallet_id"`
		Region   string `json:"region"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	a, err := s.ledger.CreateAccount(r.Context(), ledger.NewAccount{
		ID:       req.ID,
		Name:     req.Name,
		WalletID: req.WalletID,
		Region:   req.Region,
	})
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	s.record(r, auditlog.Entry{
		Timestamp: time.Now().UTC(),
		Action:    "create_account",
		AccountID: a.ID(),
		Details:   a.Name(),
	}, "create account "+a.ID())
	writeJSON(w, http.StatusCreated, toAccountResponse(a))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

type mutationRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type mutationResponse struct {
	Account     accountResponse `json:"account"`
	Transaction recordResponse  `json:"transaction"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*ledger.Account).Deposit)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*ledger.Account).Withdraw)
}

type mutation func(a *ledger.Account, ctx context.Context, amt decimal.Decimal, description ...string) (ledger.Record, error)

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op mutation) {
	var req mutationRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	a, err := s.ledger.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	rec, err := op(a, r.Context(), amt, req.Description)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	s.record(r, auditlog.FromRecord("", rec), fmt.Sprintf("%s: %s %s", rec.Kind.Name(), rec.AccountID, rec.Token))
	writeJSON(w, http.StatusOK, mutationResponse{
		Account:     toAccountResponse(a),
		Transaction: toRecordResponse(rec),
	})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	n := defaultHistory
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			err = fmt.Errorf("%w: n must be a non-negative integer", errBadRequest)
			writeErr(w, err, statusFor(err))
			return
		}
		n = v
	}

	records, err := s.ledger.PastTransactions(r.Context(), mux.Vars(r)["id"], n)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = toRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// transfer moves funds between two accounts as a withdrawal followed by a
// deposit. A failed deposit after a successful withdrawal is reported with
// the withdrawal's token so the caller can reconcile.
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	if req.From == req.To {
		err := fmt.Errorf("%w: from and to are the same account", errBadRequest)
		writeErr(w, err, statusFor(err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	ctx := r.Context()
	src, err := s.ledger.Load(ctx, req.From)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	dst, err := s.ledger.Load(ctx, req.To)
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}

	out, err := src.Withdraw(ctx, amt, "transfer to "+truncate(req.To))
	if err != nil {
		writeErr(w, err, statusFor(err))
		return
	}
	s.record(r, auditlog.FromRecord("", out), "transfer out: "+out.AccountID+" "+out.Token)

	in, err := dst.Deposit(ctx, amt, "transfer from "+truncate(req.From))
	if err != nil {
		err = fmt.Errorf("withdrew %s from %s (%s) but deposit failed: %w", amount.Text(amt), req.From, out.Token, err)
		writeErr(w, err, statusFor(err))
		return
	}
	s.record(r, auditlog.FromRecord("", in), "transfer in: "+in.AccountID+" "+in.Token)

	writeJSON(w, http.StatusOK, map[string]recordResponse{
		"withdrawal": toRecordResponse(out),
		"deposit":    toRecordResponse(in),
	})
}

// truncate keeps transfer descriptions within the record limit.
func truncate(accountID string) string {
	const room = ledger.MaxDescriptionLen - len("transfer from ")
	if len(accountID) > room {
		return accountID[:room]
	}
	return accountID
}

// record appends to the audit log and runs the after-write hook.
func (s *Server) record(r *http.Request, e auditlog.Entry, message string) {
	e.Actor = actor(r)
	if s.audit != nil {
		if err := s.audit.Append(e); err != nil {
			s.log.Warn("audit log append failed", "error", err)
		}
	}
	if s.afterWrite != nil {
		if err := s.afterWrite(message); err != nil {
			s.log.Warn("after-write hook failed", "error", err)
		}
	}
}
