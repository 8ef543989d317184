// Package server exposes the ledger over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/ledger"
)

// Options configures a Server. Every field is optional.
type Options struct {
	// JWTSecret enables HS256 bearer authentication when set.
	JWTSecret string
	Audit     *auditlog.Log
	Logger    *slog.Logger
	// AfterWrite runs after every successful mutation, e.g. to commit the
	// data directory. Failures are logged, not returned to the client.
	AfterWrite func(message string) error
}

// Server handles API requests against one ledger.
type Server struct {
	ledger     *ledger.Ledger
	audit      *auditlog.Log
	log        *slog.Logger
	secret     []byte
	afterWrite func(string) error
}

// New creates a Server.
func New(l *ledger.Ledger, opts Options) *Server {
	s := &Server{
		ledger:     l,
		audit:      opts.Audit,
		log:        opts.Logger,
		afterWrite: opts.AfterWrite,
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if opts.JWTSecret != "" {
		s.secret = []byte(opts.JWTSecret)
	}
	return s
}

// Router builds the handler tree. Every route lives under /api/v1.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := v1.NewRoute().Subrouter()
	if s.secret != nil {
		api.Use(s.authenticate)
	}
	api.HandleFunc("/accounts", s.createAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}", s.getAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/deposit", s.deposit).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/withdraw", s.withdraw).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/transactions", s.transactions).Methods(http.MethodGet)
	api.HandleFunc("/transfer", s.transfer).Methods(http.MethodPost)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, err error, code int) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	var (
		perr  *amount.ParseError
		pserr *ledger.PersistenceError
	)
	switch {
	case errors.Is(err, ledger.ErrNoSuchAccount):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateIdentifier), errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.As(err, &perr),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrDescriptionTooLong),
		errors.Is(err, ledger.ErrInvalidAccountID),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &pserr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
