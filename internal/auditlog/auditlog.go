// Package auditlog keeps an append-only CSV trail of who changed which
// account, next to the data it describes.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/ledger"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	Actor     string // "cli", "api:<subject>", "import"
	Action    string // "deposit", "withdraw", "create_account", ...
	AccountID string
	Token     string // transaction token, empty for non-transaction actions
	Amount    string
	Details   string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,account_id,token,amount,details"

const (
	numFields    = 7
	logDir       = "logs"
	logFile      = "logs/audit-log.csv"
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colAccountID = 3
	colToken     = 4
	colAmount    = 5
	colDetails   = 6
)

// FromRecord builds the entry describing a committed ledger record.
func FromRecord(actor string, rec ledger.Record) Entry {
	return Entry{
		Timestamp: rec.Time,
		Actor:     actor,
		Action:    rec.Kind.Name(),
		AccountID: rec.AccountID,
		Token:     rec.Token,
		Amount:    amount.Text(rec.Amount),
		Details:   rec.Description,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colAccountID] = e.AccountID
	row[colToken] = e.Token
	row[colAmount] = e.Amount
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Action:    record[colAction],
		AccountID: record[colAccountID],
		Token:     record[colToken],
		Amount:    record[colAmount],
		Details:   record[colDetails],
	}, nil
}

// Log appends to <dir>/logs/audit-log.csv. It is safe for concurrent use
// within one process.
type Log struct {
	dir string
	mu  sync.Mutex
}

// New returns a Log rooted at dir. Nothing is created until the first write.
func New(dir string) *Log {
	return &Log{dir: dir}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return filepath.Join(l.dir, logFile)
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(l.dir, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := l.Path()
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries, or nil if the log does not exist yet.
func (l *Log) Read() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
