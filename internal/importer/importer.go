// Package importer turns bank statement exports into ledger deposits and
// withdrawals.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uledger-dev/uledger/internal/ledger"
	"github.com/uledger-dev/uledger/internal/model"
)

// Parser converts a bank CSV file into BankTransactions.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file waiting in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Scan returns CSV files in <dataDir>/import/.
func Scan(dataDir string) ([]FileInfo, error) {
	dir := filepath.Join(dataDir, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(dataDir, fileName string) error {
	src := filepath.Join(dataDir, importDir, fileName)
	dstDir := filepath.Join(dataDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	if err := os.Rename(src, filepath.Join(dstDir, fileName)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Result counts what Apply did.
type Result struct {
	Deposits    int
	Withdrawals int
	Records     []ledger.Record
}

// Apply posts txns to acct in order, each as the deposit or withdrawal its
// Kind names. It stops at the first failure and returns what was applied so
// far; earlier rows stay committed.
func Apply(ctx context.Context, acct *ledger.Account, txns []model.BankTransaction) (Result, error) {
	var res Result
	for i, txn := range txns {
		desc := description(txn)

		var (
			rec ledger.Record
			err error
		)
		switch txn.Kind {
		case model.Deposit:
			rec, err = acct.Deposit(ctx, txn.Amount, desc)
			if err == nil {
				res.Deposits++
			}
		case model.Withdrawal:
			rec, err = acct.Withdraw(ctx, txn.Amount, desc)
			if err == nil {
				res.Withdrawals++
			}
		default:
			err = fmt.Errorf("unknown transaction kind %q", txn.Kind)
		}
		if err != nil {
			return res, fmt.Errorf("row %d (%s): %w", i+1, txn.Reference, err)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// description fits the bank description into a record description.
func description(txn model.BankTransaction) string {
	d := strings.TrimSpace(txn.Description)
	if r := []rune(d); len(r) > ledger.MaxDescriptionLen {
		d = string(r[:ledger.MaxDescriptionLen])
	}
	return d
}

// reference builds a stable row id like chase_20250103_GITHUBPROS from the
// source name, the posting date and up to ten ASCII letters or digits of the
// description.
func reference(source string, date time.Time, desc string) string {
	var b strings.Builder
	b.WriteString(source)
	b.WriteByte('_')
	b.WriteString(date.Format("20060102"))
	b.WriteByte('_')
	n := 0
	for i := 0; i < len(desc) && n < 10; i++ {
		c := desc[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
			b.WriteByte(c)
			n++
		}
	}
	return b.String()
}
