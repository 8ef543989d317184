package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/model"
)

// ChaseParser reads the checking account export of Chase online banking.
// Columns are located by their header names, so reordered exports still
// parse.
type ChaseParser struct{}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Header names of the columns the parser reads.
const (
	chaseDetails = "Details"
	chasePosted  = "Posting Date"
	chaseDesc    = "Description"
	chaseAmount  = "Amount"
	chaseType    = "Type"
)

// chaseKinds maps the Details column to the ledger operation.
var chaseKinds = map[string]model.Kind{
	"CREDIT": model.Deposit,
	"DSLIP":  model.Deposit,
	"DEBIT":  model.Withdrawal,
	"CHECK":  model.Withdrawal,
}

// chaseLayout holds the position of every column the parser reads.
type chaseLayout map[string]int

func newChaseLayout(header []string) (chaseLayout, error) {
	layout := make(chaseLayout, len(header))
	for i, name := range header {
		layout[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{chaseDetails, chasePosted, chaseDesc, chaseAmount, chaseType} {
		if _, ok := layout[name]; !ok {
			return nil, fmt.Errorf("missing %q column", name)
		}
	}
	return layout, nil
}

func (l chaseLayout) get(row []string, name string) string {
	return strings.TrimSpace(row[l[name]])
}

// Parse reads a Chase CSV. Rows keep the file's order.
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	layout, err := newChaseLayout(header)
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	var txns []model.BankTransaction
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return txns, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading chase CSV: %w", err)
		}
		txn, err := layout.transaction(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		txns = append(txns, txn)
	}
}

func (l chaseLayout) transaction(row []string) (model.BankTransaction, error) {
	var txn model.BankTransaction

	posted := l.get(row, chasePosted)
	date, err := time.Parse("01/02/2006", posted)
	if err != nil {
		return txn, fmt.Errorf("parsing date %q: %w", posted, err)
	}

	details := l.get(row, chaseDetails)
	kind, ok := chaseKinds[strings.ToUpper(details)]
	if !ok {
		return txn, fmt.Errorf("unknown details %q", details)
	}

	amt, err := amount.Parse(l.get(row, chaseAmount))
	if err != nil {
		return txn, fmt.Errorf("parsing amount: %w", err)
	}
	// Chase signs debits negative; a row disagreeing with its Details is
	// corrupt rather than a refund.
	if !amt.IsZero() && amt.IsNegative() != (kind == model.Withdrawal) {
		return txn, fmt.Errorf("%s row with amount %s", details, amount.Text(amt))
	}

	txn = model.BankTransaction{
		Date:        date,
		Description: l.get(row, chaseDesc),
		Kind:        kind,
		Amount:      amt.Abs(),
		Type:        l.get(row, chaseType),
	}
	txn.Reference = reference("chase", txn.Date, txn.Description)
	return txn, nil
}
