package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/model"
)

// GenericParser reads a minimal "date,description,amount" CSV with a header
// row and ISO dates (2006-01-02).
type GenericParser struct{}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a generic CSV and returns BankTransactions.
func (p *GenericParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[0], err)
		}
		amt, err := amount.Parse(rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount: %w", i+2, err)
		}
		kind := model.Deposit
		if amt.IsNegative() {
			kind = model.Withdrawal
		}
		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: rec[1],
			Kind:        kind,
			Amount:      amt.Abs(),
			Reference:   reference("generic", date, rec[1]),
		})
	}
	return txns, nil
}
