// Package amount holds the exact decimal arithmetic used for every balance
// and transaction amount.
package amount

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is a zero balance with cent scale ("0.00").
var Zero = decimal.New(0, -2)

// ParseError reports malformed decimal input.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid decimal %q", e.Input)
	}
	return fmt.Sprintf("invalid decimal %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a decimal from its textual form, e.g. "10.21" or "-3".
func Parse(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, &ParseError{Input: s}
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, &ParseError{Input: s, Err: err}
	}
	return d, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat converts f through its shortest decimal text, so 0.1 becomes
// exactly 0.1 and never 0.1000000000000000055511151231257827.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, &ParseError{Input: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	return Parse(strconv.FormatFloat(f, 'f', -1, 64))
}

// Add returns a+b. The result keeps the larger scale of the two operands.
func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

// Sub returns a-b.
func Sub(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func Cmp(a, b decimal.Decimal) int { return a.Cmp(b) }

// Text renders d with exactly the fractional digits its scale carries.
// Unlike decimal.String it keeps trailing zeros: 1.0+2 renders "3.0".
func Text(d decimal.Decimal) string {
	exp := d.Exponent()
	if exp >= 0 {
		return d.StringFixed(0)
	}
	return d.StringFixed(-exp)
}
