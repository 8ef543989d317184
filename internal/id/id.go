package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// txPrefix starts every transaction token.
const txPrefix = "TX"

// FormatTxToken returns a transaction token like "TX7".
func FormatTxToken(seq int) string {
	return txPrefix + strconv.Itoa(seq)
}

// ParseTxToken parses "TX7" into 7.
func ParseTxToken(token string) (int, error) {
	rest, ok := strings.CutPrefix(token, txPrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("invalid transaction token %q", token)
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in transaction token %q: %w", token, err)
	}
	if seq < 1 {
		return 0, fmt.Errorf("transaction token %q must be positive", token)
	}
	return seq, nil
}

// FormatWalletAccountID returns the id of the n-th account of a wallet,
// e.g. "home" + "ACC" + 2 = "homeACC2".
func FormatWalletAccountID(walletID string, n int) string {
	return walletID + "ACC" + strconv.Itoa(n)
}

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Validate rejects identifiers that cannot be used as a storage key or file
// name: empty, too long, or containing anything but letters, digits, '-',
// '_' and '.'.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("identifier %q longer than 128 characters", id)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("invalid identifier %q", id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("identifier %q contains invalid character %q", id, r)
		}
	}
	return nil
}
