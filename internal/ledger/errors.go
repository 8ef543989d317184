package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentifier is returned when creating an account whose id is
	// already live or persisted.
	ErrDuplicateIdentifier = errors.New("account identifier already exists")

	// ErrNoSuchAccount is returned when loading an id that is neither live
	// nor persisted.
	ErrNoSuchAccount = errors.New("no such account")

	// ErrInsufficientFunds matches every *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrDescriptionTooLong = fmt.Errorf("description longer than %d characters", MaxDescriptionLen)
	ErrInvalidAccountID   = errors.New("invalid account id")

	// ErrFlushUnsupported is returned by Flush when the gateway cannot wipe
	// its data.
	ErrFlushUnsupported = errors.New("store does not support flush")
)

// InsufficientFundsError reports a rejected withdrawal. Balance is the
// account's formatted balance at the time of the attempt.
type InsufficientFundsError struct {
	Account string
	Balance string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s only has %s", e.Account, e.Balance)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// PersistenceError wraps a gateway failure. The in-memory account keeps the
// mutation; retry with Account.Commit.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
