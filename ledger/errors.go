/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The dispatcher turns every one of these into a failure envelope, so
  the messages here are what callers ultimately read.

ERROR CATEGORIES:
  1. Validation errors - Missing or malformed input, bad amounts
  2. Not-found errors - Unknown user or account
  3. Business-rule violations - Caps, funds, duplicates
  4. Authentication - One generic message, never more specific

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      var ife *ledger.InsufficientFundsError
      errors.As(err, &ife) // details
  }

SEE ALSO:
  - dispatch/local.go: Converts errors into envelopes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrSameAccount   = errors.New("cannot transfer to the same account")

	// Not found
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")

	// Business rules
	ErrAccountLimit      = errors.New("account limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNonZeroBalance    = errors.New("account balance is not zero")
	ErrDuplicateEmail    = errors.New("email already registered")

	// ErrNumberSpace is returned when no unused account number could be
	// generated within the retry budget.
	ErrNumberSpace = errors.New("could not allocate a unique account number")

	// ErrInvalidCredentials is deliberately the only login failure for an
	// unknown identifier or a wrong secret.
	ErrInvalidCredentials = errors.New("invalid login or password")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	Account   AccountNumber
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by the caller's input
// or by a business rule, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrAccountLimit) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrNonZeroBalance) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrInvalidCredentials) ||
		IsNotFound(err)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}
