package loyalty

import (
	"errors"
	"fmt"

	"github.com/xraph/loyalty/identity"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("loyalty: not found")
	ErrInvalidInput = errors.New("loyalty: invalid input")

	// Entity errors
	ErrBusinessNotFound = errors.New("loyalty: business not found")
	ErrAccountNotFound  = errors.New("loyalty: account not found")

	// Identity errors
	ErrDuplicateKey      = errors.New("loyalty: identity key already registered")
	ErrIdentityExhausted = errors.New("loyalty: could not allocate a unique loyalty code")
	ErrInvalidPhone      = identity.ErrInvalidPhone

	// Ledger errors
	ErrWouldUnderflow     = errors.New("loyalty: balance would go negative")
	ErrInsufficientPoints = errors.New("loyalty: insufficient points")
	ErrSelfReferral       = errors.New("loyalty: account cannot refer itself")
	ErrReferrerNotFound   = errors.New("loyalty: referrer not found")

	// Store errors
	ErrStoreClosed     = errors.New("loyalty: store is closed")
	ErrMigrationFailed = errors.New("loyalty: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("loyalty: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBusinessNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrReferrerNotFound)
}

// IsInvalidInput returns true if the error indicates a malformed request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrSelfReferral)
}

// IsRuleRejection returns true if the error is a business-rule rejection of
// an otherwise well-formed request.
func IsRuleRejection(err error) bool {
	return errors.Is(err, ErrWouldUnderflow) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrIdentityExhausted)
}
