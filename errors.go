package checkout

import (
	"errors"
	"fmt"

	"github.com/xraph/checkout/payment"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("checkout: not found")
	ErrAlreadyExists = errors.New("checkout: already exists")
	ErrInvalidInput  = errors.New("checkout: invalid input")

	// Identity errors
	ErrUserNotFound = errors.New("checkout: user not found")

	// Catalog and cart errors
	ErrProductNotFound  = errors.New("checkout: product not found")
	ErrEmptyCart        = errors.New("checkout: cart is empty")
	ErrAlreadyPurchased = errors.New("checkout: product already purchased")

	// Order errors
	ErrOrderNotFound      = errors.New("checkout: order not found")
	ErrPaymentRefConflict = errors.New("checkout: order already has a different payment ref")

	// Reconciliation errors
	ErrUnknownPaymentRef  = errors.New("checkout: unknown payment ref")
	ErrMalformedPayload   = payment.ErrMalformedPayload
	ErrOrderOwnerMismatch = errors.New("checkout: order belongs to another user")
	ErrPaymentRefMismatch = errors.New("checkout: payment ref does not match order")
	ErrAmountMismatch     = errors.New("checkout: paid amount does not match order total")
	ErrEmailRequired      = errors.New("checkout: email required for card receipts")

	// Gateway errors
	ErrGatewayTransient     = errors.New("checkout: payment gateway unavailable")
	ErrGatewayNotConfigured = errors.New("checkout: payment gateway not configured")

	// Store errors
	ErrStoreNotReady   = errors.New("checkout: store not ready")
	ErrStoreClosed     = errors.New("checkout: store is closed")
	ErrMigrationFailed = errors.New("checkout: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("checkout: validation failed for %s: %s", e.Field, e.Message)
}

// IdentityStoreError wraps a store failure during identity resolution that
// is not a uniqueness race. Callers must treat it as fatal for the request.
type IdentityStoreError struct {
	PrincipalID int64
	Err         error
}

func (e *IdentityStoreError) Error() string {
	return fmt.Sprintf("checkout: resolve identity %d: %v", e.PrincipalID, e.Err)
}

func (e *IdentityStoreError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "checkout: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("checkout: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayTransient) ||
		errors.Is(err, ErrStoreNotReady)
}

// IsDroppable returns true for inputs that can never credit an order and
// should be acknowledged without retry.
func IsDroppable(err error) bool {
	return errors.Is(err, ErrUnknownPaymentRef) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrOrderOwnerMismatch) ||
		errors.Is(err, ErrAmountMismatch)
}
