package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound                    = errors.New("entity not found")
	ErrAlreadyExists               = errors.New("entity already exists")
	ErrInvalidArgument             = errors.New("invalid argument")
	ErrInvalidPhoneFormat          = errors.New("invalid phone number format")
	ErrAmountMismatch              = errors.New("amount does not match plan price")
	ErrUnknownPlan                 = errors.New("unknown subscription plan")
	ErrPaymentInitiationFailed     = errors.New("payment initiation failed")
	ErrInvalidSignature            = errors.New("invalid webhook signature")
	ErrDuplicateActiveSubscription = errors.New("user already has an active subscription of this plan")
	ErrAIAccessDenied              = errors.New("no AI access on current subscriptions")
	ErrAITokenLimitExceeded        = errors.New("AI token limit exceeded")

	// Database layer errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)

// DuplicatePendingPaymentError is returned when a user re-initiates a payment
// while a recent one is still in flight. It carries the existing transaction
// reference so the client can poll it instead of retrying.
type DuplicatePendingPaymentError struct {
	TransactionID string
}

func (e *DuplicatePendingPaymentError) Error() string {
	return fmt.Sprintf("a pending payment already exists (transaction %s)", e.TransactionID)
}

// IsDuplicatePendingPayment reports whether err wraps a DuplicatePendingPaymentError.
func IsDuplicatePendingPayment(err error) (*DuplicatePendingPaymentError, bool) {
	var d *DuplicatePendingPaymentError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
