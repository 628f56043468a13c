package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPhone         = errors.New("phone number must be exactly 10 digits")
	ErrInvalidAdvance       = errors.New("advance must be between 0 and the order total")
	ErrInvalidPrice         = errors.New("price must be a non-negative amount with at most 2 decimals")
	ErrInvalidAmount        = errors.New("amount must be a positive amount with at most 2 decimals")
	ErrInvalidMode          = errors.New("mode must be sale or order")
	ErrInvalidHandover      = errors.New("handover must be now or later")
	ErrInvalidPaymentMethod = errors.New("payment method must be cash or upi")
	ErrInvalidDelivery      = errors.New("delivery needs a YYYY-MM-DD date and HH:MM time")
	ErrInvalidRange         = errors.New("date range must use YYYY-MM-DD and from must not be after to")
	ErrInvalidOrderFilter   = errors.New("status filter must be open, pending, ready, completed or all")
	ErrMissingTerminal      = errors.New("terminal_id is required")
	ErrMissingName          = errors.New("name is required")
	ErrInvalidStock         = errors.New("stock cannot be negative")
	ErrAmountTooLarge       = errors.New("cart total is above the till limit")
)

var (
	ErrCheckoutInProgress     = errors.New("checkout already in progress for this terminal")
	ErrSettlementInconsistent = errors.New("order marked paid but settlement record was not written")
	ErrForbidden              = errors.New("role not permitted for this action")
	ErrSubmissionNotFailed    = errors.New("only a failed submission can be rolled back")
)

// ValidationError reports operator input that cannot be turned into a
// transaction. Nothing has been persisted when it is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// PersistenceError reports that the durable record could not be written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
