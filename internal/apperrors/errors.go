// Package apperrors is the error taxonomy shared by the checkout, receipt and
// reconciliation services. Typed errors match their sentinel with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrValidation             = errors.New("validation failed")
	ErrGatewayDeclined        = errors.New("payment declined")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrPersistenceAfterCharge = errors.New("persistence failed after charge")
)

// ValidationError is a request or policy violation detected before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// GatewayDeclinedError carries the gateway's return code and message verbatim.
type GatewayDeclinedError struct {
	PaymentID string
	Code      string
	Message   string
}

func (e *GatewayDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s (%s)", e.Message, e.Code)
}

func (e *GatewayDeclinedError) Is(target error) bool { return target == ErrGatewayDeclined }

// GatewayUnavailableError is a transport failure or timeout. When Ambiguous is
// set the charge may or may not exist and must be reconciled by OrderID
// before anything is retried.
type GatewayUnavailableError struct {
	Op        string
	OrderID   string
	Timeout   bool
	Ambiguous bool
	Err       error
}

func (e *GatewayUnavailableError) Error() string {
	msg := "gateway " + e.Op + " failed"
	if e.Timeout {
		msg = "gateway " + e.Op + " timed out"
	}
	if e.OrderID != "" {
		msg += " for order " + e.OrderID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

func (e *GatewayUnavailableError) Is(target error) bool { return target == ErrGatewayUnavailable }

// Retryable reports whether the operation can be repeated without risking a
// second charge.
func (e *GatewayUnavailableError) Retryable() bool { return !e.Ambiguous }

// PersistenceAfterChargeError means money moved but local records could not
// be written. It always requires manual intervention.
type PersistenceAfterChargeError struct {
	PaymentID string
	OrderID   string
	Err       error
}

func (e *PersistenceAfterChargeError) Error() string {
	return fmt.Sprintf("payment %s (order %s) charged but not persisted: %v", e.PaymentID, e.OrderID, e.Err)
}

func (e *PersistenceAfterChargeError) Unwrap() error { return e.Err }

func (e *PersistenceAfterChargeError) Is(target error) bool {
	return target == ErrPersistenceAfterCharge
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
