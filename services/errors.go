package services

import (
	"errors"
	"fmt"

	"github.com/edlight123/eventhaiti-payouts/database"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPayoutInProgress    = errors.New("payout already in progress")
	ErrAccountNotActive    = errors.New("payout account is not active")
	ErrAlreadyPaid         = errors.New("payout already paid")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrExternalDependency  = errors.New("external dependency unavailable")
	ErrRetryable           = database.ErrRetryable
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ConflictError reports a failed state precondition together with the state actually
// observed. Kind is ErrConflict, ErrAlreadyPaid or ErrInvalidTransition.
type ConflictError struct {
	Kind     error
	Resource string
	Action   string
	Current  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s: %s is %s", e.Action, e.Resource, e.Current)
}

func (e *ConflictError) Unwrap() error {
	if e.Kind == nil {
		return ErrConflict
	}
	return e.Kind
}

// InsufficientBalanceError carries either the minimum payout or, for withdrawals, the
// requested amount.
type InsufficientBalanceError struct {
	Available int64
	Minimum   int64
	Requested int64
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Requested > 0 {
		return fmt.Sprintf("requested %s exceeds the available balance of %s",
			FormatMinor(e.Requested, e.Currency), FormatMinor(e.Available, e.Currency))
	}
	return fmt.Sprintf("available balance %s is below the minimum payout of %s",
		FormatMinor(e.Available, e.Currency), FormatMinor(e.Minimum, e.Currency))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

type PayoutInProgressError struct {
	PayoutID string
	Status   string
}

func (e *PayoutInProgressError) Error() string {
	return fmt.Sprintf("payout %s is already %s", e.PayoutID, e.Status)
}

func (e *PayoutInProgressError) Unwrap() error { return ErrPayoutInProgress }

type AccountNotActiveError struct {
	Status string
}

func (e *AccountNotActiveError) Error() string {
	return fmt.Sprintf("payout account is %s, it must be active to request a payout", e.Status)
}

func (e *AccountNotActiveError) Unwrap() error { return ErrAccountNotActive }
