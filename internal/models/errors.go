package models

import "errors"

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrMissingAgreement  = errors.New("billing agreement id not found in history")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError aborts a save before any write happens.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "subscription validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExternalCallError marks a failed call to the order or billing-agreement
// service; the batch continues for other records.
type ExternalCallError struct {
	Service string
	Err     error
}

func (e *ExternalCallError) Error() string {
	return e.Service + " call failed: " + e.Err.Error()
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
