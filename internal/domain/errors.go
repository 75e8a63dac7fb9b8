package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: unresolvable candidate or gym id.
	ErrNotFound = errors.New("not found")
	// ErrConflict: incompatible status or a unique-key collision. Never retried.
	ErrConflict = errors.New("conflict")
	// ErrInvalidPayload: missing or malformed candidate data, raised before any mutation.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInfrastructure: the store or another dependency is unavailable.
	ErrInfrastructure = errors.New("infrastructure failure")
)

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func NewConflictError(resource, msg string) *ConflictError {
	return &ConflictError{Resource: resource, Message: msg}
}

type PayloadError struct {
	Field   string
	Message string
}

func (e *PayloadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Message)
	}
	return "invalid payload: " + e.Message
}

func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

func NewPayloadError(field, msg string) *PayloadError {
	return &PayloadError{Field: field, Message: msg}
}

// InfraError wraps driver and network failures so callers can decide on retries.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

func (e *InfraError) Is(target error) bool { return target == ErrInfrastructure }

func NewInfraError(op string, err error) *InfraError {
	return &InfraError{Op: op, Err: err}
}
