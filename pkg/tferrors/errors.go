// Package tferrors defines the error taxonomy shared by every engine
// package: validation failures, missing entities, arithmetic underflow,
// reader faults and checkpoint faults. Order-level failures are not part
// of this taxonomy — those are reported as status transitions with a
// RejectReason, never thrown (see pkg/orders).
package tferrors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching across the wrapped concrete types.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrReader              = errors.New("reader error")
	ErrCheckpoint          = errors.New("checkpoint error")
)

// ValidationError reports invalid input: a bad decimal, a negative
// amount, a missing required field, or a failed invariant check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a lookup against an unknown account or order.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ArithmeticUnderflowError reports a checked subtraction that would have
// produced a negative result.
type ArithmeticUnderflowError struct {
	Op   string
	A, B string
}

func (e *ArithmeticUnderflowError) Error() string {
	return fmt.Sprintf("arithmetic underflow in %s: %s - %s < 0", e.Op, e.A, e.B)
}

func (e *ArithmeticUnderflowError) Unwrap() error { return ErrArithmeticUnderflow }

func NewArithmeticUnderflowError(op, a, b string) error {
	return &ArithmeticUnderflowError{Op: op, A: a, B: b}
}

// ReaderError reports a malformed record, an unsupported archive format,
// a monotonicity violation, or a cursor that could not be located.
type ReaderError struct {
	File   string
	Reason string
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("reader: %s: %s", e.File, e.Reason)
}

func (e *ReaderError) Unwrap() error { return ErrReader }

func NewReaderError(file, reason string) error {
	return &ReaderError{File: file, Reason: reason}
}

// CheckpointError reports a schema violation, an unsupported checkpoint
// version, or a snapshot that references an order id absent from state.
type CheckpointError struct {
	Reason string
}

func (e *CheckpointError) Error() string {
	return "checkpoint: " + e.Reason
}

func (e *CheckpointError) Unwrap() error { return ErrCheckpoint }

func NewCheckpointError(reason string) error {
	return &CheckpointError{Reason: reason}
}
