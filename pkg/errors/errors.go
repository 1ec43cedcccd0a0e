// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the closed error taxonomy shared by the auth and
// gateway subsystems. Every failure crossing the process boundary carries a
// stable string code, a human-readable message, optional structured details,
// a retryable flag, and an optional correlation id for tracing.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error represents a classified failure in the trust core.
type Error struct {
	// Code is the stable taxonomy code, e.g. "AUTH/SIGNIN_FAILED".
	Code string

	// Message is a human-readable description of the failure.
	Message string

	// Details carries optional structured context. It must never contain
	// secrets; it is serialized across the process boundary.
	Details map[string]any

	// Retryable marks the failure as transient and eligible for the
	// bounded retry loop.
	Retryable bool

	// CorrelationID ties the failure to the request that produced it.
	CorrelationID string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCorrelationID returns a copy of the error tagged with the given
// correlation id.
func (e *Error) WithCorrelationID(id string) *Error {
	clone := *e
	clone.CorrelationID = id
	return &clone
}

// New creates a classified error.
func New(code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// Newf creates a classified error with a formatted message.
func Newf(code string, retryable bool, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: retryable}
}

// Wrap creates a classified error wrapping a cause.
func Wrap(code, message string, retryable bool, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, Cause: cause}
}

// WithDetails attaches structured details to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or the empty string if err is not
// a classified error.
func CodeOf(err error) string {
	if classified, ok := As(err); ok {
		return classified.Code
	}
	return ""
}

// IsRetryable reports whether err is a classified error marked retryable.
// Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	if classified, ok := As(err); ok {
		return classified.Retryable
	}
	return false
}
