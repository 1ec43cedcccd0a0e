// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import "encoding/json"

// FailurePayload is the serialized form of a classified error inside a
// Result envelope.
type FailurePayload struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Retryable     bool           `json:"retryable"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// Result is the discriminated success/failure envelope handed to the IPC
// layer: {"ok":true,"data":...} or {"ok":false,"error":{...}}.
type Result[T any] struct {
	OK      bool
	Data    T
	Failure *FailurePayload
}

// Success builds a successful envelope.
func Success[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

// Failure builds a failed envelope from a classified error. An unclassified
// error is mapped to the given fallback code with its message preserved and
// retryable=false, so callers never leak raw error chains across the boundary.
func Failure[T any](err error, fallbackCode string) Result[T] {
	if classified, ok := As(err); ok {
		return Result[T]{OK: false, Failure: &FailurePayload{
			Code:          classified.Code,
			Message:       classified.Message,
			Details:       classified.Details,
			Retryable:     classified.Retryable,
			CorrelationID: classified.CorrelationID,
		}}
	}
	return Result[T]{OK: false, Failure: &FailurePayload{
		Code:    fallbackCode,
		Message: err.Error(),
	}}
}

// Err converts a failed envelope back into a classified error. It returns
// nil for successful envelopes.
func (r Result[T]) Err() error {
	if r.OK || r.Failure == nil {
		return nil
	}
	return &Error{
		Code:          r.Failure.Code,
		Message:       r.Failure.Message,
		Details:       r.Failure.Details,
		Retryable:     r.Failure.Retryable,
		CorrelationID: r.Failure.CorrelationID,
	}
}

type successEnvelope[T any] struct {
	OK   bool `json:"ok"`
	Data T    `json:"data"`
}

type failureEnvelope struct {
	OK    bool            `json:"ok"`
	Error *FailurePayload `json:"error"`
}

// MarshalJSON serializes the discriminated envelope shape.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(successEnvelope[T]{OK: true, Data: r.Data})
	}
	return json.Marshal(failureEnvelope{OK: false, Error: r.Failure})
}

// UnmarshalJSON parses the discriminated envelope shape.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var probe struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.OK {
		var env successEnvelope[T]
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		*r = Result[T]{OK: true, Data: env.Data}
		return nil
	}
	var env failureEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*r = Result[T]{OK: false, Failure: env.Error}
	return nil
}
