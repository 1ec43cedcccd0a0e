// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"math/rand/v2"
	"time"
)

// retryableCodes is the closed set of failure codes that may be retried.
// Everything else is a deterministic verdict and retrying it would only
// repeat the same answer.
var retryableCodes = map[string]bool{
	ErrTimeout:     true,
	ErrNetwork:     true,
	ErrOffline:     true,
	ErrDNS:         true,
	ErrProxy:       true,
	ErrServerError: true,
	ErrRateLimited: true,
}

const maxRetryJitter = 50 * time.Millisecond

// linearJitterBackOff produces base*attempt plus a small uniform jitter.
type linearJitterBackOff struct {
	base    time.Duration
	attempt int
}

func newLinearJitterBackOff(base time.Duration) *linearJitterBackOff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return &linearJitterBackOff{base: base}
}

func (b *linearJitterBackOff) NextBackOff() time.Duration {
	b.attempt++
	jitter := time.Duration(rand.Int64N(int64(maxRetryJitter)))
	return b.base*time.Duration(b.attempt) + jitter
}

func (b *linearJitterBackOff) Reset() {
	b.attempt = 0
}

// attemptBudget returns how many attempts an operation is allowed. POST is
// non-idempotent by policy and always gets exactly one attempt.
func attemptBudget(op Operation) uint {
	if op.Method != "GET" {
		return 1
	}
	return uint(op.Retry.MaxAttempts)
}
