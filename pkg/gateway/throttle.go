// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"sync"
	"time"

	trusterr "github.com/desktopshell/trustcore/pkg/errors"
)

// runtimeState tracks per-operation admission state. Entries are created
// lazily and live for the process lifetime.
type runtimeState struct {
	inFlight      int
	lastStartedAt time.Time
}

// throttle admits or rejects invocations per operation id. Admission happens
// once per invocation, before the retry loop; retries within an admitted
// invocation are not re-admitted.
type throttle struct {
	mu     sync.Mutex
	states map[string]*runtimeState
	now    func() time.Time
}

func newThrottle(now func() time.Time) *throttle {
	if now == nil {
		now = time.Now
	}
	return &throttle{states: make(map[string]*runtimeState), now: now}
}

// admit checks the operation's concurrency and rate limits. On success it
// increments the in-flight count and returns a release function that callers
// must invoke on every exit path.
func (t *throttle) admit(op Operation) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.states[op.ID]
	if state == nil {
		state = &runtimeState{}
		t.states[op.ID] = state
	}

	if state.inFlight >= op.ConcurrencyLimit {
		return nil, trusterr.New(ErrThrottled,
			"too many concurrent requests for this operation", true).
			WithDetails(map[string]any{
				"operationId":      op.ID,
				"concurrencyLimit": op.ConcurrencyLimit,
			})
	}

	now := t.now()
	if op.MinInterval > 0 && !state.lastStartedAt.IsZero() {
		elapsed := now.Sub(state.lastStartedAt)
		if elapsed < op.MinInterval {
			retryAfterMs := (op.MinInterval - elapsed).Milliseconds()
			if retryAfterMs <= 0 {
				retryAfterMs = 1
			}
			return nil, trusterr.New(ErrRateLimited,
				"operation invoked too frequently", true).
				WithDetails(map[string]any{
					"operationId":  op.ID,
					"retryAfterMs": retryAfterMs,
				})
		}
	}

	state.inFlight++
	state.lastStartedAt = now

	var once sync.Once
	release := func() {
		once.Do(func() {
			t.mu.Lock()
			state.inFlight--
			t.mu.Unlock()
		})
	}
	return release, nil
}
