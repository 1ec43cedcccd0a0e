// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway turns a closed, declarative registry of outbound API
// operations into safe, authenticated, rate-limited HTTP calls. Destinations
// are validated, redirects blocked, response sizes capped, and every failure
// is classified into a stable error taxonomy before crossing the process
// boundary.
package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/desktopshell/trustcore/pkg/config"
	"github.com/desktopshell/trustcore/pkg/env"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/logger"
	"github.com/desktopshell/trustcore/pkg/networking"
)

// Gateway executes registered outbound operations. All methods are safe for
// concurrent use.
type Gateway struct {
	registry *Registry
	throttle *throttle
	client   networking.HTTPClient
	env      env.Reader
	tokens   TokenProvider
}

// Options carries the gateway's collaborators. A nil Tokens provider is
// valid; operations with OIDC auth then fail closed with AUTH_REQUIRED.
type Options struct {
	Registry *Registry
	Tokens   TokenProvider

	// Env overrides environment access, primarily for tests.
	Env env.Reader

	// HTTPClient overrides the outbound client. It must not follow
	// redirects.
	HTTPClient networking.HTTPClient

	// Now overrides the throttle clock.
	Now func() time.Time
}

// New wires a gateway from its collaborators.
func New(opts Options) *Gateway {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(config.Gateway{})
	}
	envReader := opts.Env
	if envReader == nil {
		envReader = &env.OSReader{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = networking.NewHttpClientBuilder().WithoutRedirects().Build()
	}

	return &Gateway{
		registry: registry,
		throttle: newThrottle(opts.Now),
		client:   client,
		env:      envReader,
		tokens:   opts.Tokens,
	}
}

// Registry exposes the operation table, for settings-change reloads.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Invoke runs one registered operation end to end: admission, the attempt
// loop for idempotent operations, and classification of the final outcome
// into the success/failure envelope.
func (g *Gateway) Invoke(ctx context.Context, req InvokeRequest) trusterr.Result[InvokeResponse] {
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	op, err := g.registry.Resolve(req.OperationID)
	if err != nil {
		return failure(err, correlationID)
	}

	release, err := g.throttle.admit(op)
	if err != nil {
		return failure(err, correlationID)
	}
	defer release()

	operation := func() (*InvokeResponse, error) {
		result, attemptErr := g.attempt(ctx, op, req)
		if attemptErr != nil {
			if !retryableCodes[trusterr.CodeOf(attemptErr)] {
				return nil, backoff.Permanent(attemptErr)
			}
			return nil, attemptErr
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newLinearJitterBackOff(op.Retry.BaseDelay)),
		backoff.WithMaxTries(attemptBudget(op)),
		backoff.WithNotify(func(attemptErr error, delay time.Duration) {
			logger.Debugf("Retrying operation %s after %v: %v", op.ID, delay, attemptErr)
		}),
	)
	if err != nil {
		return failure(err, correlationID)
	}
	return trusterr.Success(*result)
}

// Describe reports an operation's configuration shape as an envelope.
func (g *Gateway) Describe(operationID string) trusterr.Result[Diagnostics] {
	diag, err := g.registry.Describe(operationID)
	if err != nil {
		return trusterr.Failure[Diagnostics](err, ErrOperationNotAllowed)
	}
	return trusterr.Success(diag)
}

// failure builds a failed envelope, stamping the correlation id when the
// classified error does not already carry one.
func failure(err error, correlationID string) trusterr.Result[InvokeResponse] {
	if classified, ok := trusterr.As(err); ok && classified.CorrelationID == "" {
		err = classified.WithCorrelationID(correlationID)
	}
	return trusterr.Failure[InvokeResponse](err, ErrNetwork)
}
