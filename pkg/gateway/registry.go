// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"sync"
	"time"

	"github.com/desktopshell/trustcore/pkg/config"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
)

// Built-in operation identifiers.
const (
	// OpStatusGitHub probes the GitHub API rate-limit endpoint. It needs no
	// credentials and doubles as a connectivity check.
	OpStatusGitHub = "status.github"

	// OpSecureEndpoint is the bring-your-own privileged operation. It exists
	// only when a URL template has been configured.
	OpSecureEndpoint = "call.secure-endpoint"
)

const secureEndpointHint = "Configure " + config.EnvSecureEndpointURLTemplate +
	" (and optionally " + config.EnvSecureEndpointClaimMap + ") in the environment or the Settings file."

// Registry owns the operation table. It is built at construction and rebuilt
// on settings change; there is no package-level operation state.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry builds the operation table from built-in defaults plus the
// gateway configuration.
func NewRegistry(cfg config.Gateway) *Registry {
	r := &Registry{}
	r.Reload(cfg)
	return r
}

// NewStaticRegistry builds a registry from an explicit operation table,
// bypassing the built-in defaults. Descriptors keep their ids as given.
func NewStaticRegistry(ops ...Operation) *Registry {
	table := make(map[string]Operation, len(ops))
	for _, op := range ops {
		table[op.ID] = op
	}
	return &Registry{ops: table}
}

// Reload rebuilds the operation table. In-flight invocations keep the
// descriptor they resolved; new invocations see the new table.
func (r *Registry) Reload(cfg config.Gateway) {
	ops := map[string]Operation{
		OpStatusGitHub: {
			ID:               OpStatusGitHub,
			Method:           "GET",
			URLTemplate:      "https://api.github.com/rate_limit",
			Timeout:          8 * time.Second,
			MaxResponseBytes: 256_000,
			Auth:             AuthSpec{Type: AuthNone},
		},
	}

	if cfg.SecureEndpointURLTemplate != "" {
		claimMap := make(map[string]string, len(cfg.SecureEndpointClaimMap))
		for placeholder, path := range cfg.SecureEndpointClaimMap {
			claimMap[placeholder] = path
		}
		ops[OpSecureEndpoint] = Operation{
			ID:          OpSecureEndpoint,
			Method:      "GET",
			URLTemplate: cfg.SecureEndpointURLTemplate,
			Auth:        AuthSpec{Type: AuthOIDC},
			ClaimMap:    claimMap,
		}
	}

	r.mu.Lock()
	r.ops = ops
	r.mu.Unlock()
}

// Resolve returns the descriptor for an operation id, distinguishing ids
// that are simply not part of the closed set from recognized ids whose
// configuration is missing.
func (r *Registry) Resolve(operationID string) (Operation, error) {
	r.mu.RLock()
	op, ok := r.ops[operationID]
	r.mu.RUnlock()

	if ok {
		return op.withDefaults(), nil
	}
	if operationID == OpSecureEndpoint {
		return Operation{}, trusterr.New(ErrOperationNotConfigured,
			"requested API operation is recognized but not configured", false).
			WithDetails(map[string]any{
				"operationId": operationID,
				"hint":        secureEndpointHint,
			})
	}
	return Operation{}, trusterr.New(ErrOperationNotAllowed,
		"requested API operation is not allowed", false).
		WithDetails(map[string]any{"operationId": operationID})
}

// Diagnostics is the configuration shape of an operation, safe to show in a
// settings UI. It never carries secrets or runtime counters.
type Diagnostics struct {
	OperationID       string            `json:"operationId"`
	Configured        bool              `json:"configured"`
	Method            string            `json:"method,omitempty"`
	URLTemplate       string            `json:"urlTemplate,omitempty"`
	PathPlaceholders  []string          `json:"pathPlaceholders,omitempty"`
	ClaimMap          map[string]string `json:"claimMap,omitempty"`
	AuthType          string            `json:"authType,omitempty"`
	TimeoutMs         int64             `json:"timeoutMs,omitempty"`
	MaxResponseBytes  int64             `json:"maxResponseBytes,omitempty"`
	ConfigurationHint string            `json:"configurationHint,omitempty"`
}

// Describe reports an operation's configuration shape. A recognized but
// unconfigured operation is a successful description with a hint; an unknown
// id is an error. Describe never performs I/O and never touches runtime
// state.
func (r *Registry) Describe(operationID string) (Diagnostics, error) {
	r.mu.RLock()
	op, ok := r.ops[operationID]
	r.mu.RUnlock()

	if !ok {
		if operationID == OpSecureEndpoint {
			return Diagnostics{
				OperationID:       operationID,
				Configured:        false,
				ConfigurationHint: secureEndpointHint,
			}, nil
		}
		return Diagnostics{}, trusterr.New(ErrOperationNotAllowed,
			"requested API operation is not allowed", false).
			WithDetails(map[string]any{"operationId": operationID})
	}

	op = op.withDefaults()
	return Diagnostics{
		OperationID:      op.ID,
		Configured:       true,
		Method:           op.Method,
		URLTemplate:      op.URLTemplate,
		PathPlaceholders: placeholders(op.URLTemplate),
		ClaimMap:         op.ClaimMap,
		AuthType:         string(op.Auth.Type),
		TimeoutMs:        op.Timeout.Milliseconds(),
		MaxResponseBytes: op.MaxResponseBytes,
	}, nil
}

// IDs returns the configured operation ids, for CLI listings.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ops))
	for id := range r.ops {
		ids = append(ids, id)
	}
	return ids
}
