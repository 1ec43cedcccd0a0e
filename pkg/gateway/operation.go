// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"regexp"
	"time"

	"github.com/desktopshell/trustcore/pkg/networking"
)

// Error codes surfaced by the gateway. The taxonomy is closed: every failure
// crossing the process boundary carries exactly one of these.
const (
	ErrOperationNotAllowed    = "API/OPERATION_NOT_ALLOWED"
	ErrOperationNotConfigured = "API/OPERATION_NOT_CONFIGURED"
	ErrInsecureDestination    = "API/INSECURE_DESTINATION"
	ErrInvalidHeaders         = "API/INVALID_HEADERS"
	ErrCredentialsUnavailable = "API/CREDENTIALS_UNAVAILABLE"
	ErrAuthRequired           = "API/AUTH_REQUIRED"
	ErrInvalidParams          = "API/INVALID_PARAMS"
	ErrRedirectBlocked        = "API/REDIRECT_BLOCKED"
	ErrPayloadTooLarge        = "API/PAYLOAD_TOO_LARGE"
	ErrForbidden              = "API/FORBIDDEN"
	ErrRateLimited            = "API/RATE_LIMITED"
	ErrServerError            = "API/SERVER_ERROR"
	ErrClientError            = "API/CLIENT_ERROR"
	ErrUnsupportedContentType = "API/UNSUPPORTED_CONTENT_TYPE"
	ErrResponseParseFailed    = "API/RESPONSE_PARSE_FAILED"
	ErrThrottled              = "API/THROTTLED"
	ErrTimeout                = "API/TIMEOUT"
	ErrDNS                    = "API/DNS_ERROR"
	ErrOffline                = "API/OFFLINE"
	ErrProxy                  = "API/PROXY_ERROR"
	ErrTLS                    = "API/TLS_ERROR"
	ErrNetwork                = "API/NETWORK_ERROR"
)

// AuthType selects how an operation authenticates to its destination.
type AuthType string

const (
	// AuthNone sends no credentials.
	AuthNone AuthType = "none"

	// AuthBearer injects a bearer token read from a named environment
	// variable. The call fails closed when the variable is unset.
	AuthBearer AuthType = "bearer"

	// AuthOIDC injects the active session's bearer token. The call fails
	// closed when no session token is available.
	AuthOIDC AuthType = "oidc"
)

// AuthSpec describes an operation's credential injection.
type AuthSpec struct {
	Type        AuthType `json:"type"`
	TokenEnvVar string   `json:"tokenEnvVar,omitempty"`
}

// RetryPolicy bounds the attempt loop for idempotent operations.
type RetryPolicy struct {
	MaxAttempts int           `json:"maxAttempts"`
	BaseDelay   time.Duration `json:"baseDelay"`
}

// Default operation limits. Descriptor fields left zero fall back to these.
const (
	DefaultTimeout          = 8 * time.Second
	DefaultMaxResponseBytes = networking.DefaultMaxResponseSize
	DefaultConcurrencyLimit = 4
	DefaultMaxAttempts      = 2
	DefaultBaseDelay        = 250 * time.Millisecond
)

// Operation is an immutable outbound-request descriptor. The gateway only
// ever talks to destinations described by one of these; it is not a proxy
// for arbitrary URLs.
type Operation struct {
	ID               string
	Method           string
	URLTemplate      string
	Timeout          time.Duration
	MaxResponseBytes int64
	ConcurrencyLimit int
	MinInterval      time.Duration
	Auth             AuthSpec
	ClaimMap         map[string]string
	Retry            RetryPolicy
}

// withDefaults fills zero-valued limits so the rest of the pipeline never
// special-cases them.
func (op Operation) withDefaults() Operation {
	if op.Timeout <= 0 {
		op.Timeout = DefaultTimeout
	}
	if op.MaxResponseBytes <= 0 {
		op.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if op.ConcurrencyLimit <= 0 {
		op.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if op.Auth.Type == "" {
		op.Auth.Type = AuthNone
	}
	if op.Retry.MaxAttempts <= 0 {
		op.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if op.Retry.BaseDelay <= 0 {
		op.Retry.BaseDelay = DefaultBaseDelay
	}
	return op
}

// placeholderPattern matches {{name}} tokens in a URL template.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// placeholders returns the template's placeholder names in order of first
// appearance.
func placeholders(urlTemplate string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(urlTemplate, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, match := range matches {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// TokenProvider supplies the gateway with session credentials. It is
// injected at construction; the gateway never reaches into the auth
// subsystem through globals.
type TokenProvider interface {
	// BearerToken returns the active session's bearer token, or "" when no
	// unexpired session exists.
	BearerToken() string

	// IdentityClaims returns the decoded ID-token claims of the active
	// session, or nil.
	IdentityClaims() map[string]any
}

// InvokeRequest is one outbound call as requested by the caller.
type InvokeRequest struct {
	OperationID   string            `json:"operationId"`
	Params        map[string]any    `json:"params,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// InvokeResponse is the successful result of an outbound call.
type InvokeResponse struct {
	Status      int    `json:"status"`
	Data        any    `json:"data"`
	ContentType string `json:"contentType,omitempty"`
	RequestPath string `json:"requestPath,omitempty"`
}
