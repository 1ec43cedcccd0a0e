// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery implements the OIDC provider client: fetching and
// caching the .well-known/openid-configuration document and issuing
// deadline-bounded requests against the provider's endpoints.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/logger"
	"github.com/desktopshell/trustcore/pkg/networking"
)

// UserAgent is the user agent sent on all provider requests.
const UserAgent = "trustcore/1.0"

// ErrDiscoveryFailed is the taxonomy code for fatal discovery failures.
// Discovery has no cached fallback: without it the auth subsystem cannot
// function, so these are never retryable.
const ErrDiscoveryFailed = "AUTH/DISCOVERY_FAILED"

// SubOperation names the provider call a timeout belongs to, so a timeout
// surfaced to the user says which step of the flow stalled.
type SubOperation string

// Provider sub-operations.
const (
	SubOpDiscovery     SubOperation = "discovery"
	SubOpTokenExchange SubOperation = "token_exchange"
	SubOpRefresh       SubOperation = "refresh"
	SubOpRevocation    SubOperation = "revocation"
)

// TimeoutError reports that a provider request exceeded its deadline.
type TimeoutError struct {
	Op      SubOperation
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("OIDC %s request timed out after %dms", e.Op, e.Timeout.Milliseconds())
}

// Document is the subset of the OIDC discovery document the trust core uses.
// Once fetched successfully it is immutable for the process lifetime; a
// provider rotation requires a restart.
type Document struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
}

// Client talks to a single OIDC provider identified by its issuer URL.
type Client struct {
	issuer     string
	httpClient networking.HTTPClient

	mu     sync.Mutex
	cached *Document
}

// NewClient creates a provider client for the given issuer. The issuer is
// expected to be normalized (no trailing slash). If httpClient is nil a
// hardened default client is used.
func NewClient(issuer string, httpClient networking.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = networking.NewHttpClientBuilder().Build()
	}
	return &Client{issuer: issuer, httpClient: httpClient}
}

// Issuer returns the issuer this client is bound to.
func (c *Client) Issuer() string {
	return c.issuer
}

// Get returns the discovery document, fetching it on first use and caching
// it for the process lifetime. Missing required endpoints or a non-2xx
// response are fatal, non-retryable failures.
func (c *Client) Get(ctx context.Context, timeout time.Duration) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached, nil
	}

	wellKnownURL := c.issuer + "/.well-known/openid-configuration"
	status, body, err := c.roundTrip(ctx, SubOpDiscovery, timeout, http.MethodGet, wellKnownURL, nil, "")
	if err != nil {
		return nil, trusterr.Wrap(ErrDiscoveryFailed, "OIDC discovery request failed.", false, err)
	}
	if status < 200 || status >= 300 {
		return nil, trusterr.Newf(ErrDiscoveryFailed, false, "OIDC discovery failed (%d).", status).
			WithDetails(map[string]any{"status": status})
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, trusterr.Wrap(ErrDiscoveryFailed, "OIDC discovery payload is not valid JSON.", false, err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, trusterr.New(ErrDiscoveryFailed,
			"OIDC discovery payload is missing required endpoints.", false)
	}

	logger.Debugw("OIDC discovery document cached",
		"issuer", c.issuer,
		"has_revocation_endpoint", doc.RevocationEndpoint != "",
	)
	c.cached = &doc
	return c.cached, nil
}

// PostForm sends a form-urlencoded POST to a provider endpoint with the
// given deadline, tagging any timeout with the sub-operation. It returns the
// status code and the full response body; classification of non-2xx statuses
// is left to the caller because token and revocation endpoints differ.
func (c *Client) PostForm(
	ctx context.Context,
	op SubOperation,
	timeout time.Duration,
	endpoint string,
	form url.Values,
) (int, []byte, error) {
	return c.roundTrip(ctx, op, timeout, http.MethodPost, endpoint, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded")
}

// roundTrip issues one provider request bounded by timeout and reads the
// whole response body before the deadline is released.
func (c *Client) roundTrip(
	ctx context.Context,
	op SubOperation,
	timeout time.Duration,
	method, requestURL string,
	body io.Reader,
	contentType string,
) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if networking.ClassifyTransportError(err) == networking.KindTimeout {
			return 0, nil, &TimeoutError{Op: op, Timeout: timeout}
		}
		return 0, nil, fmt.Errorf("OIDC %s request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := networking.ReadCapped(resp.Body, networking.DefaultMaxResponseSize)
	if err != nil {
		if networking.ClassifyTransportError(err) == networking.KindTimeout {
			return 0, nil, &TimeoutError{Op: op, Timeout: timeout}
		}
		return 0, nil, fmt.Errorf("failed to read OIDC %s response: %w", op, err)
	}

	return resp.StatusCode, payload, nil
}
