// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package networking provides the hardened HTTP plumbing shared by the auth
// and gateway subsystems: scheme-validating transports, redirect-blocking
// clients, response size caps, and transport failure classification.
package networking

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HttpTimeout is the default timeout for outgoing HTTP requests.
const HttpTimeout = 30 * time.Second

// HTTPClient is the interface used for outbound requests. *http.Client
// satisfies it; tests substitute fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ValidatingTransport validates request URLs prior to forwarding. HTTPS is
// required for all destinations except loopback hosts, which are permitted
// over plain HTTP so local OIDC test providers and the loopback callback
// exchange keep working.
type ValidatingTransport struct {
	Transport http.RoundTripper
}

// RoundTrip validates the request URL prior to forwarding.
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parsedURL, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("the supplied URL %s is malformed", req.URL.String())
	}

	if parsedURL.Scheme != "https" && !(parsedURL.Scheme == "http" && IsLocalhost(parsedURL.Host)) {
		return nil, fmt.Errorf("the supplied URL %s is not HTTPS scheme", req.URL.String())
	}

	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients.
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	blockRedirects        bool
}

// NewHttpClientBuilder returns a new HttpClientBuilder with default timeouts.
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout sets the overall client timeout.
func (b *HttpClientBuilder) WithTimeout(timeout time.Duration) *HttpClientBuilder {
	b.clientTimeout = timeout
	return b
}

// WithoutRedirects stops the client from following redirects; the 3xx
// response is returned to the caller unmodified.
func (b *HttpClientBuilder) WithoutRedirects() *HttpClientBuilder {
	b.blockRedirects = true
	return b
}

// Build creates the configured HTTP client.
func (b *HttpClientBuilder) Build() *http.Client {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	client := &http.Client{
		Transport: &ValidatingTransport{Transport: transport},
		Timeout:   b.clientTimeout,
	}

	if b.blockRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client
}
