// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package oauth provides the browser-facing pieces of the Authorization Code
// + PKCE flow: verifier/challenge generation, the one-shot loopback callback
// server, and authorization URL construction.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// PKCEPair binds an authorization code to this client for one sign-in
// attempt. It is never persisted; its lifetime is one authorization round
// trip.
type PKCEPair struct {
	// Verifier is the high-entropy secret sent during token exchange.
	Verifier string

	// Challenge is base64url(SHA-256(verifier)), sent on the
	// authorization request.
	Challenge string
}

// GeneratePKCE generates a fresh PKCE verifier/challenge pair using the S256
// method (RFC 7636).
func GeneratePKCE() (PKCEPair, error) {
	verifierBytes := make([]byte, 64)
	if _, err := rand.Read(verifierBytes); err != nil {
		return PKCEPair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return PKCEPair{Verifier: verifier, Challenge: challenge}, nil
}

// NewState generates the anti-CSRF state value for one authorization request.
func NewState() string {
	return uuid.NewString()
}

// NewNonce generates the ID-token replay nonce for one authorization request.
func NewNonce() string {
	return uuid.NewString()
}
