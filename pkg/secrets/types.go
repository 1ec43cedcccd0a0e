// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets contains the durable storage for the OIDC refresh token.
// The access token only ever lives in memory; the refresh token is the one
// credential that survives a restart, so it goes through a TokenStore.
package secrets

import "context"

// KeyringService is the service name used for OS keyring entries.
const KeyringService = "trustcore"

// KeyringAccount is the account name of the refresh-token keyring entry.
const KeyringAccount = "oidc-refresh-token"

// TokenStore persists the OIDC refresh token. All operations are idempotent:
// Get on an empty store returns ("", nil), Clear on an empty store succeeds.
type TokenStore interface {
	// Get returns the stored refresh token, or "" when none is stored.
	Get(ctx context.Context) (string, error)

	// Set stores the refresh token, replacing any previous one.
	Set(ctx context.Context, token string) error

	// Clear removes the stored refresh token.
	Clear(ctx context.Context) error

	// Kind identifies the backing store for diagnostics ("keyring",
	// "file", "memory"). It never exposes stored values.
	Kind() string
}
