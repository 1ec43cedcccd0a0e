// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore stores the refresh token in the OS keyring (Keychain on
// macOS, Credential Manager on Windows, Secret Service on Linux).
type KeyringStore struct {
	service string
	account string
}

// NewKeyringStore creates a keyring-backed token store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: KeyringService, account: KeyringAccount}
}

// Get returns the stored refresh token, or "" when no entry exists.
func (k *KeyringStore) Get(_ context.Context) (string, error) {
	token, err := keyring.Get(k.service, k.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read refresh token from keyring: %w", err)
	}
	return token, nil
}

// Set stores the refresh token, replacing any previous entry.
func (k *KeyringStore) Set(_ context.Context, token string) error {
	if err := keyring.Set(k.service, k.account, token); err != nil {
		return fmt.Errorf("failed to store refresh token in keyring: %w", err)
	}
	return nil
}

// Clear removes the refresh token. A missing entry is not an error.
func (k *KeyringStore) Clear(_ context.Context) error {
	err := keyring.Delete(k.service, k.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete refresh token from keyring: %w", err)
	}
	return nil
}

// Kind identifies the backing store.
func (*KeyringStore) Kind() string {
	return "keyring"
}

// probeKeyring checks whether the OS keyring is usable by writing and
// removing a test entry, mirroring how the desktop shell decides between
// keyring and file storage at startup.
func probeKeyring() error {
	const probeKey = "storage-probe"
	if err := keyring.Set(KeyringService, probeKey, "ok"); err != nil {
		return err
	}
	_ = keyring.Delete(KeyringService, probeKey)
	return nil
}
