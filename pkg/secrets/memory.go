// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"sync"
)

// MemoryStore keeps the refresh token in memory. It exists for tests and for
// callers that explicitly opt out of persistence.
type MemoryStore struct {
	mu    sync.Mutex
	token string

	// SetErr and ClearErr, when non-nil, are returned by the matching
	// operation. Tests use them to exercise store-failure paths.
	SetErr   error
	ClearErr error
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored refresh token, or "" when none is stored.
func (m *MemoryStore) Get(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Set stores the refresh token.
func (m *MemoryStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.token = token
	return nil
}

// Clear removes the stored refresh token.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.token = ""
	return nil
}

// Kind identifies the backing store.
func (*MemoryStore) Kind() string {
	return "memory"
}
