// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const tokenFileName = "oidc-refresh-token"

// FileStore stores the refresh token in a mode-0600 file under the user's
// data directory. It is the fallback for hosts without a usable OS keyring
// (headless Linux, stripped-down CI images).
type FileStore struct {
	filePath string
}

// NewFileStore creates a file-backed token store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{filePath: filepath.Join(baseDir, "auth", tokenFileName)}
}

// Get returns the stored refresh token, or "" when the file does not exist.
func (f *FileStore) Get(_ context.Context) (string, error) {
	raw, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read refresh token file: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}
	return string(raw), nil
}

// Set stores the refresh token with owner-only permissions.
func (f *FileStore) Set(_ context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(f.filePath), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(f.filePath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write refresh token file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (f *FileStore) Clear(_ context.Context) error {
	err := os.Remove(f.filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove refresh token file: %w", err)
	}
	return nil
}

// Kind identifies the backing store.
func (*FileStore) Kind() string {
	return "file"
}
