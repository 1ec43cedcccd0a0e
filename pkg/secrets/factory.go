// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/desktopshell/trustcore/pkg/logger"
)

// NewDefault returns the best available token store for this host: the OS
// keyring when it is usable, otherwise a mode-0600 file under the XDG data
// directory.
func NewDefault() TokenStore {
	err := probeKeyring()
	if err == nil {
		return NewKeyringStore()
	}

	logger.Warnf("OS keyring unavailable, falling back to file token storage: %v", err)
	return NewFileStore(filepath.Join(xdg.DataHome, "trustcore"))
}
