// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the trustcore CLI.
package main

import (
	"os"

	"github.com/desktopshell/trustcore/cmd/trustcore/app"
	"github.com/desktopshell/trustcore/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
