// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the trustcore command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/desktopshell/trustcore/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "trustcore",
	DisableAutoGenTag: true,
	Short:             "Trustcore manages OIDC sessions and brokered outbound API calls",
	Long: `Trustcore is the trust and outbound-request core of the desktop shell.

It owns the OIDC Authorization Code + PKCE sign-in flow, keeps the session
tokens fresh, and brokers every outbound API call through a closed registry
of declared operations with HTTPS-only destinations, credential injection,
size caps, and rate limits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// Re-initialize so --debug takes effect after flag parsing.
		logger.Initialize()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd creates a new root command for the trustcore CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newAPICmd())

	return rootCmd
}
