// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"

	"github.com/desktopshell/trustcore/pkg/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the OIDC session",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthDiagCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the system browser",
		Long: `Login starts the Authorization Code + PKCE flow: a one-shot loopback
listener is opened, the system browser is pointed at the provider's
authorization endpoint, and the returned code is exchanged for tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			session, err := svc.requireAuth()
			if err != nil {
				return printFailure[auth.SessionSummary](err)
			}

			result, err := session.SignIn(cmd.Context())
			if err != nil {
				return printFailure[auth.SessionSummary](err)
			}
			return printSuccess(result.Summary)
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			session, err := svc.requireAuth()
			if err != nil {
				return printFailure[auth.SignOutResult](err)
			}

			mode := auth.SignOutLocal
			if global {
				mode = auth.SignOutGlobal
			}
			result, err := session.SignOut(cmd.Context(), mode)
			if err != nil {
				return printFailure[auth.SignOutResult](err)
			}
			return printSuccess(*result)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false,
		"Also revoke the refresh token at the provider")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			session, err := svc.requireAuth()
			if err != nil {
				return printFailure[auth.SessionSummary](err)
			}

			summary, err := session.GetSessionSummary(cmd.Context())
			if err != nil {
				return printFailure[auth.SessionSummary](err)
			}
			return printSuccess(summary)
		},
	}
}

func newAuthDiagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Show token diagnostics without exposing token values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			session, err := svc.requireAuth()
			if err != nil {
				return printFailure[auth.TokenDiagnostics](err)
			}
			return printSuccess(session.GetTokenDiagnostics())
		},
	}
}
