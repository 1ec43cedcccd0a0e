// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desktopshell/trustcore/pkg/auth"
	"github.com/desktopshell/trustcore/pkg/config"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/gateway"
	"github.com/desktopshell/trustcore/pkg/secrets"
)

// errCommandFailed signals a failure that was already reported to the user
// as a JSON envelope; the root command stays silent and only sets the exit
// status.
var errCommandFailed = errors.New("command failed")

// services holds the wired trust core for one CLI invocation.
type services struct {
	cfg     *config.Config
	auth    *auth.Service
	gateway *gateway.Gateway
}

// newServices loads the configuration and wires the session service and the
// gateway. The session service is nil when no OIDC configuration is present;
// the gateway still works for unauthenticated operations.
func newServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	svc := &services{cfg: cfg}
	if cfg.OIDC != nil {
		authService, err := auth.NewService(auth.ServiceOptions{
			Config: cfg.OIDC,
			Store:  secrets.NewDefault(),
		})
		if err != nil {
			return nil, err
		}
		svc.auth = authService
	}

	opts := gateway.Options{Registry: gateway.NewRegistry(cfg.Gateway)}
	if svc.auth != nil {
		opts.Tokens = svc.auth
	}
	svc.gateway = gateway.New(opts)
	return svc, nil
}

// close releases background resources such as the refresh timer.
func (s *services) close() {
	if s.auth != nil {
		s.auth.Close()
	}
}

// requireAuth returns the session service or a classified error when OIDC is
// not configured.
func (s *services) requireAuth() (*auth.Service, error) {
	if s.auth == nil {
		return nil, trusterr.New(auth.ErrNotConfigured,
			"OIDC is not configured, set OIDC_ISSUER, OIDC_CLIENT_ID and OIDC_REDIRECT_URI", false)
	}
	return s.auth, nil
}

// printResult writes the envelope as indented JSON on stdout and maps the
// failure branch to a non-zero exit status.
func printResult[T any](result trusterr.Result[T]) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	if !result.OK {
		return errCommandFailed
	}
	return nil
}

// printSuccess wraps data in a success envelope and prints it.
func printSuccess[T any](data T) error {
	return printResult(trusterr.Success(data))
}

// printFailure wraps a classified error in a failure envelope and prints it.
func printFailure[T any](err error) error {
	return printResult(trusterr.Failure[T](err, gateway.ErrNetwork))
}

// parseKeyValues turns repeated k=v flags into a string map.
func parseKeyValues(pairs []string, flagName string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected key=value", flagName, pair)
		}
		values[key] = value
	}
	return values, nil
}
