// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package config contains the runtime configuration for the trust core and
// the logic required to load it. Configuration is layered: an optional YAML
// settings file under the XDG config directory provides defaults, and
// environment variables override it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/desktopshell/trustcore/pkg/env"
)

// Environment variable names consumed by the trust core.
const (
	EnvOIDCIssuer                  = "OIDC_ISSUER"
	EnvOIDCClientID                = "OIDC_CLIENT_ID"
	EnvOIDCRedirectURI             = "OIDC_REDIRECT_URI"
	EnvOIDCScopes                  = "OIDC_SCOPES"
	EnvOIDCAudience                = "OIDC_AUDIENCE"
	EnvOIDCSendAudienceInAuthorize = "OIDC_SEND_AUDIENCE_IN_AUTHORIZE"
	EnvOIDCBearerTokenSource       = "OIDC_API_BEARER_TOKEN_SOURCE"
	EnvSecureEndpointURLTemplate   = "API_SECURE_ENDPOINT_URL_TEMPLATE"
	EnvSecureEndpointClaimMap      = "API_SECURE_ENDPOINT_CLAIM_MAP"
)

// BearerTokenSource selects which token the gateway injects as the bearer
// credential for OIDC-authenticated operations.
type BearerTokenSource string

const (
	// BearerAccessToken injects the OAuth access token (the default).
	BearerAccessToken BearerTokenSource = "access_token"
	// BearerIDToken injects the OIDC ID token instead; some backends key
	// authorization off identity claims rather than access scopes.
	BearerIDToken BearerTokenSource = "id_token"
)

// OIDC holds the authentication configuration. A nil *OIDC means the
// deployment runs without auth (no OIDC variables were provided at all).
type OIDC struct {
	Issuer                  string            `yaml:"issuer"`
	ClientID                string            `yaml:"client_id"`
	RedirectURI             string            `yaml:"redirect_uri"`
	Scopes                  []string          `yaml:"scopes"`
	Audience                string            `yaml:"audience,omitempty"`
	SendAudienceInAuthorize bool              `yaml:"send_audience_in_authorize,omitempty"`
	BearerTokenSource       BearerTokenSource `yaml:"api_bearer_token_source,omitempty"`
}

// Gateway holds the declarative configuration for privileged gateway
// operations. The secure endpoint operation only exists when a URL template
// is configured.
type Gateway struct {
	SecureEndpointURLTemplate string            `yaml:"secure_endpoint_url_template,omitempty"`
	SecureEndpointClaimMap    map[string]string `yaml:"secure_endpoint_claim_map,omitempty"`
}

// Config is the root runtime configuration.
type Config struct {
	OIDC    *OIDC   `yaml:"oidc,omitempty"`
	Gateway Gateway `yaml:"api,omitempty"`
}

var scopeSeparator = regexp.MustCompile(`[,\s]+`)

// splitScopes splits a scope string on commas and whitespace, dropping blanks.
func splitScopes(value string) []string {
	var scopes []string
	for _, scope := range scopeSeparator.Split(value, -1) {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// settingsFilePath returns the path of the optional settings file.
func settingsFilePath() string {
	return filepath.Join(xdg.ConfigHome, "trustcore", "settings.yaml")
}

// loadSettingsFile reads the settings file when present. A missing file is
// not an error; a malformed one is.
func loadSettingsFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path is under the user's own config dir
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &cfg, nil
}

// Load builds the runtime configuration from the default settings file
// location and the process environment.
func Load() (*Config, error) {
	return LoadWith(settingsFilePath(), &env.OSReader{})
}

// LoadWith builds the runtime configuration from a specific settings file
// and environment reader. It exists for dependency injection in tests.
func LoadWith(settingsPath string, envReader env.Reader) (*Config, error) {
	cfg, err := loadSettingsFile(settingsPath)
	if err != nil {
		return nil, err
	}

	if err := applyOIDCEnv(cfg, envReader); err != nil {
		return nil, err
	}
	if err := applyGatewayEnv(cfg, envReader); err != nil {
		return nil, err
	}

	if cfg.OIDC != nil {
		if err := normalizeOIDC(cfg.OIDC); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyOIDCEnv overlays the OIDC_* environment variables on the file config.
// When none of the core variables are set the file (or nil) config is kept;
// a partially specified environment is a hard error rather than a silent
// half-configured auth stack.
func applyOIDCEnv(cfg *Config, envReader env.Reader) error {
	issuer := strings.TrimSpace(envReader.Getenv(EnvOIDCIssuer))
	clientID := strings.TrimSpace(envReader.Getenv(EnvOIDCClientID))
	redirectURI := strings.TrimSpace(envReader.Getenv(EnvOIDCRedirectURI))
	scopeValue := strings.TrimSpace(envReader.Getenv(EnvOIDCScopes))

	if issuer == "" && clientID == "" && redirectURI == "" && scopeValue == "" {
		return nil
	}

	if issuer == "" || clientID == "" || redirectURI == "" {
		return fmt.Errorf("OIDC configuration is incomplete: required %s, %s, %s",
			EnvOIDCIssuer, EnvOIDCClientID, EnvOIDCRedirectURI)
	}

	if scopeValue == "" {
		scopeValue = "openid profile email"
	}

	oidc := &OIDC{
		Issuer:      issuer,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      splitScopes(scopeValue),
		Audience:    strings.TrimSpace(envReader.Getenv(EnvOIDCAudience)),
		SendAudienceInAuthorize: strings.TrimSpace(
			envReader.Getenv(EnvOIDCSendAudienceInAuthorize)) == "1",
	}
	if strings.TrimSpace(envReader.Getenv(EnvOIDCBearerTokenSource)) == string(BearerIDToken) {
		oidc.BearerTokenSource = BearerIDToken
	}

	cfg.OIDC = oidc
	return nil
}

// applyGatewayEnv overlays the API_* environment variables on the file config.
func applyGatewayEnv(cfg *Config, envReader env.Reader) error {
	if template := strings.TrimSpace(envReader.Getenv(EnvSecureEndpointURLTemplate)); template != "" {
		cfg.Gateway.SecureEndpointURLTemplate = template
	}

	rawClaimMap := strings.TrimSpace(envReader.Getenv(EnvSecureEndpointClaimMap))
	if rawClaimMap == "" {
		return nil
	}

	claimMap := map[string]string{}
	if err := json.Unmarshal([]byte(rawClaimMap), &claimMap); err != nil {
		return fmt.Errorf("%s must be a JSON object of placeholder to claim path: %w",
			EnvSecureEndpointClaimMap, err)
	}
	cfg.Gateway.SecureEndpointClaimMap = claimMap
	return nil
}

// normalizeOIDC applies the invariants shared by file- and env-sourced auth
// configuration: issuer has no trailing slash, scopes include openid, and
// the bearer token source defaults to the access token.
func normalizeOIDC(oidc *OIDC) error {
	oidc.Issuer = strings.TrimSuffix(strings.TrimSpace(oidc.Issuer), "/")

	if len(oidc.Scopes) == 0 {
		oidc.Scopes = splitScopes("openid profile email")
	}
	hasOpenID := false
	for _, scope := range oidc.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("%s must include \"openid\"", EnvOIDCScopes)
	}

	if oidc.BearerTokenSource != BearerIDToken {
		oidc.BearerTokenSource = BearerAccessToken
	}

	return nil
}
