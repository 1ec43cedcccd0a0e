// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/desktopshell/trustcore/pkg/logger"
)

// decodeIDTokenClaims extracts the payload claims from an ID token without
// signature validation. The trust core received the token over a TLS channel
// it initiated, and claim-derived data (email, roles) is best-effort display
// data, so a malformed token degrades to nil claims instead of failing the
// sign-in.
func decodeIDTokenClaims(idToken string) map[string]any {
	if idToken == "" {
		return nil
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		logger.Debugf("Could not decode ID token claims: %v", err)
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return map[string]any(claims)
}

// stringClaim returns the named claim when it is a string.
func stringClaim(claims map[string]any, name string) string {
	if claims == nil {
		return ""
	}
	value, _ := claims[name].(string)
	return value
}

// entitlementsFromClaims derives entitlements from the ID-token "roles"
// claim. Anything other than an array of strings yields no entitlements.
func entitlementsFromClaims(claims map[string]any) []string {
	raw, ok := claims["roles"].([]any)
	if !ok {
		return []string{}
	}

	entitlements := make([]string, 0, len(raw))
	for _, item := range raw {
		role, ok := item.(string)
		if !ok {
			return []string{}
		}
		entitlements = append(entitlements, role)
	}
	return entitlements
}
