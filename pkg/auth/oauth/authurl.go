// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"golang.org/x/oauth2"

	"github.com/desktopshell/trustcore/pkg/auth/discovery"
	"github.com/desktopshell/trustcore/pkg/config"
)

// BuildAuthorizationURL constructs the provider authorization URL for one
// sign-in attempt. The redirect URI must be the effective URI returned by
// CallbackServer.Start, which is later repeated verbatim in the token
// exchange.
func BuildAuthorizationURL(
	doc *discovery.Document,
	cfg *config.OIDC,
	pair PKCEPair,
	state, nonce, redirectURI string,
) string {
	oauthConfig := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if cfg.Audience != "" && cfg.SendAudienceInAuthorize {
		opts = append(opts, oauth2.SetAuthURLParam("audience", cfg.Audience))
	}

	return oauthConfig.AuthCodeURL(state, opts...)
}
