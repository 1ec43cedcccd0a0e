package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desktopshell/trustcore/pkg/auth/discovery"
	"github.com/desktopshell/trustcore/pkg/config"
)

func TestBuildAuthorizationURL(t *testing.T) {
	t.Parallel()

	doc := &discovery.Document{
		AuthorizationEndpoint: "https://id.example.com/authorize",
		TokenEndpoint:         "https://id.example.com/token",
	}
	cfg := &config.OIDC{
		ClientID: "desktop-shell",
		Scopes:   []string{"openid", "profile"},
	}
	pair := PKCEPair{Verifier: "v", Challenge: "challenge-value"}

	raw := BuildAuthorizationURL(doc, cfg, pair, "state-1", "nonce-1", "http://127.0.0.1:49152/callback")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "id.example.com", parsed.Host)
	assert.Equal(t, "/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "desktop-shell", query.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:49152/callback", query.Get("redirect_uri"))
	assert.Equal(t, "openid profile", query.Get("scope"))
	assert.Equal(t, "state-1", query.Get("state"))
	assert.Equal(t, "nonce-1", query.Get("nonce"))
	assert.Equal(t, "challenge-value", query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Empty(t, query.Get("audience"))
}

func TestBuildAuthorizationURLAudienceGating(t *testing.T) {
	t.Parallel()

	doc := &discovery.Document{
		AuthorizationEndpoint: "https://id.example.com/authorize",
		TokenEndpoint:         "https://id.example.com/token",
	}
	pair := PKCEPair{Challenge: "c"}

	// Audience configured but not enabled for the authorize request.
	cfg := &config.OIDC{ClientID: "x", Scopes: []string{"openid"}, Audience: "https://api.example.com"}
	parsed, err := url.Parse(BuildAuthorizationURL(doc, cfg, pair, "s", "n", "http://127.0.0.1:1/cb"))
	require.NoError(t, err)
	assert.Empty(t, parsed.Query().Get("audience"))

	// Audience enabled for the authorize request.
	cfg.SendAudienceInAuthorize = true
	parsed, err = url.Parse(BuildAuthorizationURL(doc, cfg, pair, "s", "n", "http://127.0.0.1:1/cb"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", parsed.Query().Get("audience"))
}
