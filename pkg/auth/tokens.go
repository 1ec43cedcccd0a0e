// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/desktopshell/trustcore/pkg/auth/discovery"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/logger"
)

const (
	// defaultExpiresIn is assumed when the token endpoint omits expires_in.
	defaultExpiresIn = 300 * time.Second

	// minExpiresIn is the floor applied to provider-reported lifetimes so a
	// misconfigured provider cannot put the refresh loop into a tight spin.
	minExpiresIn = 60 * time.Second

	// refreshLead is how long before expiry the silent refresh fires.
	refreshLead = 60 * time.Second

	// minRefreshDelay is the shortest scheduling delay for a silent refresh.
	minRefreshDelay = 5 * time.Second
)

// tokenResponse is the JSON body returned by the token endpoint for both the
// authorization_code and refresh_token grants.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// activeTokens is the in-memory session material. The refresh token is also
// persisted to the secret store; access and ID tokens never leave memory.
type activeTokens struct {
	accessToken  string
	refreshToken string
	idToken      string
	expiresAt    time.Time
	claims       map[string]any
	scopes       []string
}

// exchangeCode redeems an authorization code at the token endpoint using the
// PKCE verifier from the same sign-in attempt.
func (s *Service) exchangeCode(ctx context.Context, doc *discovery.Document, code, verifier, redirectURI string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", verifier)
	if s.cfg.Audience != "" {
		form.Set("audience", s.cfg.Audience)
	}

	status, body, err := s.provider.PostForm(ctx, discovery.SubOpTokenExchange, s.requestTimeout, doc.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, trusterr.New(ErrTokenExchangeFailed, "token exchange failed", true).
			WithDetails(map[string]any{
				"status": status,
				"detail": bodyPreview(body),
			})
	}

	return parseTokenResponse(body)
}

// refreshGrant redeems a refresh token for a new token set.
func (s *Service) refreshGrant(ctx context.Context, doc *discovery.Document, refreshToken string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("refresh_token", refreshToken)

	status, body, err := s.provider.PostForm(ctx, discovery.SubOpRefresh, s.requestTimeout, doc.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, trusterr.New(ErrRefreshFailed, "token refresh was rejected by the provider", false).
			WithDetails(map[string]any{
				"status": status,
				"detail": bodyPreview(body),
			})
	}

	return parseTokenResponse(body)
}

// parseTokenResponse decodes a token endpoint body and enforces the fields
// every grant must carry.
func parseTokenResponse(body []byte) (*tokenResponse, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, trusterr.Wrap(ErrTokenPayloadInvalid, "token endpoint returned a malformed body", false, err)
	}
	if resp.AccessToken == "" || resp.TokenType == "" {
		return nil, trusterr.New(ErrTokenPayloadInvalid, "token endpoint response is missing access_token or token_type", false)
	}
	return &resp, nil
}

// applyTokenResponse installs a token set as the active session, persists the
// refresh token, and schedules the silent refresh. The caller must not hold
// the service mutex.
func (s *Service) applyTokenResponse(ctx context.Context, resp *tokenResponse) {
	lifetime := defaultExpiresIn
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
		if lifetime < minExpiresIn {
			lifetime = minExpiresIn
		}
	}

	claims := decodeIDTokenClaims(resp.IDToken)

	scopes := strings.Fields(resp.Scope)
	if len(scopes) == 0 {
		scopes = append([]string(nil), s.cfg.Scopes...)
	}

	tokens := &activeTokens{
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
		idToken:      resp.IDToken,
		expiresAt:    s.now().Add(lifetime),
		claims:       claims,
		scopes:       scopes,
	}

	s.mu.Lock()
	s.tokens = tokens
	s.summary = s.activeSummaryLocked()
	s.scheduleRefreshLocked(tokens)
	s.mu.Unlock()

	if resp.RefreshToken != "" {
		// Persisting the refresh token is best effort. Keyring hiccups must
		// not fail a sign-in that already holds valid tokens in memory.
		go func() {
			persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
			defer cancel()
			if err := s.store.Set(persistCtx, resp.RefreshToken); err != nil {
				logger.Warnf("Could not persist refresh token to %s store: %v", s.store.Kind(), err)
			}
		}()
	}
}

// activeSummaryLocked derives the session summary from the installed token
// set. The caller must hold mu and s.tokens must be non-nil.
func (s *Service) activeSummaryLocked() SessionSummary {
	return SessionSummary{
		State:        StateActive,
		UserID:       stringClaim(s.tokens.claims, "sub"),
		Email:        stringClaim(s.tokens.claims, "email"),
		Name:         stringClaim(s.tokens.claims, "name"),
		ExpiresAt:    s.tokens.expiresAt.UTC().Format(time.RFC3339),
		Scopes:       s.tokens.scopes,
		Entitlements: entitlementsFromClaims(s.tokens.claims),
	}
}

// scheduleRefreshLocked arms the silent-refresh timer for the given token
// set. Sessions without a refresh token simply expire.
func (s *Service) scheduleRefreshLocked(tokens *activeTokens) {
	s.clearTimerLocked()
	if tokens.refreshToken == "" {
		return
	}

	delay := tokens.expiresAt.Sub(s.now()) - refreshLead
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}

	s.refreshTimer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.requestTimeout)
		defer cancel()
		if _, err := s.refresh(ctx); err != nil {
			logger.Warnf("Silent token refresh failed: %v", err)
		}
	})
}

func (s *Service) clearTimerLocked() {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}

// refresh serializes refresh attempts and recomputes the session summary. A
// missing refresh token is the normal signed-out case, not an error. A
// rejected refresh clears all local session state so the next summary is an
// honest signed-out one rather than a stale active one.
func (s *Service) refresh(ctx context.Context) (SessionSummary, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	refreshToken := ""
	if s.tokens != nil {
		refreshToken = s.tokens.refreshToken
	}
	s.mu.Unlock()

	if refreshToken == "" {
		stored, err := s.store.Get(ctx)
		if err != nil {
			logger.Warnf("Could not read refresh token from %s store: %v", s.store.Kind(), err)
		}
		refreshToken = stored
	}

	if refreshToken == "" {
		s.mu.Lock()
		s.clearTimerLocked()
		s.tokens = nil
		s.summary = signedOutSummary()
		summary := s.summary
		s.mu.Unlock()
		return summary, nil
	}

	doc, err := s.provider.Get(ctx, s.requestTimeout)
	if err != nil {
		// Discovery failing is a transient network condition. Keep the local
		// session material so the refresh can be retried.
		return SessionSummary{}, err
	}

	resp, err := s.refreshGrant(ctx, doc, refreshToken)
	if err != nil {
		code := trusterr.CodeOf(err)
		if code != ErrRefreshFailed && code != ErrTokenPayloadInvalid {
			// Transport failure, not a provider verdict. Keep the session
			// material so the next scheduled or lazy refresh can retry.
			return SessionSummary{}, err
		}
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			logger.Warnf("Could not clear refresh token from %s store: %v", s.store.Kind(), clearErr)
		}
		s.mu.Lock()
		s.clearTimerLocked()
		s.tokens = nil
		s.summary = signedOutSummary()
		s.summary.State = StateRefreshFailed
		s.mu.Unlock()
		return SessionSummary{}, err
	}

	// Providers may rotate the refresh token or omit the ID token on the
	// refresh grant. Carry the previous values forward when absent.
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	s.mu.Lock()
	if resp.IDToken == "" && s.tokens != nil {
		resp.IDToken = s.tokens.idToken
	}
	s.mu.Unlock()

	s.applyTokenResponse(ctx, resp)

	s.mu.Lock()
	summary := s.summary
	s.mu.Unlock()
	return summary, nil
}

// bodyPreview truncates a provider error body for inclusion in error details.
func bodyPreview(body []byte) string {
	const maxPreview = 512
	text := strings.TrimSpace(string(body))
	if len(text) > maxPreview {
		return text[:maxPreview]
	}
	return text
}
