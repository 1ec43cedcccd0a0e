// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the OIDC session service: Authorization Code +
// PKCE sign-in through a loopback callback listener, token refresh with
// pre-expiry scheduling, revocation-aware sign-out, and session summaries
// derived from ID-token claims.
package auth

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desktopshell/trustcore/pkg/auth/discovery"
	"github.com/desktopshell/trustcore/pkg/auth/oauth"
	"github.com/desktopshell/trustcore/pkg/config"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/logger"
	"github.com/desktopshell/trustcore/pkg/secrets"
)

// Error codes surfaced by the auth subsystem.
const (
	ErrSignInInProgress       = "AUTH/SIGNIN_IN_PROGRESS"
	ErrSignInFailed           = "AUTH/SIGNIN_FAILED"
	ErrSignOutFailed          = "AUTH/SIGNOUT_FAILED"
	ErrUnsupportedRedirectURI = "AUTH/UNSUPPORTED_REDIRECT_URI"
	ErrTokenExchangeFailed    = "AUTH/TOKEN_EXCHANGE_FAILED"
	ErrTokenPayloadInvalid    = "AUTH/TOKEN_PAYLOAD_INVALID"
	ErrRefreshFailed          = "AUTH/REFRESH_FAILED"
	ErrNotConfigured          = "AUTH/NOT_CONFIGURED"
)

// SessionState is the lifecycle state reported in a SessionSummary.
type SessionState string

const (
	StateSignedOut     SessionState = "signed-out"
	StateSigningIn     SessionState = "signing-in"
	StateActive        SessionState = "active"
	StateRefreshFailed SessionState = "refresh-failed"
)

// SessionSummary is the renderer-safe view of the current session. It never
// carries token material.
type SessionSummary struct {
	State        SessionState `json:"state"`
	UserID       string       `json:"userId,omitempty"`
	Email        string       `json:"email,omitempty"`
	Name         string       `json:"name,omitempty"`
	ExpiresAt    string       `json:"expiresAt,omitempty"`
	Scopes       []string     `json:"scopes"`
	Entitlements []string     `json:"entitlements"`
}

func signedOutSummary() SessionSummary {
	return SessionSummary{
		State:        StateSignedOut,
		Scopes:       []string{},
		Entitlements: []string{},
	}
}

// SignOutMode selects between clearing local state only and additionally
// revoking the refresh token at the provider.
type SignOutMode string

const (
	SignOutLocal  SignOutMode = "local"
	SignOutGlobal SignOutMode = "global"
)

// SignOutResult reports what a sign-out accomplished. SignedOut is always
// true on a nil error; RefreshTokenRevoked is false for local mode and for
// global mode when the provider rejected or could not be reached.
type SignOutResult struct {
	SignedOut           bool `json:"signedOut"`
	RefreshTokenRevoked bool `json:"refreshTokenRevoked"`
}

// SignInResult reports a completed interactive sign-in.
type SignInResult struct {
	Summary SessionSummary `json:"summary"`
}

// defaultRequestTimeout bounds each individual OIDC network call (discovery,
// token exchange, refresh, revocation). The interactive wait for the browser
// redirect has its own independent deadline.
const defaultRequestTimeout = 10 * time.Second

// ServiceOptions carries the collaborators a Service needs. Config and Store
// are required; the rest default to production implementations.
type ServiceOptions struct {
	Config *config.OIDC
	Store  secrets.TokenStore

	// Provider overrides the discovery client, primarily for tests.
	Provider *discovery.Client

	// OpenBrowser overrides how the authorization URL reaches the user.
	OpenBrowser oauth.BrowserOpener

	// RequestTimeout overrides the per-call OIDC network timeout.
	RequestTimeout time.Duration

	// Now overrides the clock used for expiry checks and refresh scheduling.
	Now func() time.Time
}

// Service owns the OIDC session lifecycle. All exported methods are safe for
// concurrent use.
type Service struct {
	cfg            *config.OIDC
	store          secrets.TokenStore
	provider       *discovery.Client
	openBrowser    oauth.BrowserOpener
	requestTimeout time.Duration
	now            func() time.Time

	signingIn atomic.Bool

	// refreshMu serializes refresh attempts so two timers or summary calls
	// never race a refresh-token rotation.
	refreshMu sync.Mutex

	// mu guards tokens, summary, and refreshTimer.
	mu           sync.Mutex
	tokens       *activeTokens
	summary      SessionSummary
	refreshTimer *time.Timer
}

// NewService wires a session service from its collaborators.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Config == nil {
		return nil, trusterr.New(ErrNotConfigured, "OIDC is not configured, set OIDC_ISSUER and OIDC_CLIENT_ID", false)
	}
	if opts.Store == nil {
		return nil, trusterr.New(ErrNotConfigured, "a token store is required", false)
	}

	provider := opts.Provider
	if provider == nil {
		provider = discovery.NewClient(opts.Config.Issuer, nil)
	}
	openBrowser := opts.OpenBrowser
	if openBrowser == nil {
		openBrowser = oauth.OpenSystemBrowser
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		cfg:            opts.Config,
		store:          opts.Store,
		provider:       provider,
		openBrowser:    openBrowser,
		requestTimeout: requestTimeout,
		now:            now,
		summary:        signedOutSummary(),
	}, nil
}

// SignIn runs the full interactive Authorization Code + PKCE flow: start the
// loopback listener, open the system browser at the authorization endpoint,
// wait for the redirect, and exchange the code for tokens. Only one sign-in
// may be in flight at a time.
func (s *Service) SignIn(ctx context.Context) (*SignInResult, error) {
	if !s.signingIn.CompareAndSwap(false, true) {
		return nil, trusterr.New(ErrSignInInProgress, "a sign-in is already in progress", false)
	}
	defer s.signingIn.Store(false)

	if !oauth.IsLoopbackRedirect(s.cfg.RedirectURI) {
		return nil, trusterr.Newf(ErrUnsupportedRedirectURI, false,
			"redirect URI %q is not a loopback http URI", s.cfg.RedirectURI)
	}

	s.mu.Lock()
	s.summary.State = StateSigningIn
	s.mu.Unlock()

	summary, err := s.runSignIn(ctx)
	if err != nil {
		// Never leave the summary at signing-in: fall back to the surviving
		// session when one exists, signed-out otherwise.
		s.mu.Lock()
		if s.tokens != nil {
			s.summary = s.activeSummaryLocked()
		} else {
			s.summary = signedOutSummary()
		}
		s.mu.Unlock()
		if trusterr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, trusterr.Wrap(ErrSignInFailed, "sign-in did not complete", true, err)
	}

	return &SignInResult{Summary: summary}, nil
}

func (s *Service) runSignIn(ctx context.Context) (SessionSummary, error) {
	doc, err := s.provider.Get(ctx, s.requestTimeout)
	if err != nil {
		return SessionSummary{}, err
	}

	pair, err := oauth.GeneratePKCE()
	if err != nil {
		return SessionSummary{}, trusterr.Wrap(ErrSignInFailed, "could not generate PKCE material", true, err)
	}
	state := oauth.NewState()
	nonce := oauth.NewNonce()

	callback, err := oauth.NewCallbackServer(s.cfg.RedirectURI, state)
	if err != nil {
		return SessionSummary{}, trusterr.Wrap(ErrUnsupportedRedirectURI, "invalid redirect URI", false, err)
	}
	redirectURI, err := callback.Start()
	if err != nil {
		return SessionSummary{}, trusterr.Wrap(ErrSignInFailed, "could not start the loopback listener", true, err)
	}
	defer callback.Close()

	authURL := oauth.BuildAuthorizationURL(doc, s.cfg, pair, state, nonce, redirectURI)

	logger.Infof("Opening browser for sign-in at %s", doc.AuthorizationEndpoint)
	if err := s.openBrowser(authURL); err != nil {
		return SessionSummary{}, trusterr.Wrap(ErrSignInFailed, "could not open the system browser", true, err)
	}

	code, err := callback.WaitForCode(ctx)
	if err != nil {
		return SessionSummary{}, trusterr.Wrap(ErrSignInFailed, "authorization was not completed", true, err)
	}

	resp, err := s.exchangeCode(ctx, doc, code, pair.Verifier, redirectURI)
	if err != nil {
		return SessionSummary{}, err
	}

	s.applyTokenResponse(ctx, resp)

	s.mu.Lock()
	summary := s.summary
	s.mu.Unlock()
	return summary, nil
}

// SignOut tears down the session. Global mode additionally revokes the
// refresh token at the provider; revocation failures are logged and reported
// through RefreshTokenRevoked, never as a sign-out error. Local state is
// always cleared; only a secret-store clear failure surfaces as an error.
func (s *Service) SignOut(ctx context.Context, mode SignOutMode) (*SignOutResult, error) {
	revoked := false
	if mode == SignOutGlobal {
		revoked = s.revokeRefreshToken(ctx)
	}

	s.mu.Lock()
	s.clearTimerLocked()
	s.tokens = nil
	s.summary = signedOutSummary()
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return nil, trusterr.Wrap(ErrSignOutFailed, "could not clear the persisted refresh token", false, err)
	}

	return &SignOutResult{SignedOut: true, RefreshTokenRevoked: revoked}, nil
}

// revokeRefreshToken performs best-effort RFC 7009 revocation and reports
// whether the provider accepted it.
func (s *Service) revokeRefreshToken(ctx context.Context) bool {
	s.mu.Lock()
	refreshToken := ""
	if s.tokens != nil {
		refreshToken = s.tokens.refreshToken
	}
	s.mu.Unlock()

	if refreshToken == "" {
		stored, err := s.store.Get(ctx)
		if err != nil {
			logger.Warnf("Could not read refresh token for revocation: %v", err)
			return false
		}
		refreshToken = stored
	}
	if refreshToken == "" {
		return false
	}

	doc, err := s.provider.Get(ctx, s.requestTimeout)
	if err != nil {
		logger.Warnf("Skipping token revocation, discovery failed: %v", err)
		return false
	}
	if doc.RevocationEndpoint == "" {
		logger.Debugf("Provider does not advertise a revocation endpoint")
		return false
	}

	form := url.Values{}
	form.Set("token", refreshToken)
	form.Set("token_type_hint", "refresh_token")
	form.Set("client_id", s.cfg.ClientID)

	status, _, err := s.provider.PostForm(ctx, discovery.SubOpRevocation, s.requestTimeout, doc.RevocationEndpoint, form)
	if err != nil {
		logger.Warnf("Token revocation request failed: %v", err)
		return false
	}
	if status < 200 || status >= 300 {
		logger.Warnf("Provider rejected token revocation with status %d", status)
		return false
	}
	return true
}

// GetSessionSummary returns the current summary, lazily refreshing when the
// access token has expired or when a persisted refresh token may allow a
// cold-started process to resume a previous session.
func (s *Service) GetSessionSummary(ctx context.Context) (SessionSummary, error) {
	s.mu.Lock()
	summary := s.summary
	needsRefresh := false
	switch {
	case s.tokens != nil && !s.now().Before(s.tokens.expiresAt):
		needsRefresh = true
	case s.tokens == nil && summary.State == StateSignedOut:
		needsRefresh = true
	}
	s.mu.Unlock()

	if !needsRefresh {
		return summary, nil
	}
	return s.refresh(ctx)
}

// GetAccessToken returns the current access token, or "" when no session is
// active or the token has reached its expiry. It never triggers a refresh.
func (s *Service) GetAccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil || !s.now().Before(s.tokens.expiresAt) {
		return ""
	}
	return s.tokens.accessToken
}

// BearerToken returns the token selected by the configured bearer source,
// subject to the same freshness rule as GetAccessToken.
func (s *Service) BearerToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil || !s.now().Before(s.tokens.expiresAt) {
		return ""
	}
	if s.cfg.BearerTokenSource == config.BearerIDToken {
		return s.tokens.idToken
	}
	return s.tokens.accessToken
}

// IdentityClaims returns the decoded ID-token claims of the active session,
// or nil when the session is absent or expired.
func (s *Service) IdentityClaims() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil || !s.now().Before(s.tokens.expiresAt) {
		return nil
	}
	return s.tokens.claims
}

// TokenDiagnostics describes the auth configuration shape for UI
// introspection. It never carries token material.
type TokenDiagnostics struct {
	Configured            bool     `json:"configured"`
	Issuer                string   `json:"issuer,omitempty"`
	ClientID              string   `json:"clientId,omitempty"`
	RedirectURI           string   `json:"redirectUri,omitempty"`
	Scopes                []string `json:"scopes"`
	BearerTokenSource     string   `json:"bearerTokenSource"`
	State                 string   `json:"state"`
	TokenStoreKind        string   `json:"tokenStoreKind"`
	HasRefreshToken       bool     `json:"hasRefreshToken"`
	AccessTokenExpiresAt  string   `json:"accessTokenExpiresAt,omitempty"`
	RefreshTimerScheduled bool     `json:"refreshTimerScheduled"`
}

// GetTokenDiagnostics reports configuration and session shape without doing
// any network I/O.
func (s *Service) GetTokenDiagnostics() TokenDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()

	diag := TokenDiagnostics{
		Configured:            true,
		Issuer:                s.cfg.Issuer,
		ClientID:              s.cfg.ClientID,
		RedirectURI:           s.cfg.RedirectURI,
		Scopes:                append([]string(nil), s.cfg.Scopes...),
		BearerTokenSource:     string(s.cfg.BearerTokenSource),
		State:                 string(s.summary.State),
		TokenStoreKind:        s.store.Kind(),
		RefreshTimerScheduled: s.refreshTimer != nil,
	}
	if s.tokens != nil {
		diag.HasRefreshToken = s.tokens.refreshToken != ""
		diag.AccessTokenExpiresAt = s.tokens.expiresAt.UTC().Format(time.RFC3339)
	}
	return diag
}

// Close stops the silent-refresh timer. The service must not be used after
// Close.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTimerLocked()
}
