// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desktopshell/trustcore/pkg/logger"
)

// AuthTimeout is the wall-clock deadline for the whole authorization round
// trip. It cancels the wait regardless of HTTP activity on the listener.
const AuthTimeout = 180 * time.Second

// callbackState tracks the listener's lifecycle for diagnostics and tests.
type callbackState int32

const (
	stateIdle callbackState = iota
	stateListening
	stateClosed
)

// ErrCallbackTimeout is returned when no authorization redirect arrives
// before the deadline.
var ErrCallbackTimeout = errors.New("OIDC sign-in timed out waiting for the authorization callback")

type callbackOutcome struct {
	code string
	err  error
}

// CallbackServer is a one-shot local HTTP server that receives the OAuth
// authorization redirect. It binds a loopback port, honors exactly one
// request on the expected path, and tears itself down on every exit path so
// repeated sign-in attempts never leak ports.
type CallbackServer struct {
	expectedState string
	expectedPath  string
	hostname      string
	requestedPort string
	template      *url.URL
	deadline      time.Duration

	server    *http.Server
	listener  net.Listener
	resultCh  chan callbackOutcome
	settled   atomic.Bool
	state     atomic.Int32
	closeOnce sync.Once
}

// resolvePortTemplate replaces the redirect-URI port placeholder with the
// literal 0, meaning "OS-assigned". Both `{port}` and `__PORT__` spellings
// are configuration syntax inherited from the desktop shell and must be
// preserved exactly.
func resolvePortTemplate(redirectURI string) string {
	if strings.Contains(redirectURI, "{port}") {
		return strings.Replace(redirectURI, "{port}", "0", 1)
	}
	if strings.Contains(redirectURI, "__PORT__") {
		return strings.Replace(redirectURI, "__PORT__", "0", 1)
	}
	return redirectURI
}

// IsLoopbackRedirect reports whether the redirect URI template points at the
// local loopback over plain HTTP. This flow supports loopback redirects
// only.
func IsLoopbackRedirect(redirectURI string) bool {
	parsed, err := url.Parse(resolvePortTemplate(redirectURI))
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return parsed.Scheme == "http" && (host == "127.0.0.1" || host == "localhost")
}

// NewCallbackServer prepares a callback server for one sign-in attempt. The
// redirect URI template may carry a `{port}`/`__PORT__` placeholder or an
// explicit port; a port of 0 binds an OS-assigned ephemeral port.
func NewCallbackServer(redirectURITemplate, expectedState string) (*CallbackServer, error) {
	resolved := resolvePortTemplate(redirectURITemplate)
	parsed, err := url.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURITemplate, err)
	}

	host := strings.ToLower(parsed.Hostname())
	if parsed.Scheme != "http" || (host != "127.0.0.1" && host != "localhost") {
		return nil, fmt.Errorf("redirect URI %q is not a loopback HTTP address", redirectURITemplate)
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	return &CallbackServer{
		expectedState: expectedState,
		expectedPath:  path,
		hostname:      host,
		requestedPort: parsed.Port(),
		template:      parsed,
		deadline:      AuthTimeout,
		resultCh:      make(chan callbackOutcome, 1),
	}, nil
}

// Start binds the listener and begins serving. It returns the effective
// redirect URI with the resolved port; this exact string must be used in the
// authorization URL and again during token exchange, per OAuth redirect-URI
// matching rules.
func (s *CallbackServer) Start() (string, error) {
	port := s.requestedPort
	if port == "" {
		port = "0"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.hostname, port))
	if err != nil {
		return "", fmt.Errorf("failed to bind OIDC callback listener: %w", err)
	}
	s.listener = listener

	effective := *s.template
	effective.Host = net.JoinHostPort(s.hostname, fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port))

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.settle(callbackOutcome{err: fmt.Errorf("OIDC callback server failed: %w", err)})
		}
	}()

	s.state.Store(int32(stateListening))
	logger.Debugw("OIDC callback listener started", "redirect_uri", effective.String())
	return effective.String(), nil
}

// WaitForCode blocks until the authorization redirect arrives, the deadline
// passes, or ctx is cancelled. The listener is closed on every exit path.
func (s *CallbackServer) WaitForCode(ctx context.Context) (string, error) {
	defer s.Close()

	timer := time.NewTimer(s.deadline)
	defer timer.Stop()

	select {
	case outcome := <-s.resultCh:
		return outcome.code, outcome.err
	case <-timer.C:
		return "", ErrCallbackTimeout
	case <-ctx.Done():
		return "", fmt.Errorf("OIDC sign-in cancelled: %w", ctx.Err())
	}
}

// Close shuts the listener down. It is idempotent and safe to call from any
// exit path.
func (s *CallbackServer) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(stateClosed))
		if s.server == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Failed to shut down OIDC callback listener: %v", err)
		}
	})
}

// settle records the one-shot outcome. Later calls are dropped.
func (s *CallbackServer) settle(outcome callbackOutcome) {
	if !s.settled.CompareAndSwap(false, true) {
		return
	}
	s.resultCh <- outcome
}

// handleCallback serves the authorization redirect. Exactly one request on
// the expected path is honored; anything else is answered without touching
// the pending wait.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.expectedPath {
		http.NotFound(w, r)
		return
	}

	if s.settled.Load() {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte("Authorization callback already handled."))
		return
	}

	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")
	errParam := query.Get("error")

	switch {
	case state != s.expectedState:
		s.writeResultPage(w, http.StatusBadRequest, false, "State mismatch.")
		s.settle(callbackOutcome{err: errors.New("OIDC callback state mismatch")})
	case errParam != "":
		s.writeResultPage(w, http.StatusBadRequest, false, "Authorization failed: "+errParam)
		s.settle(callbackOutcome{err: fmt.Errorf("OIDC provider returned an authorization error: %s", errParam)})
	case code == "":
		s.writeResultPage(w, http.StatusBadRequest, false, "Missing authorization code.")
		s.settle(callbackOutcome{err: errors.New("OIDC callback missing authorization code")})
	default:
		s.writeResultPage(w, http.StatusOK, true, "Authentication finished successfully.")
		s.settle(callbackOutcome{code: code})
	}
}

// writeResultPage renders the human-readable result page shown in the
// browser tab that carried the redirect.
func (*CallbackServer) writeResultPage(w http.ResponseWriter, status int, ok bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)

	heading := "Sign-in complete"
	class := "ok"
	if !ok {
		heading = "Sign-in failed"
		class = "err"
	}

	page := fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Authentication</title>
    <style>
      body { font-family: sans-serif; margin: 2rem; }
      .ok { color: #0f62fe; }
      .err { color: #a2191f; }
    </style>
  </head>
  <body>
    <h1 class="%s">%s</h1>
    <p>%s</p>
    <p>You can close this window and return to the app.</p>
  </body>
</html>`, class, heading, html.EscapeString(message))

	if _, err := w.Write([]byte(page)); err != nil {
		logger.Warnf("Failed to write callback result page: %v", err)
	}
}
