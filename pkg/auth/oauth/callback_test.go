package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCallbackServer(t *testing.T, template, state string) (*CallbackServer, string) {
	t.Helper()
	server, err := NewCallbackServer(template, state)
	require.NoError(t, err)
	redirectURI, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return server, redirectURI
}

func hitCallback(t *testing.T, redirectURI string, params url.Values) *http.Response {
	t.Helper()
	resp, err := http.Get(redirectURI + "?" + params.Encode())
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewCallbackServerRejectsNonLoopback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
	}{
		{"https loopback", "https://127.0.0.1:0/callback"},
		{"public host", "http://example.com/callback"},
		{"garbage", "://not-a-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCallbackServer(tt.template, "state")
			assert.Error(t, err)
		})
	}
}

func TestPortPlaceholderSubstitution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
	}{
		{"curly placeholder", "http://127.0.0.1:{port}/auth/callback"},
		{"dunder placeholder", "http://127.0.0.1:__PORT__/auth/callback"},
		{"explicit zero", "http://127.0.0.1:0/auth/callback"},
		{"no port at all", "http://127.0.0.1/auth/callback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, redirectURI := startCallbackServer(t, tt.template, "state")

			parsed, err := url.Parse(redirectURI)
			require.NoError(t, err)
			assert.Equal(t, "/auth/callback", parsed.Path)
			assert.NotEmpty(t, parsed.Port())
			assert.NotEqual(t, "0", parsed.Port(), "effective URI must carry the resolved port")
		})
	}
}

func TestCallbackSuccess(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "expected-state")

	go func() {
		time.Sleep(20 * time.Millisecond)
		resp, err := http.Get(redirectURI + "?" + url.Values{
			"state": []string{"expected-state"},
			"code":  []string{"the-code"},
		}.Encode())
		if err == nil {
			resp.Body.Close()
		}
	}()

	code, err := server.WaitForCode(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "the-code", code)
}

func TestCallbackStateMismatch(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "expected-state")

	resp := hitCallback(t, redirectURI, url.Values{
		"state": []string{"wrong"},
		"code":  []string{"the-code"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err := server.WaitForCode(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestCallbackProviderError(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")

	resp := hitCallback(t, redirectURI, url.Values{
		"state": []string{"s"},
		"error": []string{"access_denied"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err := server.WaitForCode(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestCallbackMissingCode(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")

	resp := hitCallback(t, redirectURI, url.Values{"state": []string{"s"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err := server.WaitForCode(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing authorization code")
}

func TestCallbackUnknownPathIs404AndDoesNotSettle(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")

	base := strings.TrimSuffix(redirectURI, "/callback")
	resp, err := http.Get(base + "/favicon.ico")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The real callback still works afterwards.
	resp = hitCallback(t, redirectURI, url.Values{
		"state": []string{"s"},
		"code":  []string{"c"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	code, err := server.WaitForCode(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "c", code)
}

func TestCallbackIsOneShot(t *testing.T) {
	t.Parallel()

	server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")

	first := hitCallback(t, redirectURI, url.Values{
		"state": []string{"s"},
		"code":  []string{"c1"},
	})
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := hitCallback(t, redirectURI, url.Values{
		"state": []string{"s"},
		"code":  []string{"c2"},
	})
	assert.Equal(t, http.StatusGone, second.StatusCode)

	code, err := server.WaitForCode(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "c1", code, "only the first request may win")
}

func TestWaitForCodeDeadline(t *testing.T) {
	t.Parallel()

	server, _ := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")
	server.deadline = 50 * time.Millisecond

	_, err := server.WaitForCode(t.Context())
	assert.ErrorIs(t, err, ErrCallbackTimeout)
}

func TestWaitForCodeContextCancellation(t *testing.T) {
	t.Parallel()

	server, _ := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := server.WaitForCode(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListenerClosesOnEveryExitPath(t *testing.T) {
	t.Parallel()

	// Repeated sign-in attempts must not leak ports: after WaitForCode
	// returns, the listener address must be reusable.
	for i := range 3 {
		server, redirectURI := startCallbackServer(t, "http://127.0.0.1:{port}/callback", "s")
		go func() {
			resp, err := http.Get(redirectURI + "?" + url.Values{
				"state": []string{"s"},
				"code":  []string{fmt.Sprintf("c%d", i)},
			}.Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		_, err := server.WaitForCode(t.Context())
		require.NoError(t, err)

		_, err = http.Get(redirectURI)
		assert.Error(t, err, "listener must be closed after settle")
	}
}

func TestIsLoopbackRedirect(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLoopbackRedirect("http://127.0.0.1:{port}/cb"))
	assert.True(t, IsLoopbackRedirect("http://localhost:4123/cb"))
	assert.False(t, IsLoopbackRedirect("https://localhost/cb"))
	assert.False(t, IsLoopbackRedirect("http://10.0.0.5/cb"))
}
