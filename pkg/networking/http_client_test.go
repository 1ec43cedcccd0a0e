package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatingTransportRejectsNonHTTPS(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: &ValidatingTransport{Transport: http.DefaultTransport}}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/data", nil)
	require.NoError(t, err)

	_, err = client.Do(req) //nolint:bodyclose // request never leaves the transport
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTTPS scheme")
}

func TestValidatingTransportAllowsLoopbackHTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: &ValidatingTransport{Transport: http.DefaultTransport}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBuilderBlocksRedirects(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := NewHttpClientBuilder().WithoutRedirects().Build()
	resp, err := client.Get(server.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestIsLocalhost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"localhost without port", "localhost", true},
		{"localhost with port", "localhost:8080", true},
		{"ipv4 loopback", "127.0.0.1", true},
		{"ipv4 loopback with port", "127.0.0.1:9000", true},
		{"ipv6 loopback", "[::1]", true},
		{"ipv6 loopback with port", "[::1]:8080", true},
		{"empty string", "", false},
		{"public hostname", "example.com", false},
		{"public hostname with port", "example.com:8080", false},
		{"public IP", "8.8.8.8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsLocalhost(tt.input), "Input: %s", tt.input)
		})
	}
}
