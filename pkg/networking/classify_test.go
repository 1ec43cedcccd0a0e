package networking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected FailureKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutError{}}, KindTimeout},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.invalid"}, KindDNS},
		{"dns text fallback", errors.New("dial tcp: lookup api.invalid: no such host"), KindDNS},
		{"network unreachable errno", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, KindOffline},
		{"no route text", errors.New("dial tcp 10.0.0.1:443: connect: no route to host"), KindOffline},
		{"proxy failure", errors.New(`proxyconnect tcp: dial tcp 127.0.0.1:3128: connect: connection refused`), KindProxy},
		{"tls handshake text", errors.New("tls: failed to verify certificate: x509: certificate signed by unknown authority"), KindTLS},
		{"wrapped classified error", fmt.Errorf("request failed: %w", &net.DNSError{Err: "NXDOMAIN", Name: "x"}), KindDNS},
		{"plain failure", errors.New("connection reset by peer"), KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ClassifyTransportError(tt.err))
		})
	}
}

func TestReadCapped(t *testing.T) {
	t.Parallel()

	t.Run("under cap", func(t *testing.T) {
		t.Parallel()
		body, err := ReadCapped(strings.NewReader("hello"), 10)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), body)
	})

	t.Run("exactly at cap", func(t *testing.T) {
		t.Parallel()
		body, err := ReadCapped(strings.NewReader("12345"), 5)
		require.NoError(t, err)
		assert.Len(t, body, 5)
	})

	t.Run("over cap", func(t *testing.T) {
		t.Parallel()
		_, err := ReadCapped(strings.NewReader("123456"), 5)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})
}
