package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desktopshell/trustcore/pkg/config"
	trusterr "github.com/desktopshell/trustcore/pkg/errors"
)

func TestRegistryDefaults(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{})

	op, err := r.Resolve(OpStatusGitHub)
	require.NoError(t, err)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "https://api.github.com/rate_limit", op.URLTemplate)
	assert.Equal(t, int64(256_000), op.MaxResponseBytes)
	assert.Equal(t, AuthNone, op.Auth.Type)

	// Zero-valued limits are filled at resolve time.
	assert.Equal(t, DefaultConcurrencyLimit, op.ConcurrencyLimit)
	assert.Equal(t, DefaultMaxAttempts, op.Retry.MaxAttempts)
}

func TestRegistryUnknownOperation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{})

	_, err := r.Resolve("unknown.op")
	require.Error(t, err)
	assert.Equal(t, ErrOperationNotAllowed, trusterr.CodeOf(err))
	assert.False(t, trusterr.IsRetryable(err))
}

func TestRegistrySecureEndpointNotConfigured(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{})

	_, err := r.Resolve(OpSecureEndpoint)
	require.Error(t, err)
	assert.Equal(t, ErrOperationNotConfigured, trusterr.CodeOf(err))

	classified, ok := trusterr.As(err)
	require.True(t, ok)
	assert.Contains(t, classified.Details["hint"], config.EnvSecureEndpointURLTemplate)

	diag, err := r.Describe(OpSecureEndpoint)
	require.NoError(t, err)
	assert.False(t, diag.Configured)
	assert.Contains(t, diag.ConfigurationHint, config.EnvSecureEndpointURLTemplate)
}

func TestRegistrySecureEndpointConfigured(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{
		SecureEndpointURLTemplate: "https://api.example.com/users/{{user_id}}/tenant/{{tenant_id}}",
		SecureEndpointClaimMap:    map[string]string{"user_id": "sub"},
	})

	op, err := r.Resolve(OpSecureEndpoint)
	require.NoError(t, err)
	assert.Equal(t, AuthOIDC, op.Auth.Type)
	assert.Equal(t, map[string]string{"user_id": "sub"}, op.ClaimMap)

	diag, err := r.Describe(OpSecureEndpoint)
	require.NoError(t, err)
	assert.True(t, diag.Configured)
	assert.Equal(t, []string{"user_id", "tenant_id"}, diag.PathPlaceholders)
	assert.Equal(t, "oidc", diag.AuthType)
	assert.Empty(t, diag.ConfigurationHint)
}

func TestRegistryDescribeUnknown(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{})

	_, err := r.Describe("unknown.op")
	require.Error(t, err)
	assert.Equal(t, ErrOperationNotAllowed, trusterr.CodeOf(err))
}

func TestRegistryReload(t *testing.T) {
	t.Parallel()

	r := NewRegistry(config.Gateway{})
	_, err := r.Resolve(OpSecureEndpoint)
	require.Error(t, err)

	r.Reload(config.Gateway{SecureEndpointURLTemplate: "https://api.example.com/{{user_id}}"})
	_, err = r.Resolve(OpSecureEndpoint)
	require.NoError(t, err)

	r.Reload(config.Gateway{})
	_, err = r.Resolve(OpSecureEndpoint)
	require.Error(t, err)
	assert.Equal(t, ErrOperationNotConfigured, trusterr.CodeOf(err))
}

func TestPlaceholderExtraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{name: "none", template: "https://api.example.com/rate_limit", want: []string{}},
		{name: "single", template: "https://api.example.com/{{user_id}}", want: []string{"user_id"}},
		{
			name:     "ordered and deduplicated",
			template: "https://api.example.com/{{a}}/{{b}}/{{a}}",
			want:     []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, placeholders(tt.template))
		})
	}
}
