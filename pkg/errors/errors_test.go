package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection refused")
	err := Wrap("API/NETWORK_ERROR", "External API request failed.", true, cause)

	assert.Equal(t, "API/NETWORK_ERROR: External API request failed.: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfAndRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{
			name:      "classified retryable",
			err:       New("API/SERVER_ERROR", "upstream returned 502", true),
			code:      "API/SERVER_ERROR",
			retryable: true,
		},
		{
			name:      "classified non-retryable",
			err:       New("API/INSECURE_DESTINATION", "destination must use HTTPS", false),
			code:      "API/INSECURE_DESTINATION",
			retryable: false,
		},
		{
			name:      "wrapped in fmt chain",
			err:       fmt.Errorf("invoking: %w", New("API/THROTTLED", "too many in flight", true)),
			code:      "API/THROTTLED",
			retryable: true,
		},
		{
			name:      "unclassified",
			err:       stderrors.New("plain"),
			code:      "",
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestWithCorrelationIDDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := New("AUTH/SIGNIN_FAILED", "sign-in failed", true)
	tagged := base.WithCorrelationID("corr-1")

	assert.Empty(t, base.CorrelationID)
	assert.Equal(t, "corr-1", tagged.CorrelationID)
	assert.Equal(t, base.Code, tagged.Code)
}

func TestResultSuccessJSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Success(map[string]any{"initiated": true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":{"initiated":true}}`, string(raw))
}

func TestResultFailureJSON(t *testing.T) {
	t.Parallel()

	failure := New("API/RATE_LIMITED", "Operation invoked too frequently.", true).
		WithDetails(map[string]any{"retryAfterMs": 250}).
		WithCorrelationID("corr-2")

	raw, err := json.Marshal(Failure[any](failure, "API/INTERNAL"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ok": false,
		"error": {
			"code": "API/RATE_LIMITED",
			"message": "Operation invoked too frequently.",
			"details": {"retryAfterMs": 250},
			"retryable": true,
			"correlationId": "corr-2"
		}
	}`, string(raw))
}

func TestResultFailureFallbackCode(t *testing.T) {
	t.Parallel()

	result := Failure[any](stderrors.New("boom"), "API/INTERNAL")
	require.NotNil(t, result.Failure)
	assert.Equal(t, "API/INTERNAL", result.Failure.Code)
	assert.False(t, result.Failure.Retryable)
}

func TestResultRoundTrip(t *testing.T) {
	t.Parallel()

	original := Failure[string](New("AUTH/REFRESH_FAILED", "refresh failed", false), "AUTH/INTERNAL")
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Result[string]
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.False(t, decoded.OK)
	assert.Equal(t, "AUTH/REFRESH_FAILED", decoded.Failure.Code)

	roundErr := decoded.Err()
	require.Error(t, roundErr)
	assert.Equal(t, "AUTH/REFRESH_FAILED", CodeOf(roundErr))
}
