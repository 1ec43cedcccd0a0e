package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	t.Parallel()

	t.Run("parses pairs", func(t *testing.T) {
		t.Parallel()

		values, err := parseKeyValues([]string{"user_id=u-1", "include=positions"}, "param")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"user_id": "u-1", "include": "positions"}, values)
	})

	t.Run("keeps equals signs in the value", func(t *testing.T) {
		t.Parallel()

		values, err := parseKeyValues([]string{"filter=a=b"}, "param")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"filter": "a=b"}, values)
	})

	t.Run("empty input stays nil", func(t *testing.T) {
		t.Parallel()

		values, err := parseKeyValues(nil, "param")
		require.NoError(t, err)
		assert.Nil(t, values)
	})

	t.Run("rejects malformed pairs", func(t *testing.T) {
		t.Parallel()

		for _, pair := range []string{"novalue", "=orphan"} {
			_, err := parseKeyValues([]string{pair}, "header")
			assert.Error(t, err, pair)
		}
	})
}

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["auth"])
	assert.True(t, names["api"])
}
