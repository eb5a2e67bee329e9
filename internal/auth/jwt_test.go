package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("p1", "attendee", "d1", 200, "geoattend", "secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "geoattend")
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.Subject)
	assert.Equal(t, "attendee", claims.Role)
	assert.Equal(t, "d1", claims.Department)
	assert.Equal(t, 200, claims.Level)
}

func TestParseRejections(t *testing.T) {
	pair, err := Issue("p1", "attendee", "d1", 200, "geoattend", "secret", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Parse(pair.AccessToken, "other-secret", "geoattend")
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := Parse(pair.AccessToken, "secret", "someone-else")
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := Issue("p1", "attendee", "d1", 200, "geoattend", "secret", -time.Minute, time.Hour)
		require.NoError(t, err)
		_, err = Parse(old.AccessToken, "secret", "geoattend")
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Parse("not.a.token", "secret", "geoattend")
		assert.Error(t, err)
	})
}
