package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("rejects missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rejects short secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "corto")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
		t.Setenv("HTTP_PORT", "")
		t.Setenv("STATS_CACHE_TTL_SECONDS", "")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "3001", cfg.HTTPPort)
		assert.Equal(t, 24, cfg.JWTExpirationHours)
		assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	})

	t.Run("ignores malformed integers", func(t *testing.T) {
		t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
		t.Setenv("DB_MAX_OPEN_CONNS", "muchas")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.DBMaxOpenConns)
	})
}
