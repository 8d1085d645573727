package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokerplan/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, uint16(8085), cfg.HttpServerPort)
		assert.Equal(t, int64(65536), cfg.WsReadLimit)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("HTTP_SERVER_PORT", "9090")
		t.Setenv("WS_READ_LIMIT", "1024")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, uint16(9090), cfg.HttpServerPort)
		assert.Equal(t, int64(1024), cfg.WsReadLimit)
	})

	t.Run("rejects out-of-range port", func(t *testing.T) {
		t.Setenv("HTTP_SERVER_PORT", "80")

		_, err := config.LoadConfig()
		assert.Error(t, err)
	})
}
