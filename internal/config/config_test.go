package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richard-senior/mcp/internal/logger"
)

func TestLoadDefaultsToInfo(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "")
	t.Setenv("MCP_OAUTH_ISSUER", "")
	cfg := Load()
	assert.Equal(t, logger.INFO, cfg.LogLevel)
	assert.False(t, cfg.OAuthEnabled())
}

func TestLoadParsesSeverityAndOAuth(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "warning")
	t.Setenv("MCP_OAUTH_ISSUER", "https://auth.example")
	t.Setenv("MCP_OAUTH_AUDIENCE", "api://resource")
	t.Setenv("MCP_OAUTH_AZP", "client-123")

	cfg := Load()
	assert.Equal(t, logger.WARN, cfg.LogLevel)
	assert.True(t, cfg.OAuthEnabled())
	assert.Equal(t, "api://resource", cfg.OAuthAudience)
	assert.Equal(t, "client-123", cfg.OAuthAZP)
}

func TestLoadFallsBackOnUnrecognizedLevel(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "not-a-severity")
	cfg := Load()
	assert.Equal(t, logger.INFO, cfg.LogLevel)
}
