// Package config reads the handful of MCP_* environment variables the
// server honors at startup: log verbosity and the optional OAuth bearer
// token validation settings.
package config

import (
	"os"

	"github.com/richard-senior/mcp/internal/logger"
)

// Config is the process-wide configuration resolved once at startup.
type Config struct {
	LogLevel      logger.LogLevel

	OAuthIssuer   string
	OAuthAudience string
	OAuthAZP      string
}

// OAuthEnabled reports whether enough OAuth configuration was supplied to
// stand up bearer-token validation. The issuer is the load-bearing value;
// audience/azp narrow validation further but aren't required.
func (c Config) OAuthEnabled() bool {
	return c.OAuthIssuer != ""
}

// Load reads MCP_LOG_LEVEL, MCP_OAUTH_ISSUER, MCP_OAUTH_AUDIENCE and
// MCP_OAUTH_AZP from the environment. MCP_LOG_LEVEL is expressed in MCP
// wire-severity terms (debug/info/notice/warning/error/critical/alert/
// emergency); an unrecognized or absent value defaults to info.
func Load() Config {
	cfg := Config{
		LogLevel: logger.INFO,
		OAuthIssuer: os.Getenv("MCP_OAUTH_ISSUER"),
		OAuthAudience: os.Getenv("MCP_OAUTH_AUDIENCE"),
		OAuthAZP: os.Getenv("MCP_OAUTH_AZP"),
	}

	if raw := os.Getenv("MCP_LOG_LEVEL"); raw != "" {
		if level, ok := logger.LevelFromMCPSeverity(raw); ok {
			cfg.LogLevel = level
		} else {
			logger.Warn("config: unrecognized MCP_LOG_LEVEL, defaulting to info", raw)
		}
	}

	return cfg
}
