// Package main is the reference MCP server: a cobra CLI exposing the
// calculator/datetime/html_to_markdown tools, the user-profile and
// weather resources, and the file-backed prompt registry over stdio,
// HTTP+SSE or streamable HTTP.
package main

import (
	"fmt"

	"github.com/richard-senior/mcp/internal/config"
	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/prompts"
	"github.com/richard-senior/mcp/pkg/registry"
	"github.com/richard-senior/mcp/pkg/resources"
	"github.com/richard-senior/mcp/pkg/tools"
)

// buildRegistry assembles the fixed tool/resource catalog and starts the
// file-backed prompt registry watching its base directory. onPromptsChanged
// is invoked (from the watcher's own goroutine) whenever the prompt set is
// hot-reloaded, so the caller can broadcast notifications/prompts/list_changed.
func buildRegistry(onPromptsChanged func()) (*registry.Registry, *prompts.Registry, error) {
	return buildRegistryAt(prompts.DefaultBaseDir(), onPromptsChanged)
}

// buildRegistryAt is buildRegistry with an explicit prompt directory, so
// tests can exercise the wiring without touching the user's home directory.
func buildRegistryAt(promptsDir string, onPromptsChanged func()) (*registry.Registry, *prompts.Registry, error) {
	reg := registry.New()

	reg.RegisterTool(tools.AddTool())
	reg.RegisterTool(tools.SubtractTool())
	reg.RegisterTool(tools.MultiplyTool())
	reg.RegisterTool(tools.DivideTool())
	reg.RegisterTool(tools.EvaluateTool())
	reg.RegisterTool(tools.DateTimeTool())
	reg.RegisterTool(tools.HTMLToMarkdownTool())

	if err := reg.RegisterResourceBinding(resources.UserProfileBinding()); err != nil {
		return nil, nil, fmt.Errorf("registering user_profile binding: %w", err)
	}
	if err := reg.RegisterResourceBinding(resources.UserProfileLocalizedBinding()); err != nil {
		return nil, nil, fmt.Errorf("registering user_profile_localized binding: %w", err)
	}
	reg.RegisterStaticResource(resources.WeatherDataResource())
	reg.RegisterStaticResource(resources.AvatarResource())

	promptsReg, err := prompts.New(promptsDir, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("starting prompt registry: %w", err)
	}
	if err := promptsReg.Watch(onPromptsChanged); err != nil {
		logger.Warn("mcpserver: prompt directory watch failed, live reload disabled", err)
	}

	return reg, promptsReg, nil
}

// applyConfig sets the process-wide log level from cfg. It is the only
// piece of config.Config every subcommand honors unconditionally; OAuth
// settings are only consulted by the HTTP-based transports.
func applyConfig(cfg config.Config) {
	logger.SetLevel(cfg.LogLevel)
}
