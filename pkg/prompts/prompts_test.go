package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/registry"
)

func writePromptFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewLoadsExistingPrompts(t *testing.T) {
	dir := t.TempDir()
	writePromptFile(t, dir, "greeting.json", `{
		"name": "greeting",
		"description": "says hello",
		"content": "Hello, {{name}}!",
		"arguments": [{"name":"name","required":true}]
	}`)

	reg := registry.New()
	_, err := New(dir, reg)
	require.NoError(t, err)

	prompts := reg.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "greeting", prompts[0].Name)

	rendered, err := prompts[0].Renderer(map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", rendered)
}

func TestNewSkipsUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	writePromptFile(t, dir, "broken.json", `not json`)

	reg := registry.New()
	_, err := New(dir, reg)
	require.NoError(t, err)
	assert.Empty(t, reg.Prompts())
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	pr, err := New(dir, reg)
	require.NoError(t, err)
	defer pr.Close()

	reloaded := make(chan struct{}, 1)
	require.NoError(t, pr.Watch(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}))

	writePromptFile(t, dir, "new.json", `{"name":"new","description":"d","content":"hi"}`)

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}

	assert.Len(t, reg.Prompts(), 1)
}
