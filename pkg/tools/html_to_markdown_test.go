package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdownToolConvertsPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Example Page</title></head><body><h1>Hello</h1><p>World</p></body></html>`))
	}))
	defer server.Close()

	tool := HTMLToMarkdownTool()
	result, err := tool.Handler(map[string]any{"url": server.URL}, nil)
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Example Page", out["title"])
	assert.Contains(t, out["markdown"], "Hello")
	assert.Equal(t, server.URL, out["url"])
}

func TestHTMLToMarkdownToolRejectsMissingURL(t *testing.T) {
	tool := HTMLToMarkdownTool()
	_, err := tool.Handler(map[string]any{}, nil)
	assert.Error(t, err)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "https://example.com", extractDomain("https://example.com/page"))
	assert.Equal(t, "https://example.com", extractDomain("example.com/page"))
	assert.Equal(t, "http://example.com", extractDomain("http://example.com"))
}
