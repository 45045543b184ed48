package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/mcptypes"
)

func TestRegisterToolAndFind(t *testing.T) {
	r := New()
	r.RegisterTool(mcptypes.Tool{Name: "add"})
	tool, ok := r.FindTool("add")
	require.True(t, ok)
	assert.Equal(t, "add", tool.Name)

	_, ok = r.FindTool("missing")
	assert.False(t, ok)
}

func TestMatchResourceDeclarationOrderFirstMatchWins(t *testing.T) {
	r := New()
	handlerA := func(vars map[string]string, ctx *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
		return &mcptypes.ResourceContent{Text: "A:" + vars["id"]}, nil
	}
	handlerB := func(vars map[string]string, ctx *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
		return &mcptypes.ResourceContent{Text: "B:" + vars["id"]}, nil
	}
	require.NoError(t, r.RegisterResourceBinding(mcptypes.ResourceBinding{
		Name:         "a",
		URITemplates: []string{"res://{id}"},
		Handler:      handlerA,
	}))
	require.NoError(t, r.RegisterResourceBinding(mcptypes.ResourceBinding{
		Name:         "b",
		URITemplates: []string{"res://{id}"},
		Handler:      handlerB,
	}))

	handler, vars, ok := r.MatchResource("res://42")
	require.True(t, ok)
	content, err := handler(vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "A:42", content.Text)
}

func TestSetPromptsReplacesCatalog(t *testing.T) {
	r := New()
	r.SetPrompts([]mcptypes.Prompt{{Name: "greeting"}})
	p, ok := r.FindPrompt("greeting")
	require.True(t, ok)
	assert.Equal(t, "greeting", p.Name)

	r.SetPrompts([]mcptypes.Prompt{{Name: "farewell"}})
	_, ok = r.FindPrompt("greeting")
	assert.False(t, ok)
}
