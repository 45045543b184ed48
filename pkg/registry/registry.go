// Package registry is the immutable-after-startup catalog of tools,
// resource bindings and prompts a server exposes.
// Lookup by name is O(1); resource URIs are matched against declared
// templates in declaration order, first match wins.
package registry

import (
	"fmt"
	"sync"

	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/uritemplate"
)

// StaticResource is a non-templated, directly addressable resource
// surfaced by resources/list (as opposed to the parameterized bindings
// enumerated by resources/templates/list).
type StaticResource struct {
	Name        string
	Description string
	URI         string
	MIMEType    string
	Metadata    any
	Handler     mcptypes.ResourceHandlerFunc
}

type compiledBinding struct {
	binding   *mcptypes.ResourceBinding
	templates []*uritemplate.Template
}

// Registry holds the full tool/resource/prompt catalog. Tools and resource
// bindings are fixed at construction; prompts may be hot-swapped via
// SetPrompts to support the file-backed prompt registry's live reload
//
type Registry struct {
	mu              sync.RWMutex

	tools           []mcptypes.Tool
	toolByName      map[string]*mcptypes.Tool

	staticResources []StaticResource
	bindings        []compiledBinding

	prompts         []mcptypes.Prompt
	promptByName    map[string]*mcptypes.Prompt
}

func New() *Registry {
	return &Registry{
		toolByName: make(map[string]*mcptypes.Tool),
		promptByName: make(map[string]*mcptypes.Prompt),
	}
}

// RegisterTool adds a tool to the catalog. Not safe to call concurrently
// with lookups; intended for startup wiring only.
func (r *Registry) RegisterTool(t mcptypes.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, t)
	r.toolByName[t.Name] = &r.tools[len(r.tools)-1]
}

func (r *Registry) RegisterStaticResource(res StaticResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staticResources = append(r.staticResources, res)
}

// RegisterResourceBinding compiles and registers a templated resource.
// Returns an error if any of its URI templates fail to parse.
func (r *Registry) RegisterResourceBinding(b mcptypes.ResourceBinding) error {
	templates := make([]*uritemplate.Template, len(b.URITemplates))
	for i, raw := range b.URITemplates {
		tpl, err := uritemplate.Parse(raw)
		if err != nil {
			return fmt.Errorf("registry: resource %q: %w", b.Name, err)
		}
		templates[i] = tpl
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bb := b
	r.bindings = append(r.bindings, compiledBinding{binding: &bb, templates: templates})
	return nil
}

// SetPrompts atomically replaces the prompt catalog, used by the prompt
// registry's fsnotify-driven reload.
func (r *Registry) SetPrompts(prompts []mcptypes.Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = prompts
	r.promptByName = make(map[string]*mcptypes.Prompt, len(prompts))
	for i := range r.prompts {
		r.promptByName[r.prompts[i].Name] = &r.prompts[i]
	}
}

func (r *Registry) Tools() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcptypes.Tool(nil), r.tools...)
}

func (r *Registry) FindTool(name string) (*mcptypes.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.toolByName[name]
	return t, ok
}

func (r *Registry) StaticResources() []StaticResource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]StaticResource(nil), r.staticResources...)
}

func (r *Registry) ResourceBindings() []*mcptypes.ResourceBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mcptypes.ResourceBinding, len(r.bindings))
	for i, cb := range r.bindings {
		out[i] = cb.binding
	}
	return out
}

func (r *Registry) Prompts() []mcptypes.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcptypes.Prompt(nil), r.prompts...)
}

func (r *Registry) FindPrompt(name string) (*mcptypes.Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.promptByName[name]
	return p, ok
}

// MatchResource finds the first resource binding (in declaration order)
// whose URI template matches uri, and returns its handler plus the
// extracted variables. Static resources are checked first by exact URI.
func (r *Registry) MatchResource(uri string) (mcptypes.ResourceHandlerFunc, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sr := range r.staticResources {
		if sr.URI == uri && sr.Handler != nil {
			return sr.Handler, map[string]string{}, true
		}
	}
	for _, cb := range r.bindings {
		for _, tpl := range cb.templates {
			if vars, ok := tpl.Match(uri); ok {
				return cb.binding.Handler, vars, true
			}
		}
	}
	return nil, nil, false
}
