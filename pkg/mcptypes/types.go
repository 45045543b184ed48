// Package mcptypes holds the wire-level data model shared by the registry,
// dispatcher and transports: tools, resource bindings, prompts, content
// envelopes and their annotations, per the protocol.
package mcptypes

import "github.com/richard-senior/mcp/pkg/schema"

// ToolHints is a bitset of tool annotation hints.
type ToolHints uint8

const (
	HintReadOnly    ToolHints = 1 << iota // 1
	HintDestructive // 2
	HintIdempotent  // 4
	HintOpenWorld   // 8
)

func (h ToolHints) ReadOnly() bool { return h&HintReadOnly != 0 }
func (h ToolHints) Destructive() bool { return h&HintDestructive != 0 }
func (h ToolHints) Idempotent() bool { return h&HintIdempotent != 0 }
func (h ToolHints) OpenWorld() bool { return h&HintOpenWorld != 0 }

// IsConsequential derives whether a tool call's effects matter:
// !readOnly || destructive.
func (h ToolHints) IsConsequential() bool {
	return !h.ReadOnly() || h.Destructive()
}

// ToolAnnotations carries the optional human-facing hints a tool can
// declare. JSON field names are fixed by the wire protocol.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   bool   `json:"openWorldHint,omitempty"`
}

// HandlerFunc is the uniform interface every tool handler implements:
// decoded+coerced arguments in, a Content sequence or ToolError out.
// Whatever discovers tools (hand-written Go, or some future macro/codegen
// layer) only needs to produce values shaped like this.
type HandlerFunc func(args map[string]any, ctx *RequestContext) (any, error)

// Tool is a named callable exposed to clients via tools/list.
type Tool struct {
	Name        string
	Description string
	InputSchema *schema.Schema
	// SchemaArena resolves any ref schemas inside InputSchema, for tools
	// whose parameters are recursive. Nil for the common flat case.
	SchemaArena *schema.Arena
	Annotations *ToolAnnotations
	Hints       ToolHints
	Handler     HandlerFunc
}

// ParamMeta describes one resource-template or prompt parameter.
type ParamMeta struct {
	Name       string
	Schema     *schema.Schema
	IsOptional bool
	Default    any
	// Complete, if set, backs completion/complete for this parameter.
	Complete   CompletionFunc
}

// CompletionFunc suggests values for a partially-typed argument, given the
// values already bound for other parameters on the same call.
type CompletionFunc func(partial string, alreadyBound map[string]string) []string

// ResourceHandlerFunc reads a resource once its URI template has matched
// and its variables have been extracted.
type ResourceHandlerFunc func(vars map[string]string, ctx *RequestContext) (*ResourceContent, error)

// ResourceBinding is a (possibly templated) readable resource.
type ResourceBinding struct {
	Name         string
	Description  string
	URITemplates []string
	MIMEType     string
	Params       []ParamMeta
	Handler      ResourceHandlerFunc
}

// PromptRenderFunc renders a prompt's message list given its arguments.
type PromptRenderFunc func(args map[string]string) (string, error)

// Prompt is a parameterized text template the server renders on demand.
type Prompt struct {
	Name        string
	Description string
	Arguments   []ParamMeta
	Renderer    PromptRenderFunc
}

// ResourceContent is what a resource handler produces: either text or a
// base64 blob, matching the envelope resources/read returns.
type ResourceContent struct {
	URI      string
	MIMEType string
	Text     string
	Blob     []byte // mutually exclusive with Text
}

// ContentKind discriminates the Content sum type a tool result is encoded
// into.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentAudio    ContentKind = "audio"
	ContentResource ContentKind = "resource"
)

// Content is one element of a tools/call result's content array.
type Content struct {
	Type     ContentKind `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"` // base64, for image/audio
	MIMEType string `json:"mimeType,omitempty"`
}

func TextContent(s string) Content {
	return Content{Type: ContentText, Text: s}
}

func BlobContent(kind ContentKind, data []byte, mimeType string) Content {
	return Content{Type: kind, Data: encodeBase64(data), MIMEType: mimeType}
}
