// Package dispatcher is the transport-agnostic request engine: it takes a
// decoded protocol.Message plus the session it arrived on, runs the right
// handler against the registry, and hands back whatever the transport
// should write to the wire.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/coerce"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/registry"
	"github.com/richard-senior/mcp/pkg/session"
	"github.com/richard-senior/mcp/pkg/util"
)

// Sender is how the dispatcher pushes messages it originates - responses,
// notifications, server-initiated requests - back out over whichever
// transport owns a given session.
type Sender interface {
	Send(sessionID string, msg protocol.Message) error
}

// logLevelPriority follows syslog severity ordering; lower is more severe.
var logLevelPriority = map[string]int{
	"emergency": 0,
	"alert": 1,
	"critical": 2,
	"error": 3,
	"warning": 4,
	"notice": 5,
	"info": 6,
	"debug": 7,
}

// Dispatcher wires a registry and a session store to the protocol's method
// table, plus its bidirectional server-initiated request channel.
type Dispatcher struct {
	reg           *registry.Registry
	sessions      *session.Store
	sender        Sender

	ServerName    string
	ServerVersion string

	mu            sync.Mutex
	inbound       map[string]map[string]context.CancelFunc // sessionID -> requestID -> cancel
}

func New(reg *registry.Registry, sessions *session.Store, sender Sender) *Dispatcher {
	return &Dispatcher{
		reg: reg,
		sessions: sessions,
		sender: sender,
		ServerName: "mcp-reference-server",
		ServerVersion: "0.1.0",
		inbound: make(map[string]map[string]context.CancelFunc),
	}
}

// Handle routes one decoded inbound message for sessionID. Requests get a
// response or error written back through the Sender; notifications never
// produce a reply; response/error-response messages resolve a pending
// outbound (server->client) call on the session.
func (d *Dispatcher) Handle(ctx context.Context, sessionID string, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Request:
		d.handleRequest(ctx, sessionID, m)
	case protocol.Notification:
		d.handleNotification(sessionID, m)
	case protocol.Response:
		d.resolveOutbound(sessionID, m.ID, decodeAny(m.Result), nil)
	case protocol.ErrorResponse:
		d.resolveOutbound(sessionID, m.ID, nil, m.Error)
	}
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}

func (d *Dispatcher) resolveOutbound(sessionID string, id protocol.Id, result any, callErr error) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return
	}
	n, ok := id.Int64()
	if !ok {
		return
	}
	sess.Resolve(n, result, callErr)
}

// outboundCall issues a server-initiated request to the client over sess's
// transport and blocks until the client answers, the caller's ctx is done,
// or the session closes out from under it.
func (d *Dispatcher) outboundCall(ctx context.Context, sess *session.Session, method string, params any) (any, error) {
	id, pending := sess.NewOutbound(method)
	req, err := protocol.NewRequest(method, params, id)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: failed to build outbound %s request: %w", method, err)
	}
	d.reply(sess.ID(), req)

	select {
	case res := <-pending.Done:
		return res.Result, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// elicitFunc returns the RequestContext.Elicit closure bound to sess: an
// elicitation/create round trip, short-circuited with
// ErrClientLacksCapability if the client never declared elicitation support
// during initialize.
func (d *Dispatcher) elicitFunc(sess *session.Session) func(ctx context.Context, prompt string, schemaJSON any) (map[string]any, error) {
	return func(ctx context.Context, prompt string, schemaJSON any) (map[string]any, error) {
		if !sess.ClientCapabilities().Elicitation {
			return nil, mcptypes.ToolError{Kind: mcptypes.ErrClientLacksCapability, Parameter: "elicitation"}
		}
		result, err := d.outboundCall(ctx, sess, string(protocol.MethodElicitationCreate), map[string]any{
			"message": prompt,
			"requestedSchema": schemaJSON,
		})
		if err != nil {
			return nil, err
		}
		m, _ := result.(map[string]any)
		return m, nil
	}
}

// sampleFunc returns the RequestContext.Sample closure bound to sess: a
// sampling/createMessage round trip, short-circuited with
// ErrClientLacksCapability if the client never declared sampling support.
func (d *Dispatcher) sampleFunc(sess *session.Session) func(ctx context.Context, req any) (any, error) {
	return func(ctx context.Context, req any) (any, error) {
		if !sess.ClientCapabilities().Sampling {
			return nil, mcptypes.ToolError{Kind: mcptypes.ErrClientLacksCapability, Parameter: "sampling"}
		}
		return d.outboundCall(ctx, sess, string(protocol.MethodSamplingCreateMessage), req)
	}
}

// requestRootsFunc returns the RequestContext.RequestRoots closure bound to
// sess: a roots/list round trip, short-circuited with
// ErrClientLacksCapability if the client never declared roots support.
func (d *Dispatcher) requestRootsFunc(sess *session.Session) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		if !sess.ClientCapabilities().Roots {
			return nil, mcptypes.ToolError{Kind: mcptypes.ErrClientLacksCapability, Parameter: "roots"}
		}
		result, err := d.outboundCall(ctx, sess, string(protocol.MethodRootsList), map[string]any{})
		if err != nil {
			return nil, err
		}
		m, ok := result.(map[string]any)
		if !ok {
			return nil, nil
		}
		entries, _ := m["roots"].([]any)
		roots := make([]string, 0, len(entries))
		for _, e := range entries {
			if entry, ok := e.(map[string]any); ok {
				if uri, ok := entry["uri"].(string); ok {
					roots = append(roots, uri)
				}
			}
		}
		sess.SetRoots(roots)
		return roots, nil
	}
}

func (d *Dispatcher) handleNotification(sessionID string, n protocol.Notification) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return
	}
	switch n.Method {
	case string(protocol.MethodInitialized):
		sess.Activate()
	case string(protocol.MethodCancelled):
		// requestId can arrive as a string or a number; protocol.Id
		// accepts both.
		var params struct {
			RequestID protocol.Id `json:"requestId"`
		}
		_ = json.Unmarshal(n.Params, &params)
		d.cancelInbound(sessionID, params.RequestID.String())
	default:
		logger.Debug("dispatcher: unhandled notification", n.Method)
	}
}

func (d *Dispatcher) registerInbound(sessionID, requestID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inbound[sessionID] == nil {
		d.inbound[sessionID] = make(map[string]context.CancelFunc)
	}
	d.inbound[sessionID][requestID] = cancel
}

func (d *Dispatcher) unregisterInbound(sessionID, requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inbound[sessionID], requestID)
}

func (d *Dispatcher) cancelInbound(sessionID, requestID string) {
	d.mu.Lock()
	cancel, ok := d.inbound[sessionID][requestID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Dispatcher) handleRequest(parent context.Context, sessionID string, req protocol.Request) {
	logger.Info(">>", req.Method)

	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		d.reply(sessionID, protocol.NewErrorResponse(protocol.ErrInternal, "unknown session", nil, req.ID))
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	d.registerInbound(sessionID, req.ID.String(), cancel)
	defer d.unregisterInbound(sessionID, req.ID.String())

	rc := &mcptypes.RequestContext{
		Context: ctx,
		SessionID: sessionID,
		RequestID: req.ID.String(),
		Progress: d.progressFunc(sessionID, req.ID),
		Log: d.logFunc(sessionID),
		Elicit: d.elicitFunc(sess),
		Sample: d.sampleFunc(sess),
		RequestRoots: d.requestRootsFunc(sess),
	}

	result, callErr := d.dispatchMethod(ctx, sess, rc, req.Method, req.Params)

	if ctx.Err() != nil {
		d.reply(sessionID, protocol.NewErrorResponse(protocol.ErrCancelled, "request cancelled", nil, req.ID))
		return
	}

	if callErr != nil {
		if rpcErr, ok := callErr.(*protocol.JsonRpcError); ok {
			d.reply(sessionID, protocol.NewErrorResponse(rpcErr.Code, rpcErr.Message, rpcErr.Data, req.ID))
			return
		}
		if toolErr, ok := callErr.(mcptypes.ToolError); ok {
			d.reply(sessionID, protocol.NewErrorResponse(protocol.ErrInvalidParams, toolErr.Error(), nil, req.ID))
			return
		}
		d.reply(sessionID, protocol.NewErrorResponse(protocol.ErrServer, callErr.Error(), nil, req.ID))
		return
	}

	resp, err := protocol.NewResponse(result, req.ID)
	if err != nil {
		d.reply(sessionID, protocol.NewErrorResponse(protocol.ErrInternal, "failed to marshal result: "+err.Error(), nil, req.ID))
		return
	}
	d.reply(sessionID, resp)
}

func (d *Dispatcher) reply(sessionID string, msg protocol.Message) {
	if err := d.sender.Send(sessionID, msg); err != nil {
		logger.Error("dispatcher: failed to send reply", err)
	}
}

// BroadcastNotification sends a parameterless notification of the given
// method to every currently connected session, e.g. a file-backed prompt
// registry reloading and emitting notifications/prompts/list_changed.
func (d *Dispatcher) BroadcastNotification(method string) {
	n, err := protocol.NewNotification(method, nil)
	if err != nil {
		logger.Error("dispatcher: failed to build broadcast notification", err)
		return
	}
	for _, id := range d.sessions.IDs() {
		d.reply(id, n)
	}
}

func (d *Dispatcher) progressFunc(sessionID string, requestID protocol.Id) mcptypes.ProgressFunc {
	return func(progress, total float64, message string) {
		n, _ := protocol.NewNotification(string(protocol.NotificationProgress), map[string]any{
			"progressToken": requestID.String(),
			"progress": progress,
			"total": total,
			"message": message,
		})
		d.reply(sessionID, n)
	}
}

func (d *Dispatcher) logFunc(sessionID string) mcptypes.LogFunc {
	return func(level, loggerName string, data any) {
		sess, ok := d.sessions.Get(sessionID)
		if !ok {
			return
		}
		if logLevelPriority[level] > logLevelPriority[sess.MinimumLogLevel()] {
			return
		}
		n, _ := protocol.NewNotification(string(protocol.NotificationMessage), map[string]any{
			"level": level,
			"logger": loggerName,
			"data": data,
		})
		d.reply(sessionID, n)
	}
}

func (d *Dispatcher) dispatchMethod(ctx context.Context, sess *session.Session, rc *mcptypes.RequestContext, method string, params json.RawMessage) (any, error) {
	switch method {
	case string(protocol.MethodInitialize):
		return d.handleInitialize(sess, params)
	case string(protocol.MethodPing):
		return map[string]any{}, nil
	case string(protocol.MethodToolsList):
		return d.handleToolsList()
	case string(protocol.MethodToolsCall):
		return d.handleToolsCall(rc, params)
	case string(protocol.MethodResourcesList):
		return d.handleResourcesList()
	case string(protocol.MethodResourceTmpls):
		return d.handleResourceTemplatesList()
	case string(protocol.MethodResourcesRead):
		return d.handleResourcesRead(rc, params)
	case string(protocol.MethodResourcesSub):
		return d.handleResourcesSubscribe(sess, params, true)
	case string(protocol.MethodResourcesUnsub):
		return d.handleResourcesSubscribe(sess, params, false)
	case string(protocol.MethodPromptsList):
		return d.handlePromptsList()
	case string(protocol.MethodPromptsGet):
		return d.handlePromptsGet(params)
	case string(protocol.MethodLoggingSet):
		return d.handleLoggingSetLevel(sess, params)
	case string(protocol.MethodCompletion):
		return d.handleCompletion(params)
	default:
		return nil, &protocol.JsonRpcError{Code: protocol.ErrMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	Capabilities    struct {
		Roots           json.RawMessage `json:"roots"`
		Sampling        json.RawMessage `json:"sampling"`
		Elicitation     json.RawMessage `json:"elicitation"`
	} `json:"capabilities"`
}

func (d *Dispatcher) handleInitialize(sess *session.Session, raw json.RawMessage) (any, error) {
	var p initializeParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	version := p.ProtocolVersion
	if version == "" {
		version = protocol.ProtocolVersion
	}

	client := session.Capabilities{
		Roots: p.Capabilities.Roots != nil,
		Sampling: p.Capabilities.Sampling != nil,
		Elicitation: p.Capabilities.Elicitation != nil,
	}
	server := session.Capabilities{}
	sess.Negotiate(client, server, version)

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
			"resources": map[string]any{"listChanged": false, "subscribe": true},
			"prompts": map[string]any{"listChanged": true},
			"logging": map[string]any{},
			"completions": map[string]any{},
			"experimental": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name": d.ServerName,
			"version": d.ServerVersion,
		},
	}, nil
}

func (d *Dispatcher) handleToolsList() (any, error) {
	tools := d.reg.Tools()
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		entry := map[string]any{
			"name": t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		}
		if t.Annotations != nil {
			entry["annotations"] = t.Annotations
		}
		out = append(out, entry)
	}
	return map[string]any{"tools": out}, nil
}

type toolsCallParams struct {
	Name      string `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (d *Dispatcher) handleToolsCall(rc *mcptypes.RequestContext, raw json.RawMessage) (any, error) {
	var p toolsCallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}

	tool, ok := d.reg.FindTool(p.Name)
	if !ok {
		toolErr := mcptypes.ToolError{Kind: mcptypes.ErrUnknownTool, Parameter: p.Name}
		if suggestion, found := d.suggestToolName(p.Name); found {
			toolErr.Message = fmt.Sprintf("the tool %q was not found on the server, did you mean %q?", p.Name, suggestion)
		}
		return toolErrorResult(toolErr), nil
	}

	args, err := coerce.CoerceWith(tool.SchemaArena, tool.InputSchema, p.Arguments)
	if err != nil {
		if toolErr, ok := err.(mcptypes.ToolError); ok {
			return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: toolErr.Error()}
		}
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}

	result, err := tool.Handler(args, rc)
	if err != nil {
		return toolErrorResult(err), nil
	}
	return successToolResult(result), nil
}

// suggestToolName scores name against every registered tool's name with
// util.FuzzyMatchScore and returns the closest one, if it's close enough to
// be worth surfacing in an unknownTool error.
func (d *Dispatcher) suggestToolName(name string) (string, bool) {
	const minScore = 0.5

	best := ""
	bestScore := 0.0
	for _, tool := range d.reg.Tools() {
		score := util.FuzzyMatchScore(name, tool.Name)
		if score > bestScore {
			bestScore = score
			best = tool.Name
		}
	}
	if bestScore < minScore {
		return "", false
	}
	return best, true
}

func toolErrorResult(err error) map[string]any {
	return map[string]any{
		"isError": true,
		"content": []mcptypes.Content{mcptypes.TextContent(err.Error())},
	}
}

func successToolResult(result any) map[string]any {
	content := toContentList(result)
	return map[string]any{
		"isError": false,
		"content": content,
	}
}

// toContentList implements the result envelope: an explicit
// []mcptypes.Content or single Content passes through; everything else is
// stringified as compact JSON (bare, unquoted, for strings/numbers).
func toContentList(result any) []mcptypes.Content {
	switch v := result.(type) {
	case []mcptypes.Content:
		return v
	case mcptypes.Content:
		return []mcptypes.Content{v}
	case string:
		return []mcptypes.Content{mcptypes.TextContent(v)}
	case nil:
		return []mcptypes.Content{mcptypes.TextContent("")}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return []mcptypes.Content{mcptypes.TextContent(fmt.Sprintf("%v", v))}
		}
		return []mcptypes.Content{mcptypes.TextContent(string(b))}
	}
}

func (d *Dispatcher) handleResourcesList() (any, error) {
	statics := d.reg.StaticResources()
	out := make([]map[string]any, 0, len(statics))
	for _, r := range statics {
		out = append(out, map[string]any{
			"name": r.Name,
			"description": r.Description,
			"uri": r.URI,
			"mimeType": r.MIMEType,
		})
	}
	return map[string]any{"resources": out}, nil
}

func (d *Dispatcher) handleResourceTemplatesList() (any, error) {
	bindings := d.reg.ResourceBindings()
	out := make([]map[string]any, 0, len(bindings))
	for _, b := range bindings {
		for _, tpl := range b.URITemplates {
			out = append(out, map[string]any{
				"name": b.Name,
				"description": b.Description,
				"uriTemplate": tpl,
				"mimeType": b.MIMEType,
			})
		}
	}
	return map[string]any{"resourceTemplates": out}, nil
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) handleResourcesRead(rc *mcptypes.RequestContext, raw json.RawMessage) (any, error) {
	var p resourcesReadParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid resources/read params: " + err.Error()}
	}
	handler, vars, ok := d.reg.MatchResource(p.URI)
	if !ok {
		return nil, mcptypes.ResourceError{Kind: mcptypes.ResourceErrNotFound, URI: p.URI}
	}
	content, err := handler(vars, rc)
	if err != nil {
		return nil, mcptypes.ResourceError{Kind: mcptypes.ResourceErrHandlerFailure, URI: p.URI, Err: err}
	}
	entry := map[string]any{"uri": content.URI, "mimeType": content.MIMEType}
	if content.Blob != nil {
		entry["blob"] = mcptypes.BlobContent(mcptypes.ContentResource, content.Blob, content.MIMEType).Data
	} else {
		entry["text"] = content.Text
	}
	return map[string]any{"contents": []map[string]any{entry}}, nil
}

type subscribeParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) handleResourcesSubscribe(sess *session.Session, raw json.RawMessage, subscribe bool) (any, error) {
	var p subscribeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	if subscribe {
		sess.Subscribe(p.URI)
	} else {
		sess.Unsubscribe(p.URI)
	}
	return map[string]any{}, nil
}

func (d *Dispatcher) handlePromptsList() (any, error) {
	prompts := d.reg.Prompts()
	out := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		args := make([]map[string]any, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, map[string]any{
				"name": a.Name,
				"required": !a.IsOptional,
			})
		}
		out = append(out, map[string]any{
			"name": p.Name,
			"description": p.Description,
			"arguments": args,
		})
	}
	return map[string]any{"prompts": out}, nil
}

type promptsGetParams struct {
	Name      string `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (d *Dispatcher) handlePromptsGet(raw json.RawMessage) (any, error) {
	var p promptsGetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	prompt, ok := d.reg.FindPrompt(p.Name)
	if !ok {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrServer, Message: fmt.Sprintf("prompt %q not found", p.Name)}
	}
	text, err := prompt.Renderer(p.Arguments)
	if err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrServer, Message: err.Error()}
	}
	return map[string]any{
		"description": prompt.Description,
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{"type": "text", "text": text}},
		},
	}, nil
}

type loggingSetLevelParams struct {
	Level string `json:"level"`
}

func (d *Dispatcher) handleLoggingSetLevel(sess *session.Session, raw json.RawMessage) (any, error) {
	var p loggingSetLevelParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	if _, ok := logLevelPriority[strings.ToLower(p.Level)]; !ok {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: fmt.Sprintf("unknown log level %q", p.Level)}
	}
	sess.SetMinimumLogLevel(strings.ToLower(p.Level))
	return map[string]any{}, nil
}

type completionParams struct {
	Ref          map[string]string `json:"ref"`
	Argument     struct {
		Name         string `json:"name"`
		Value        string `json:"value"`
	} `json:"argument"`
	AlreadyBound map[string]string `json:"context"`
}

func (d *Dispatcher) handleCompletion(raw json.RawMessage) (any, error) {
	var p completionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}

	var params []mcptypes.ParamMeta
	switch p.Ref["type"] {
	case "ref/prompt":
		prompt, ok := d.reg.FindPrompt(p.Ref["name"])
		if !ok {
			return map[string]any{"completion": map[string]any{"values": []string{}}}, nil
		}
		params = prompt.Arguments
	case "ref/resource":
		for _, b := range d.reg.ResourceBindings() {
			if b.Name == p.Ref["name"] {
				params = b.Params
				break
			}
		}
	}

	for _, param := range params {
		if param.Name != p.Argument.Name || param.Complete == nil {
			continue
		}
		values := param.Complete(p.Argument.Value, p.AlreadyBound)
		return map[string]any{
			"completion": map[string]any{
				"values": values,
				"total": len(values),
				"hasMore": false,
			},
		}, nil
	}
	return map[string]any{"completion": map[string]any{"values": []string{}}}, nil
}
