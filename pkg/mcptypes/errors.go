package mcptypes

import "fmt"

// ToolErrorKind enumerates the domain failure kinds a tool dispatch can
// produce.
type ToolErrorKind string

const (
	ErrUnknownTool                   ToolErrorKind = "unknownTool"
	ErrInvalidArgumentType           ToolErrorKind = "invalidArgumentType"
	ErrMissingRequired               ToolErrorKind = "missingRequired"
	ErrInvalidEnumValue              ToolErrorKind = "invalidEnumValue"
	ErrNotFound                      ToolErrorKind = "notFound"
	ErrClientLacksCapability         ToolErrorKind = "clientLacksCapability"
	ErrCancelled                     ToolErrorKind = "cancelled"
	ErrTimeout                       ToolErrorKind = "timeout"
)

// ToolError is a coercion or handler-domain failure. Argument coercion
// failures surface as a JSON-RPC -32602 error; a handler that
// returns one from inside its own logic instead becomes a successful
// tools/call result with isError:true (the MCP contract that tool errors
// are observable to the model without tearing down the session).
type ToolError struct {
	Kind      ToolErrorKind
	Parameter string
	Allowed   []string
	Actual    string
	Message   string
}

func (e ToolError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case ErrMissingRequired:
		return fmt.Sprintf("missing required parameter %q", e.Parameter)
	case ErrInvalidEnumValue:
		return fmt.Sprintf("invalid value %q for parameter %q, allowed: %v", e.Actual, e.Parameter, e.Allowed)
	case ErrUnknownTool:
		return fmt.Sprintf("The tool '%s' was not found on the server", e.Parameter)
	case ErrClientLacksCapability:
		return fmt.Sprintf("client did not declare the %q capability during initialize", e.Parameter)
	default:
		return fmt.Sprintf("tool error: %s", e.Kind)
	}
}

// ResourceErrorKind enumerates resource lookup/read failures.
type ResourceErrorKind string

const (
	ResourceErrNotFound         ResourceErrorKind = "notFound"
	ResourceErrTemplateMismatch ResourceErrorKind = "templateMismatch"
	ResourceErrHandlerFailure   ResourceErrorKind = "handlerFailure"
)

type ResourceError struct {
	Kind ResourceErrorKind
	URI  string
	Err  error
}

func (e ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource %q: %s: %v", e.URI, e.Kind, e.Err)
	}
	return fmt.Sprintf("resource %q: %s", e.URI, e.Kind)
}

func (e ResourceError) Unwrap() error { return e.Err }

// AuthErrorKind enumerates JWT/OAuth validation failures.
type AuthErrorKind string

const (
	AuthErrJWENotSupported        AuthErrorKind = "jweNotSupported"
	AuthErrInvalidFormat          AuthErrorKind = "invalidFormat"
	AuthErrInvalidBase64          AuthErrorKind = "invalidBase64"
	AuthErrInvalidJSON            AuthErrorKind = "invalidJSON"
	AuthErrUnsupportedAlgorithm   AuthErrorKind = "unsupportedAlgorithm"
	AuthErrKeyNotFound            AuthErrorKind = "keyNotFound"
	AuthErrSignatureFailed        AuthErrorKind = "signatureFailed"
	AuthErrExpired                AuthErrorKind = "expired"
	AuthErrNotYetValid            AuthErrorKind = "notYetValid"
	AuthErrInvalidIssuer          AuthErrorKind = "invalidIssuer"
	AuthErrInvalidAudience        AuthErrorKind = "invalidAudience"
	AuthErrInvalidAuthorizedParty AuthErrorKind = "invalidAuthorizedParty"
)

type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("auth error: %s", e.Kind)
}

func (e AuthError) Unwrap() error { return e.Err }

// TransportError terminates the owning session.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e TransportError) Unwrap() error { return e.Err }
