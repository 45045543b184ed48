// Package coerce converts the raw JSON object passed as a tool/resource/
// prompt call's "arguments" into a typed parameter map per the tool's
// declared input schema.
package coerce

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/schema"
	"github.com/richard-senior/mcp/pkg/util"
)

// Coerce decodes args against the object schema obj. The result only contains
// entries for properties declared on obj (unknown extra keys in args are
// dropped, matching additionalProperties:false tool schemas).
func Coerce(obj *schema.Schema, args map[string]any) (map[string]any, error) {
	return CoerceWith(nil, obj, args)
}

// CoerceWith is Coerce for schemas containing ref variants: every ref
// encountered while walking is resolved against arena, so recursive
// (self-referencing) parameter schemas coerce to arbitrary depth. A ref
// met with a nil arena is an error.
func CoerceWith(arena *schema.Arena, obj *schema.Schema, args map[string]any) (map[string]any, error) {
	if obj != nil && obj.Kind == schema.KindRef {
		resolved, err := derefSchema(arena, "", obj)
		if err != nil {
			return nil, err
		}
		obj = resolved
	}
	if obj == nil || obj.Kind != schema.KindObject {
		return nil, fmt.Errorf("coerce: schema is not an object")
	}
	if args == nil {
		args = map[string]any{}
	}

	required := make(map[string]bool, len(obj.Required))
	for _, r := range obj.Required {
		required[r] = true
	}

	out := make(map[string]any, len(obj.Properties))
	for name, propSchema := range obj.Properties {
		raw, present := args[name]

		// Missing required is an error; missing optional takes the default.
		if !present || raw == nil {
			if required[name] {
				return nil, mcptypes.ToolError{
					Kind: mcptypes.ErrMissingRequired,
					Parameter: name,
				}
			}
			if propSchema.Default != nil {
				out[name] = propSchema.Default
			} else {
				out[name] = nil
			}
			continue
		}

		coerced, err := coerceValue(arena, name, propSchema, raw)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}

func derefSchema(arena *schema.Arena, name string, s *schema.Schema) (*schema.Schema, error) {
	if arena == nil {
		if name == "" {
			return nil, fmt.Errorf("coerce: schema references %q but no schema arena was supplied", s.Ref)
		}
		return nil, fmt.Errorf("coerce: schema for %q references %q but no schema arena was supplied", name, s.Ref)
	}
	return arena.Resolve(s.Ref)
}

func coerceValue(arena *schema.Arena, name string, s *schema.Schema, raw any) (any, error) {
	if s.Kind == schema.KindRef {
		resolved, err := derefSchema(arena, name, s)
		if err != nil {
			return nil, err
		}
		s = resolved
	}
	switch s.Kind {
	case schema.KindEnum:
		// Accepts a case label or declared raw value, case-sensitive.
		str, ok := raw.(string)
		if !ok {
			var err error
			str, err = util.GetAsString(raw)
			if err != nil {
				return nil, invalidType(name, "string", raw)
			}
		}
		for _, allowed := range s.Values {
			if allowed == str {
				return str, nil
			}
		}
		return nil, mcptypes.ToolError{
			Kind: mcptypes.ErrInvalidEnumValue,
			Parameter: name,
			Allowed: s.Values,
			Actual: str,
		}

	case schema.KindNumber:
		// Best-effort string->number parse.
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, invalidType(name, "number", raw)
			}
			return f, nil
		default:
			return nil, invalidType(name, "number", raw)
		}

	case schema.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, invalidType(name, "boolean", raw)
		}
		return b, nil

	case schema.KindString:
		str, ok := raw.(string)
		if !ok {
			return nil, invalidType(name, "string", raw)
		}
		if s.Format == "url" || s.Format == "uri" {
			// Reject if parsing fails or scheme/host are missing.
			parsed, err := url.Parse(str)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				return nil, mcptypes.ToolError{
					Kind: mcptypes.ErrInvalidArgumentType,
					Parameter: name,
					Message: fmt.Sprintf("expected a valid URL, got %q", str),
				}
			}
		}
		return str, nil

	case schema.KindObject:
		// Nested objects decode recursively.
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, invalidType(name, "object", raw)
		}
		return CoerceWith(arena, s, m)

	case schema.KindArray:
		// Each element decodes per the item schema, order preserved.
		arr, ok := raw.([]any)
		if !ok {
			return nil, invalidType(name, "array", raw)
		}
		out := make([]any, len(arr))
		for i, elem := range arr {
			coerced, err := coerceValue(arena, fmt.Sprintf("%s[%d]", name, i), s.Items, elem)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil

	case schema.KindOneOf:
		var lastErr error
		for _, opt := range s.Options {
			v, err := coerceValue(arena, name, opt, raw)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		return nil, lastErr

	default:
		return nil, fmt.Errorf("coerce: unsupported schema kind %q for %q", s.Kind, name)
	}
}

func invalidType(name, expected string, got any) error {
	return mcptypes.ToolError{
		Kind: mcptypes.ErrInvalidArgumentType,
		Parameter: name,
		Message: fmt.Sprintf("expected type %s for %q, got %T", goTypeLabel(expected), name, got),
	}
}

// goTypeLabel maps a schema-level type name to the label surfaced in
// error messages ("expected type Int").
func goTypeLabel(schemaType string) string {
	switch schemaType {
	case "number":
		return "Int"
	case "string":
		return "String"
	case "boolean":
		return "Bool"
	case "object":
		return "Object"
	case "array":
		return "Array"
	default:
		return schemaType
	}
}
