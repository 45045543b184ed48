package schema

import "fmt"

// Arena owns a set of named schemas that ref schemas (see Self) resolve
// against, so a recursive type can point at itself by name instead of by
// owned value. It is not safe for concurrent writes; registries build
// their Arena once at startup and only read from it afterwards.
type Arena struct {
	byName map[string]*Schema
}

func NewArena() *Arena {
	return &Arena{byName: make(map[string]*Schema)}
}

// Define stores (or replaces) a named schema in the arena.
func (a *Arena) Define(name string, s *Schema) {
	a.byName[name] = s
}

// Resolve looks up a schema by name, as recorded by Define.
func (a *Arena) Resolve(name string) (*Schema, error) {
	s, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("schema: no arena entry named %q", name)
	}
	return s, nil
}

// Deref resolves a ref schema against the arena; any other schema passes
// through unchanged.
func (a *Arena) Deref(s *Schema) (*Schema, error) {
	if s == nil || s.Kind != KindRef {
		return s, nil
	}
	return a.Resolve(s.Ref)
}

// Defs snapshots the arena's entries as a $defs map, for attaching to a
// root schema so its wire form is self-contained.
func (a *Arena) Defs() map[string]*Schema {
	out := make(map[string]*Schema, len(a.byName))
	for k, v := range a.byName {
		out[k] = v
	}
	return out
}

// Self returns a ref schema standing in for the arena entry of the given
// name. Walking it requires the owning arena (see Deref); on the wire it
// marshals as {"$ref": "#/$defs/<name>"}.
func Self(name string) *Schema {
	return &Schema{Kind: KindRef, Ref: name}
}
