package coerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/schema"
)

func calculatorSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"a": schema.Number(),
		"b": schema.Number(),
	}, "a", "b")
}

func TestCoerceNumbersPassThrough(t *testing.T) {
	out, err := Coerce(calculatorSchema(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out["a"])
	assert.Equal(t, 3.0, out["b"])
}

func TestCoerceNumberFromString(t *testing.T) {
	out, err := Coerce(calculatorSchema(), map[string]any{"a": "2.5", "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 2.5, out["a"])
}

func TestCoerceNumberFromBadStringFails(t *testing.T) {
	_, err := Coerce(calculatorSchema(), map[string]any{"a": "x", "b": 3.0})
	require.Error(t, err)
	toolErr, ok := err.(mcptypes.ToolError)
	require.True(t, ok)
	assert.Equal(t, mcptypes.ErrInvalidArgumentType, toolErr.Kind)
	assert.Contains(t, toolErr.Error(), "expected type Int")
}

func TestCoerceMissingRequired(t *testing.T) {
	_, err := Coerce(calculatorSchema(), map[string]any{"a": 2.0})
	require.Error(t, err)
	toolErr, ok := err.(mcptypes.ToolError)
	require.True(t, ok)
	assert.Equal(t, mcptypes.ErrMissingRequired, toolErr.Kind)
	assert.Equal(t, "b", toolErr.Parameter)
}

func TestCoerceMissingOptionalUsesDefault(t *testing.T) {
	format := schema.String()
	format.Default = "iso8601"
	s := schema.Object(map[string]*schema.Schema{"format": format})

	out, err := Coerce(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "iso8601", out["format"])
}

func TestCoerceMissingOptionalWithoutDefaultIsNil(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{"note": schema.String()})
	out, err := Coerce(s, map[string]any{})
	require.NoError(t, err)
	v, present := out["note"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestCoerceEnumAcceptsLabel(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"op": schema.Enum("add", "subtract"),
	}, "op")
	out, err := Coerce(s, map[string]any{"op": "add"})
	require.NoError(t, err)
	assert.Equal(t, "add", out["op"])
}

func TestCoerceEnumIsCaseSensitive(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"op": schema.Enum("add", "subtract"),
	}, "op")
	_, err := Coerce(s, map[string]any{"op": "Add"})
	require.Error(t, err)
	toolErr, ok := err.(mcptypes.ToolError)
	require.True(t, ok)
	assert.Equal(t, mcptypes.ErrInvalidEnumValue, toolErr.Kind)
	assert.Equal(t, []string{"add", "subtract"}, toolErr.Allowed)
	assert.Equal(t, "Add", toolErr.Actual)
}

func TestCoerceEnumAcceptsNumericRawValue(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"level": schema.Enum("1", "2", "3"),
	}, "level")
	out, err := Coerce(s, map[string]any{"level": 2})
	require.NoError(t, err)
	assert.Equal(t, "2", out["level"])
}

func TestCoerceURLFormat(t *testing.T) {
	u := schema.String()
	u.Format = "url"
	s := schema.Object(map[string]*schema.Schema{"url": u}, "url")

	out, err := Coerce(s, map[string]any{"url": "https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", out["url"])

	_, err = Coerce(s, map[string]any{"url": "not a url"})
	require.Error(t, err)
}

func TestCoerceNestedObject(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"point": schema.Object(map[string]*schema.Schema{
			"x": schema.Number(),
			"y": schema.Number(),
		}, "x", "y"),
	}, "point")

	out, err := Coerce(s, map[string]any{"point": map[string]any{"x": 1.0, "y": "2"}})
	require.NoError(t, err)
	point := out["point"].(map[string]any)
	assert.Equal(t, 1.0, point["x"])
	assert.Equal(t, 2.0, point["y"])

	_, err = Coerce(s, map[string]any{"point": map[string]any{"x": 1.0}})
	require.Error(t, err)
}

func TestCoerceArrayPreservesOrder(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"values": schema.Array(schema.Number()),
	}, "values")

	out, err := Coerce(s, map[string]any{"values": []any{"3", 1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 1.0, 2.0}, out["values"])
}

func TestCoerceArrayElementFailureNamesIndex(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"values": schema.Array(schema.Number()),
	}, "values")

	_, err := Coerce(s, map[string]any{"values": []any{1.0, "nope"}})
	require.Error(t, err)
	toolErr, ok := err.(mcptypes.ToolError)
	require.True(t, ok)
	assert.Equal(t, "values[1]", toolErr.Parameter)
}

func TestCoerceOneOfTriesEachOption(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"v": schema.OneOf(schema.Number(), schema.Boolean()),
	}, "v")

	out, err := Coerce(s, map[string]any{"v": true})
	require.NoError(t, err)
	assert.Equal(t, true, out["v"])

	out, err = Coerce(s, map[string]any{"v": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, out["v"])
}

func TestCoerceDropsUndeclaredKeys(t *testing.T) {
	out, err := Coerce(calculatorSchema(), map[string]any{"a": 1.0, "b": 2.0, "extra": "x"})
	require.NoError(t, err)
	_, present := out["extra"]
	assert.False(t, present)
}

func TestCoerceRejectsNonObjectSchema(t *testing.T) {
	_, err := Coerce(schema.Number(), map[string]any{})
	require.Error(t, err)
}

func TestCoerceWithResolvesRecursiveRefs(t *testing.T) {
	arena := schema.NewArena()
	arena.Define("node", schema.Object(map[string]*schema.Schema{
		"value": schema.Number(),
		"next":  schema.OneOf(schema.Number(), schema.Self("node")),
	}, "value"))

	root := schema.Object(map[string]*schema.Schema{
		"tree": schema.Self("node"),
	}, "tree")

	out, err := CoerceWith(arena, root, map[string]any{
		"tree": map[string]any{
			"value": "1",
			"next": map[string]any{
				"value": 2.0,
			},
		},
	})
	require.NoError(t, err)
	tree := out["tree"].(map[string]any)
	assert.Equal(t, 1.0, tree["value"])
	inner := tree["next"].(map[string]any)
	assert.Equal(t, 2.0, inner["value"])
}

func TestCoerceWithReportsFailureAtDepth(t *testing.T) {
	arena := schema.NewArena()
	arena.Define("node", schema.Object(map[string]*schema.Schema{
		"value": schema.Number(),
		"next":  schema.Self("node"),
	}, "value"))

	root := schema.Object(map[string]*schema.Schema{
		"tree": schema.Self("node"),
	}, "tree")

	_, err := CoerceWith(arena, root, map[string]any{
		"tree": map[string]any{
			"value": 1.0,
			"next":  map[string]any{"value": "nope"},
		},
	})
	require.Error(t, err)
	toolErr, ok := err.(mcptypes.ToolError)
	require.True(t, ok)
	assert.Equal(t, mcptypes.ErrInvalidArgumentType, toolErr.Kind)
}

func TestCoerceRefWithoutArenaFails(t *testing.T) {
	root := schema.Object(map[string]*schema.Schema{
		"tree": schema.Self("node"),
	}, "tree")

	_, err := Coerce(root, map[string]any{"tree": map[string]any{"value": 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arena")
}

func TestCoerceWithUnknownRefNameFails(t *testing.T) {
	arena := schema.NewArena()
	root := schema.Object(map[string]*schema.Schema{
		"tree": schema.Self("missing"),
	}, "tree")

	_, err := CoerceWith(arena, root, map[string]any{"tree": map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}
