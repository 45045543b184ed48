package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/coerce"
)

func TestAddToolSucceeds(t *testing.T) {
	tool := AddTool()
	args, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(2), "b": float64(3)})
	require.NoError(t, err)

	result, err := tool.Handler(args, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(5), result)
}

func TestAddToolRejectsNonNumericArgument(t *testing.T) {
	tool := AddTool()
	_, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": "x", "b": float64(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected type Int")
}

func TestAddToolRejectsMissingArgument(t *testing.T) {
	tool := AddTool()
	_, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(2)})
	require.Error(t, err)
}

func TestSubtractTool(t *testing.T) {
	tool := SubtractTool()
	args, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(10), "b": float64(4)})
	require.NoError(t, err)
	result, err := tool.Handler(args, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(6), result)
}

func TestMultiplyTool(t *testing.T) {
	tool := MultiplyTool()
	args, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(3), "b": float64(4)})
	require.NoError(t, err)
	result, err := tool.Handler(args, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(12), result)
}

func TestDivideToolRejectsZeroDivisor(t *testing.T) {
	tool := DivideTool()
	args, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(4), "b": float64(0)})
	require.NoError(t, err)

	_, err = tool.Handler(args, nil)
	require.Error(t, err)
}

func TestDivideTool(t *testing.T) {
	tool := DivideTool()
	args, err := coerce.Coerce(tool.InputSchema, map[string]any{"a": float64(9), "b": float64(3)})
	require.NoError(t, err)
	result, err := tool.Handler(args, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), result)
}

func TestEvaluateToolComputesNestedExpression(t *testing.T) {
	tool := EvaluateTool()
	// (2 + 3) * 4
	args, err := coerce.CoerceWith(tool.SchemaArena, tool.InputSchema, map[string]any{
		"expression": map[string]any{
			"op": "multiply",
			"left": map[string]any{
				"op":    "add",
				"left":  float64(2),
				"right": float64(3),
			},
			"right": float64(4),
		},
	})
	require.NoError(t, err)

	result, err := tool.Handler(args, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(20), result)
}

func TestEvaluateToolRejectsUnknownOperation(t *testing.T) {
	tool := EvaluateTool()
	_, err := coerce.CoerceWith(tool.SchemaArena, tool.InputSchema, map[string]any{
		"expression": map[string]any{
			"op":    "modulo",
			"left":  float64(5),
			"right": float64(2),
		},
	})
	require.Error(t, err)
}

func TestEvaluateToolRejectsDivisionByZero(t *testing.T) {
	tool := EvaluateTool()
	args, err := coerce.CoerceWith(tool.SchemaArena, tool.InputSchema, map[string]any{
		"expression": map[string]any{
			"op":    "divide",
			"left":  float64(1),
			"right": float64(0),
		},
	})
	require.NoError(t, err)

	_, err = tool.Handler(args, nil)
	require.Error(t, err)
}

func TestEvaluateToolSchemaMarshalsSelfContained(t *testing.T) {
	tool := EvaluateTool()
	data, err := json.Marshal(tool.InputSchema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"$defs"`)
	assert.Contains(t, string(data), `"$ref":"#/$defs/expression"`)
}
