// Package tools holds the server's demonstration tool bindings: a small
// arithmetic calculator, a datetime helper and an HTML-to-markdown
// fetcher. Each is a plain mcptypes.Tool built from the schema/registry
// stack.
package tools

import (
	"fmt"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/schema"
)

func binaryNumberSchema(aDesc, bDesc string) *schema.Schema {
	a := schema.Number()
	a.Description = aDesc
	b := schema.Number()
	b.Description = bDesc
	return schema.Object(map[string]*schema.Schema{
		"a": a,
		"b": b,
	}, "a", "b")
}

func numberArg(args map[string]any, name string) (float64, error) {
	v, ok := args[name].(float64)
	if !ok {
		return 0, fmt.Errorf("calculator: %q is not a number", name)
	}
	return v, nil
}

// AddTool registers addition.
func AddTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "add",
		Description: "Adds two numbers together",
		InputSchema: binaryNumberSchema("the first addend", "the second addend"),
		Hints:       mcptypes.HintReadOnly | mcptypes.HintIdempotent,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			result := a + b
			logger.Debug("add", a, b, "=", result)
			return result, nil
		},
	}
}

func SubtractTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "subtract",
		Description: "Subtracts the second number from the first",
		InputSchema: binaryNumberSchema("the minuend", "the subtrahend"),
		Hints:       mcptypes.HintReadOnly | mcptypes.HintIdempotent,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			return a - b, nil
		},
	}
}

func MultiplyTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "multiply",
		Description: "Multiplies two numbers",
		InputSchema: binaryNumberSchema("the first factor", "the second factor"),
		Hints:       mcptypes.HintReadOnly | mcptypes.HintIdempotent,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			return a * b, nil
		},
	}
}

// EvaluateTool registers a whole-expression evaluator. Its argument is a
// recursive operation tree ({op, left, right} where either side is a
// number or another tree), so the input schema references itself through
// a schema.Arena instead of embedding an infinite literal; the arena
// rides along on the Tool so coercion can resolve the refs at any depth.
func EvaluateTool() mcptypes.Tool {
	arena := schema.NewArena()

	op := schema.Enum("add", "subtract", "multiply", "divide")
	op.Description = "the operation to apply"
	operand := schema.OneOf(schema.Number(), schema.Self("expression"))
	arena.Define("expression", schema.Object(map[string]*schema.Schema{
		"op":    op,
		"left":  operand,
		"right": operand,
	}, "op", "left", "right"))

	root := schema.Object(map[string]*schema.Schema{
		"expression": schema.Self("expression"),
	}, "expression")
	root.Defs = arena.Defs()

	return mcptypes.Tool{
		Name:        "evaluate",
		Description: "Evaluates a nested arithmetic expression tree",
		InputSchema: root,
		SchemaArena: arena,
		Hints:       mcptypes.HintReadOnly | mcptypes.HintIdempotent,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			result, err := evalExpression(args["expression"])
			if err != nil {
				return nil, err
			}
			logger.Debug("evaluate", "=", result)
			return result, nil
		},
	}
}

func evalExpression(v any) (float64, error) {
	switch node := v.(type) {
	case float64:
		return node, nil
	case map[string]any:
		left, err := evalExpression(node["left"])
		if err != nil {
			return 0, err
		}
		right, err := evalExpression(node["right"])
		if err != nil {
			return 0, err
		}
		switch node["op"] {
		case "add":
			return left + right, nil
		case "subtract":
			return left - right, nil
		case "multiply":
			return left * right, nil
		case "divide":
			if right == 0 {
				return 0, fmt.Errorf("evaluate: division by zero")
			}
			return left / right, nil
		default:
			return 0, fmt.Errorf("evaluate: unknown operation %v", node["op"])
		}
	default:
		return 0, fmt.Errorf("evaluate: unsupported expression node of type %T", v)
	}
}

func DivideTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "divide",
		Description: "Divides the first number by the second",
		InputSchema: binaryNumberSchema("the dividend", "the divisor"),
		Hints:       mcptypes.HintReadOnly | mcptypes.HintIdempotent,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, fmt.Errorf("divide: division by zero")
			}
			return a / b, nil
		},
	}
}
