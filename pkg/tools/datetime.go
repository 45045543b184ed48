package tools

import (
	"time"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/schema"
)

// DateTimeTool returns the current date and time, optionally formatted
// with a Go reference-time layout.
func DateTimeTool() mcptypes.Tool {
	format := schema.String()
	format.Description = "Go reference-time layout, e.g. 2006-01-02T15:04:05Z07:00"
	format.Default = time.RFC3339

	return mcptypes.Tool{
		Name:        "get_datetime",
		Description: "Returns the current date and time",
		InputSchema: schema.Object(map[string]*schema.Schema{
			"format": format,
		}),
		Hints: mcptypes.HintReadOnly,
		Handler: func(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
			layout := time.RFC3339
			if f, ok := args["format"].(string); ok && f != "" {
				layout = f
			}
			now := time.Now().Format(layout)
			logger.Debug("get_datetime", layout, now)
			return now, nil
		},
	}
}
