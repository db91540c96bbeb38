package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/biquery/llm"
)

// ToolName is the function-calling name the engine is registered under.
const ToolName = "calculate_metric"

type toolArgs struct {
	Metric  string `json:"metric"`
	Period  string `json:"period,omitempty"`
	GroupBy string `json:"group_by,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type toolOutput struct {
	Result *Result `json:"result"`
	Text   string  `json:"text"`
}

// ToolSchema describes the engine for native function calling.
func ToolSchema() llm.ToolSchema {
	names := make([]string, 0, len(metricDescriptions))
	for _, m := range Metrics() {
		names = append(names, fmt.Sprintf("%q", m))
	}
	params := fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"metric": {
				"type": "string",
				"enum": [%s],
				"description": "Metric to compute"
			},
			"period": {
				"type": "string",
				"description": "Time filter: Q1-Q4, an English month name, a 4-digit year, or \"all\""
			},
			"group_by": {
				"type": "string",
				"enum": ["product", "region", "channel"],
				"description": "Optional grouping dimension"
			},
			"limit": {
				"type": "integer",
				"description": "Ranking size for top_* metrics (default 5)"
			}
		},
		"required": ["metric"]
	}`, strings.Join(names, ", "))

	return llm.ToolSchema{
		Name:        ToolName,
		Description: "Compute a business metric over the sales dataset, optionally filtered to a time period and grouped by a dimension.",
		Parameters:  json.RawMessage(params),
	}
}

// ToolFunc adapts the engine to the tool-executor calling convention. The
// returned payload carries both the structured result and the formatted text
// an agent can quote directly.
func ToolFunc(e *Engine) func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var in toolArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, NewError(ErrInvalidRequest, "malformed tool arguments: %v", err)
			}
		}

		req, err := ParseRequest(in.Metric, in.Period, in.GroupBy, in.Limit)
		if err != nil {
			return nil, err
		}

		result, err := e.Calculate(req)
		if err != nil {
			return nil, err
		}

		return json.Marshal(toolOutput{Result: result, Text: result.Format()})
	}
}

// ParseRequest assembles a Request from untyped string inputs, as they
// arrive from function-calling arguments or the command line.
func ParseRequest(metric, period, groupBy string, limit int) (Request, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(metric)))
	if m == "" {
		return Request{}, NewError(ErrInvalidRequest, "metric is required")
	}

	p, err := ParsePeriod(period)
	if err != nil {
		return Request{}, err
	}

	dim, err := ParseDimension(groupBy)
	if err != nil {
		return Request{}, err
	}

	if limit < 0 {
		return Request{}, NewError(ErrInvalidRequest, "limit must be positive, got %d", limit)
	}

	return Request{Metric: m, Period: p, GroupBy: dim, Limit: limit}, nil
}
