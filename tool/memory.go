package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/beezlebug/agentgraph/engerr"
)

func init() {
	Register("recall", func() Tool { return recallTool{} })
}

// recallTool surfaces memorystream.Stream.Retrieve as a tool call, grounded
// on _examples/original_source/backend/beezle_bug/tools/memory/memory_stream.py's
// Recall tool.
type recallTool struct{}

func (recallTool) Name() string { return "recall" }
func (recallTool) Description() string {
	return "Recall past observations relevant to a query from this agent's memory stream."
}
func (recallTool) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{"type": "string", "description": "What to recall memories about."},
		"k":     map[string]any{"type": "integer", "description": "How many observations to retrieve."},
		"from":  map[string]any{"type": "string", "description": "RFC3339 timestamp; only recall observations created at or after this time."},
		"to":    map[string]any{"type": "string", "description": "RFC3339 timestamp; only recall observations created at or before this time."},
	}
}
func (recallTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	ms := agent.MemoryStream()
	if ms == nil {
		return "", engerr.NewTool("recall", nil)
	}
	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
		From  string `json:"from"`
		To    string `json:"to"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if args.K <= 0 {
		args.K = 5
	}
	from, err := parseOptionalTime(args.From)
	if err != nil {
		return "Error: invalid from timestamp: " + err.Error(), nil
	}
	to, err := parseOptionalTime(args.To)
	if err != nil {
		return "Error: invalid to timestamp: " + err.Error(), nil
	}
	observations, err := ms.Retrieve(ctx, args.Query, args.K, from, to)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	results := make([]map[string]any, 0, len(observations))
	for _, o := range observations {
		results = append(results, map[string]any{
			"content":    string(o.Content),
			"importance": o.Importance,
			"created_at": o.CreatedAt,
		})
	}
	out, err := json.Marshal(results)
	return string(out), err
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
