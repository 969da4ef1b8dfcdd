package tool

import (
	"context"
	"encoding/json"
	"time"
)

func init() {
	Register("wait", func() Tool { return waitTool{} })
	Register("reason", func() Tool { return reasonTool{} })
	Register("self_reflect", func() Tool { return selfReflectTool{} })
	Register("self_critique", func() Tool { return selfCritiqueTool{} })
	Register("get_date_time", func() Tool { return dateTimeTool{} })
}

// waitTool is a deliberate no-op, the tool an agent should pick when there
// is no active task — grounded on system.py's Wait/Yield.
type waitTool struct{}

func (waitTool) Name() string        { return "wait" }
func (waitTool) Description() string { return "Do nothing. Choose this when there is no active task." }
func (waitTool) Parameters() map[string]any {
	return map[string]any{}
}
func (waitTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	return "", nil
}

// reasonTool lets the model record an intermediate thought as one step in
// a longer chain, without taking any external action.
type reasonTool struct{}

func (reasonTool) Name() string { return "reason" }
func (reasonTool) Description() string {
	return "Take time to reason about the problem at hand, step by step, without taking any external action."
}
func (reasonTool) Parameters() map[string]any {
	return map[string]any{
		"thought": map[string]any{"type": "string", "description": "Your thought"},
	}
}
func (reasonTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	var args struct {
		Thought string `json:"thought"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	return args.Thought, nil
}

type selfReflectTool struct{}

func (selfReflectTool) Name() string { return "self_reflect" }
func (selfReflectTool) Description() string {
	return "Assess the current situation and goal before deciding what to do next."
}
func (selfReflectTool) Parameters() map[string]any {
	return map[string]any{
		"situation": map[string]any{"type": "string", "description": "A summary of the current situation"},
		"goal":      map[string]any{"type": "string", "description": "Your current goal"},
		"thought":   map[string]any{"type": "string", "description": "Your thought"},
	}
}
func (selfReflectTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	var args struct {
		Situation string `json:"situation"`
		Goal      string `json:"goal"`
		Thought   string `json:"thought"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	out, err := json.Marshal(map[string]string{
		"summary": args.Situation,
		"goal":    args.Goal,
		"thought": args.Thought,
	})
	return string(out), err
}

type selfCritiqueTool struct{}

func (selfCritiqueTool) Name() string { return "self_critique" }
func (selfCritiqueTool) Description() string {
	return "Assess previous actions and their success, noting what can be improved."
}
func (selfCritiqueTool) Parameters() map[string]any {
	return map[string]any{
		"criticism": map[string]any{"type": "string", "description": "Your self-criticism"},
	}
}
func (selfCritiqueTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	var args struct {
		Criticism string `json:"criticism"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	return args.Criticism, nil
}

type dateTimeTool struct{}

func (dateTimeTool) Name() string            { return "get_date_time" }
func (dateTimeTool) Description() string     { return "Get the current date and time." }
func (dateTimeTool) Parameters() map[string]any { return map[string]any{} }
func (dateTimeTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	return time.Now().Format("Monday, 02 January 2006, 15:04"), nil
}
