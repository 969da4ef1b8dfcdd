package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/execgraph"
)

// DelegateToolName applies the sanitization scheme used by the builder when
// synthesizing a delegate edge into a tool: lowercase, spaces and hyphens to
// underscores, prefixed with "ask_" — identical to create_delegate_tool's
// safe_name computation.
func DelegateToolName(targetName string) string {
	safe := strings.ToLower(targetName)
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.ReplaceAll(safe, "-", "_")
	return "ask_" + safe
}

// delegateTool is a synchronous call from one agent to another: it invokes
// the target's Execute with a single message attributed to the calling
// agent and returns the target's first reply's content, resolved by node
// id at call time against the builder's shared executables map so the
// cyclic agent<->toolbox reference never needs an embedded strong pointer.
type delegateTool struct {
	executables map[string]execgraph.Executable
	targetID    string
	targetName  string
	sourceName  string
}

// NewDelegateTool synthesizes a tool an agent's toolbox can bind so it can
// ask another agent a question and receive its reply inline in its own
// tool-call loop.
func NewDelegateTool(executables map[string]execgraph.Executable, targetID, targetName, sourceName string) Tool {
	return delegateTool{
		executables: executables,
		targetID:    targetID,
		targetName:  targetName,
		sourceName:  sourceName,
	}
}

func (d delegateTool) Name() string { return DelegateToolName(d.targetName) }

func (d delegateTool) Description() string {
	return "Ask " + d.targetName + " a question and get their response. Use this when you need " + d.targetName + "'s expertise or input."
}

func (d delegateTool) Parameters() map[string]any {
	return map[string]any{
		"question": map[string]any{"type": "string", "description": "The question to ask " + d.targetName + "."},
	}
}

func (d delegateTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}

	target, ok := d.executables[d.targetID]
	if !ok {
		return "Error: Agent '" + d.targetName + "' is not available", nil
	}

	replies, err := target.Execute(ctx, []design.Message{{Sender: d.sourceName, Content: args.Question}})
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if len(replies) == 0 {
		return "No response from agent", nil
	}
	return replies[0].Content, nil
}
