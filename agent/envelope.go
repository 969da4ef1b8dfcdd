package agent

import (
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/beezlebug/agentgraph/memorystream"
)

// observationEnvelope is the JSON shape an Observation's Content holds in
// stateful mode, carrying enough to reconstruct the llms.MessageContent it
// came from on the next turn.
type observationEnvelope struct {
	Role       string             `json:"role"`
	Sender     string             `json:"sender,omitempty"`
	Content    string             `json:"content"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCallEnvelope `json:"tool_calls,omitempty"`
}

type toolCallEnvelope struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// decodeObservation turns a persisted Observation back into the
// llms.MessageContent it represents. A malformed envelope degrades to a
// plain human-role message carrying the raw bytes, rather than dropping
// the turn.
func decodeObservation(obs memorystream.Observation) llms.MessageContent {
	var env observationEnvelope
	if err := json.Unmarshal(obs.Content, &env); err != nil {
		return llms.TextParts(llms.ChatMessageTypeHuman, string(obs.Content))
	}

	switch env.Role {
	case "ai":
		msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if env.Content != "" {
			msg.Parts = append(msg.Parts, llms.TextPart(env.Content))
		}
		for _, tc := range env.ToolCalls {
			msg.Parts = append(msg.Parts, llms.ToolCall{
				ID:           tc.ID,
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		return msg
	case "tool":
		return llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{ToolCallID: env.ToolCallID, Content: env.Content},
			},
		}
	default:
		content := env.Content
		if env.Sender != "" {
			content = fmt.Sprintf("[%s]: %s", env.Sender, env.Content)
		}
		return llms.TextParts(llms.ChatMessageTypeHuman, content)
	}
}
