// Package llmadapter defines the contract an agent calls to talk to a
// model: one chat-completion round trip given the turn's message history
// and the agent's available tool schemas. Message and tool-call shapes
// reuse tmc/langchaingo's llms package types (the teacher already depends
// on langchaingo for exactly this), rather than redefining an equivalent
// wire format from scratch.
package llmadapter

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// Response is one model turn: optional text content plus zero or more
// tool calls the agent loop must resolve before calling back in.
type Response struct {
	Content   string
	ToolCalls []llms.ToolCall
	// Reasoning carries a provider's chain-of-thought/"thinking" preview
	// when available, surfaced in LLM_CALL_COMPLETED events.
	Reasoning string
}

// Adapter is the seam between an agent and a concrete LLM provider.
type Adapter interface {
	// ChatCompletion sends the rendered message history and the tool
	// schemas currently bound to the caller's toolbox, returning the
	// model's next turn.
	ChatCompletion(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (Response, error)
}
