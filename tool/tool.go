package tool

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/memorystream"
)

// AgentContext is the slice of an executing agent a tool body may reach:
// its display name (for attribution) and its bound resources. Tools never
// see the full agent type, avoiding an import cycle between tool and agent.
type AgentContext interface {
	Name() string
	KnowledgeGraph() *knowledge.Graph
	MemoryStream() *memorystream.Stream
}

// Tool is one callable capability an agent's toolbox exposes to the LLM.
type Tool interface {
	Name() string
	Description() string
	// Parameters maps each argument name to its JSON-schema description;
	// LLMTool wraps it as the "properties" of an object schema.
	Parameters() map[string]any
	// Call parses argsJSON, runs the tool body against agent, and returns
	// the string result fed back to the LLM as a tool-result message.
	Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error)
}

// LLMTool renders t as the function-calling schema an llmadapter.Adapter
// sends alongside the message history.
func LLMTool(t Tool) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: map[string]any{
				"type":       "object",
				"properties": t.Parameters(),
			},
		},
	}
}

// Box is a bound collection of tools available to one agent, the union of
// its toolbox-node bindings plus any synthesized delegate tools.
type Box struct {
	tools map[string]Tool
	order []string
}

// NewBox builds a Box from an ordered tool list; later entries with a
// duplicate name overwrite earlier ones, matching the original's dict
// assignment semantics when multiple toolbox bindings are unioned.
func NewBox(tools ...Tool) *Box {
	b := &Box{tools: make(map[string]Tool)}
	for _, t := range tools {
		b.Add(t)
	}
	return b
}

// Add inserts or replaces a tool by name.
func (b *Box) Add(t Tool) {
	if _, exists := b.tools[t.Name()]; !exists {
		b.order = append(b.order, t.Name())
	}
	b.tools[t.Name()] = t
}

// Get resolves a tool by name.
func (b *Box) Get(name string) (Tool, bool) {
	t, ok := b.tools[name]
	return t, ok
}

// List returns the tools in binding order, stable for schema rendering.
func (b *Box) List() []Tool {
	out := make([]Tool, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.tools[name])
	}
	return out
}

// LLMTools renders every bound tool as a function-calling schema.
func (b *Box) LLMTools() []llms.Tool {
	out := make([]llms.Tool, 0, len(b.order))
	for _, t := range b.List() {
		out = append(out, LLMTool(t))
	}
	return out
}

// Len reports how many tools are bound.
func (b *Box) Len() int { return len(b.tools) }
