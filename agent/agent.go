// Package agent implements the executor behind an agent node: one
// execute(messages) -> messages turn, which may expand into several LLM
// calls via a tool-call loop, grounded on
// _examples/original_source/backend/beezle_bug/agent_graph/agent.py's
// _think loop and adapted to langchaingo's llms.MessageContent shape the
// way _examples/jemygraw-langgraphgo/prebuilt/react_agent.go drives its
// agent/tools node pair.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/eventbus"
	"github.com/beezlebug/agentgraph/internal/logx"
	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/llmadapter"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/storage"
	"github.com/beezlebug/agentgraph/tool"
)

const (
	defaultContextWindow         = 25
	defaultToolIterations        = 20
	previewChars                 = 200
	defaultObservationImportance = 0.0
)

// Agent is the one executable node kind today — a nullable memory stream
// selects stateful vs. stateless mode, never two separate types.
type Agent struct {
	id       string
	name     string
	adapter  llmadapter.Adapter
	toolbox  *tool.Box
	renderer PromptRenderer

	memoryStream   *memorystream.Stream
	knowledgeGraph *knowledge.Graph

	bus *eventbus.Bus
	log logx.Logger

	contextWindow int
	maxIterations int
}

// Option customizes an Agent at construction time.
type Option func(*Agent)

// WithMemoryStream binds a stateful memory stream; omitting it leaves the
// agent stateless.
func WithMemoryStream(ms *memorystream.Stream) Option {
	return func(a *Agent) { a.memoryStream = ms }
}

// WithKnowledgeGraph binds a knowledge graph resource.
func WithKnowledgeGraph(kg *knowledge.Graph) Option {
	return func(a *Agent) { a.knowledgeGraph = kg }
}

// WithEventBus wires introspection event emission.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(a *Agent) { a.bus = bus }
}

// WithLogger overrides the default logger.
func WithLogger(log logx.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithContextWindow overrides the default 25-observation context window.
func WithContextWindow(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.contextWindow = n
		}
	}
}

// New builds an Agent. toolbox must be non-nil; pass tool.NewBox() for an
// empty one.
func New(id, name string, adapter llmadapter.Adapter, toolbox *tool.Box, renderer PromptRenderer, opts ...Option) *Agent {
	a := &Agent{
		id:            id,
		name:          name,
		adapter:       adapter,
		toolbox:       toolbox,
		renderer:      renderer,
		log:           logx.Default(),
		contextWindow: defaultContextWindow,
		maxIterations: defaultToolIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) ID() string   { return a.id }
func (a *Agent) Name() string { return a.name }

// KnowledgeGraph and MemoryStream satisfy tool.AgentContext so tool bodies
// can reach this agent's bound resources.
func (a *Agent) KnowledgeGraph() *knowledge.Graph   { return a.knowledgeGraph }
func (a *Agent) MemoryStream() *memorystream.Stream { return a.memoryStream }

func (a *Agent) emit(kind eventbus.EventType, data map[string]any) {
	if a.bus == nil {
		return
	}
	a.bus.Emit(eventbus.Event{Type: kind, AgentName: a.name, Data: data})
}

// Execute performs one turn: render the system prompt, assemble context,
// call the LLM, resolve any tool calls, and repeat until the model stops
// requesting tools.
func (a *Agent) Execute(ctx context.Context, messages []design.Message) ([]design.Message, error) {
	for _, m := range messages {
		a.emit(eventbus.MessageReceived, map[string]any{"from": m.Sender, "content": m.Content})
	}

	schemas := ""
	if a.knowledgeGraph != nil {
		schemas = knowledge.SchemaForPrompt()
	}
	systemPrompt, err := a.renderer.Render(PromptData{AgentName: a.name, Now: time.Now(), EntitySchemas: schemas})
	if err != nil {
		a.emit(eventbus.ErrorOccurred, map[string]any{"error": err.Error()})
		return nil, nil
	}
	systemMsg := llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt)

	convo, err := a.buildContext(ctx, messages)
	if err != nil {
		a.emit(eventbus.ErrorOccurred, map[string]any{"error": err.Error()})
		return nil, nil
	}

	toolSchemas := a.toolbox.LLMTools()

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		full := append([]llms.MessageContent{systemMsg}, convo...)

		a.emit(eventbus.LLMCallStarted, map[string]any{
			"context_messages": len(full),
			"available_tools":  a.toolbox.Len(),
		})

		start := time.Now()
		resp, err := a.adapter.ChatCompletion(ctx, full, toolSchemas)
		duration := time.Since(start)
		if err != nil {
			a.log.Error("llm call failed: %v", err)
			a.emit(eventbus.ErrorOccurred, map[string]any{"error": err.Error()})
			return []design.Message{}, nil
		}

		completedData := map[string]any{
			"duration_ms": duration.Milliseconds(),
			"has_content": resp.Content != "",
			"tool_calls":  len(resp.ToolCalls),
		}
		if resp.Reasoning != "" {
			completedData["thinking"] = resp.Reasoning
		}
		if resp.Content != "" {
			completedData["response_preview"] = truncate(resp.Content, previewChars)
		}
		a.emit(eventbus.LLMCallCompleted, completedData)

		aiMsg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if resp.Content != "" {
			aiMsg.Parts = append(aiMsg.Parts, llms.TextPart(resp.Content))
		}
		for _, tc := range resp.ToolCalls {
			aiMsg.Parts = append(aiMsg.Parts, tc)
		}
		convo = append(convo, aiMsg)
		a.persistResponse(ctx, resp)

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return []design.Message{}, nil
			}
			return []design.Message{{Sender: a.name, Content: resp.Content}}, nil
		}

		for _, tc := range resp.ToolCalls {
			toolMsg := a.runToolCall(ctx, tc)
			convo = append(convo, toolMsg)
		}
	}

	return []design.Message{}, nil
}

// buildContext assembles the LLM-facing message list: in stateful mode
// the input messages are persisted as observations and the context is the
// trailing window of the memory stream; in stateless mode the input
// messages are used verbatim.
func (a *Agent) buildContext(ctx context.Context, messages []design.Message) ([]llms.MessageContent, error) {
	if a.memoryStream == nil {
		out := make([]llms.MessageContent, 0, len(messages))
		for _, m := range messages {
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("[%s]: %s", m.Sender, m.Content)))
		}
		return out, nil
	}

	for _, m := range messages {
		env := observationEnvelope{Role: "human", Sender: m.Sender, Content: m.Content}
		payload, err := json.Marshal(env)
		if err != nil {
			return nil, err
		}
		if err := a.memoryStream.Add(ctx, storage.ContentMessage, payload, defaultObservationImportance); err != nil {
			return nil, err
		}
	}

	window := a.memoryStream.Window(a.contextWindow)
	out := make([]llms.MessageContent, 0, len(window))
	for _, obs := range window {
		out = append(out, decodeObservation(obs))
	}
	return out, nil
}

// runToolCall resolves one tool call by name against the toolbox,
// catching tool-body errors per call so the loop continues — failures are
// reported to the model as "Error: <msg>" tool results, never propagated.
func (a *Agent) runToolCall(ctx context.Context, tc llms.ToolCall) llms.MessageContent {
	name := tc.FunctionCall.Name
	argsJSON := tc.FunctionCall.Arguments
	if !json.Valid([]byte(argsJSON)) {
		if wrapped, err := json.Marshal(map[string]string{"input": argsJSON}); err == nil {
			argsJSON = string(wrapped)
		}
	}

	var parsedArgs any
	_ = json.Unmarshal([]byte(argsJSON), &parsedArgs)
	a.emit(eventbus.ToolSelected, map[string]any{"tool_name": name, "arguments": parsedArgs})

	start := time.Now()
	var (
		result  string
		success = true
	)
	t, ok := a.toolbox.Get(name)
	if !ok {
		result = fmt.Sprintf("Tool '%s' not found.", name)
		success = false
	} else {
		out, err := t.Call(ctx, a, argsJSON)
		if err != nil {
			result = "Error: " + err.Error()
			success = false
		} else {
			result = out
		}
	}
	duration := time.Since(start)

	a.emit(eventbus.ToolCompleted, map[string]any{
		"tool_name":   name,
		"duration_ms": duration.Milliseconds(),
		"result":      truncate(result, previewChars),
		"success":     success,
	})

	if a.memoryStream != nil {
		env := observationEnvelope{Role: "tool", Content: result, ToolCallID: tc.ID}
		if payload, err := json.Marshal(env); err == nil {
			_ = a.memoryStream.Add(ctx, storage.ContentToolCallResult, payload, defaultObservationImportance)
		}
	}

	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{ToolCallID: tc.ID, Name: name, Content: result},
		},
	}
}

func (a *Agent) persistResponse(ctx context.Context, resp llmadapter.Response) {
	if a.memoryStream == nil {
		return
	}
	env := observationEnvelope{Role: "ai", Content: resp.Content}
	for _, tc := range resp.ToolCalls {
		env.ToolCalls = append(env.ToolCalls, toolCallEnvelope{
			ID: tc.ID, Name: tc.FunctionCall.Name, Arguments: tc.FunctionCall.Arguments,
		})
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = a.memoryStream.Add(ctx, storage.ContentResponse, payload, defaultObservationImportance)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
