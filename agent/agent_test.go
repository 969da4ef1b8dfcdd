package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/beezlebug/agentgraph/agent"
	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/engerr"
	"github.com/beezlebug/agentgraph/eventbus"
	"github.com/beezlebug/agentgraph/internal/logx"
	"github.com/beezlebug/agentgraph/llmadapter"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/tool"
)

// scriptedAdapter returns one canned Response per call, in order.
type scriptedAdapter struct {
	responses []llmadapter.Response
	errs      []error
	calls     int
	seen      [][]llms.MessageContent
}

func (s *scriptedAdapter) ChatCompletion(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (llmadapter.Response, error) {
	s.seen = append(s.seen, messages)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llmadapter.Response{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return llmadapter.Response{}, nil
	}
	return s.responses[i], nil
}

func mustRenderer(t *testing.T) agent.PromptRenderer {
	t.Helper()
	r, err := agent.NewTemplateRenderer("sys", "You are {{.AgentName}}.")
	require.NoError(t, err)
	return r
}

func TestExecute_SimpleReplyNoTools(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llmadapter.Response{{Content: "hello there"}}}
	a := agent.New("n1", "Helper", adapter, tool.NewBox(), mustRenderer(t))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Helper", out[0].Sender)
	assert.Equal(t, "hello there", out[0].Content)
}

func TestExecute_EmptyReplyYieldsNoMessages(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llmadapter.Response{{}}}
	a := agent.New("n1", "Helper", adapter, tool.NewBox(), mustRenderer(t))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecute_ToolCallLoop(t *testing.T) {
	box, err := tool.Build([]string{"reason"})
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []llmadapter.Response{
		{
			ToolCalls: []llms.ToolCall{{
				ID:           "call-1",
				FunctionCall: &llms.FunctionCall{Name: "reason", Arguments: `{"thought":"think it through"}`},
			}},
		},
		{Content: "done thinking"},
	}}
	a := agent.New("n1", "Thinker", adapter, box, mustRenderer(t))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "go"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "done thinking", out[0].Content)
	assert.Equal(t, 2, adapter.calls)

	// second call's context should carry the tool result.
	lastCall := adapter.seen[1]
	found := false
	for _, m := range lastCall {
		if m.Role == llms.ChatMessageTypeTool {
			found = true
		}
	}
	assert.True(t, found, "expected a tool-result message in the second LLM call context")
}

func TestExecute_UnknownToolReportsErrorButContinues(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llmadapter.Response{
		{
			ToolCalls: []llms.ToolCall{{
				ID:           "call-1",
				FunctionCall: &llms.FunctionCall{Name: "no_such_tool", Arguments: `{}`},
			}},
		},
		{Content: "recovered"},
	}}
	a := agent.New("n1", "Thinker", adapter, tool.NewBox(), mustRenderer(t))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "go"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "recovered", out[0].Content)
}

func TestExecute_LLMFailureAbortsTurn(t *testing.T) {
	adapter := &scriptedAdapter{errs: []error{engerr.NewTool("llm_adapter", nil)}}

	var events []eventbus.Event
	bus := eventbus.New(logx.Default())
	bus.SubscribeAll(func(e eventbus.Event) { events = append(events, e) })

	a := agent.New("n1", "Helper", adapter, tool.NewBox(), mustRenderer(t), agent.WithEventBus(bus))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Empty(t, out)

	sawError := false
	for _, e := range events {
		if e.Type == eventbus.ErrorOccurred {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestExecute_StatefulModePersistsAndReplaysObservations(t *testing.T) {
	ms := memorystream.New(memorystream.HashEmbedder{})
	adapter := &scriptedAdapter{responses: []llmadapter.Response{
		{Content: "first reply"},
		{Content: "second reply"},
	}}
	a := agent.New("n1", "Stateful", adapter, tool.NewBox(), mustRenderer(t), agent.WithMemoryStream(ms))

	_, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "remember this"}})
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "follow up"}})
	require.NoError(t, err)

	// second LLM call's context should include observations from the first turn.
	secondCallMessages := adapter.seen[1]
	assert.Greater(t, len(secondCallMessages), 1)
}

func TestExecute_MaxIterationsAborts(t *testing.T) {
	box, err := tool.Build([]string{"reason"})
	require.NoError(t, err)

	responses := make([]llmadapter.Response, 0, 25)
	for i := 0; i < 25; i++ {
		responses = append(responses, llmadapter.Response{
			ToolCalls: []llms.ToolCall{{
				ID:           "call",
				FunctionCall: &llms.FunctionCall{Name: "reason", Arguments: `{"thought":"again"}`},
			}},
		})
	}
	adapter := &scriptedAdapter{responses: responses}
	a := agent.New("n1", "Looper", adapter, box, mustRenderer(t))

	out, err := a.Execute(context.Background(), []design.Message{{Sender: "user", Content: "go"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}
