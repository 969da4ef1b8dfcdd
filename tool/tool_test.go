package tool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/storage"
	"github.com/beezlebug/agentgraph/tool"
)

type fakeAgent struct {
	name string
	kg   *knowledge.Graph
	ms   *memorystream.Stream
}

func (f fakeAgent) Name() string                      { return f.name }
func (f fakeAgent) KnowledgeGraph() *knowledge.Graph   { return f.kg }
func (f fakeAgent) MemoryStream() *memorystream.Stream { return f.ms }

func TestBuild_UnknownToolErrors(t *testing.T) {
	_, err := tool.Build([]string{"not_a_real_tool"})
	require.Error(t, err)
}

func TestBuild_ResolvesRegisteredTools(t *testing.T) {
	box, err := tool.Build([]string{"wait", "reason", "get_date_time"})
	require.NoError(t, err)
	assert.Equal(t, 3, box.Len())

	_, ok := box.Get("reason")
	assert.True(t, ok)
	_, ok = box.Get("nope")
	assert.False(t, ok)
}

func TestReasonTool_EchoesThought(t *testing.T) {
	box, err := tool.Build([]string{"reason"})
	require.NoError(t, err)
	reason, _ := box.Get("reason")

	out, err := reason.Call(context.Background(), fakeAgent{name: "a"}, `{"thought":"consider the options"}`)
	require.NoError(t, err)
	assert.Equal(t, "consider the options", out)
}

func TestKGTools_AddAndGetEntity(t *testing.T) {
	box, err := tool.Build([]string{"kg_add_entity", "kg_get_entity", "kg_add_relationship", "kg_find_path"})
	require.NoError(t, err)

	kg := knowledge.New()
	agent := fakeAgent{name: "a", kg: kg}
	ctx := context.Background()

	addEntity, _ := box.Get("kg_add_entity")
	_, err = addEntity.Call(ctx, agent, `{"name":"Alice","type":"person"}`)
	require.NoError(t, err)
	_, err = addEntity.Call(ctx, agent, `{"name":"Paris","type":"city"}`)
	require.NoError(t, err)

	addRel, _ := box.Get("kg_add_relationship")
	_, err = addRel.Call(ctx, agent, `{"entity1":"Alice","relationship":"lives_in","entity2":"Paris"}`)
	require.NoError(t, err)

	getEntity, _ := box.Get("kg_get_entity")
	out, err := getEntity.Call(ctx, agent, `{"entity":"Alice"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")

	findPath, _ := box.Get("kg_find_path")
	path, err := findPath.Call(ctx, agent, `{"start":"Alice","end":"Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, "Alice -> Paris", path)
}

func TestKGTools_NoBoundGraphReturnsError(t *testing.T) {
	box, err := tool.Build([]string{"kg_add_entity"})
	require.NoError(t, err)
	addEntity, _ := box.Get("kg_add_entity")

	_, err = addEntity.Call(context.Background(), fakeAgent{name: "a"}, `{"name":"x","type":"y"}`)
	require.Error(t, err)
}

func TestRecallTool_ReturnsAddedObservation(t *testing.T) {
	ms := memorystream.New(memorystream.HashEmbedder{})
	require.NoError(t, ms.Add(context.Background(), storage.ContentMessage, []byte("the sky is blue"), 5))

	box, err := tool.Build([]string{"recall"})
	require.NoError(t, err)
	recall, _ := box.Get("recall")

	out, err := recall.Call(context.Background(), fakeAgent{name: "a", ms: ms}, `{"query":"sky","k":3}`)
	require.NoError(t, err)
	assert.Contains(t, out, "the sky is blue")
}

func TestRecallTool_FromFiltersOutOlderObservations(t *testing.T) {
	ms := memorystream.New(memorystream.HashEmbedder{})
	require.NoError(t, ms.Add(context.Background(), storage.ContentMessage, []byte("old memory"), 5))

	cutoff := time.Now().Add(time.Hour)

	box, err := tool.Build([]string{"recall"})
	require.NoError(t, err)
	recall, _ := box.Get("recall")

	out, err := recall.Call(context.Background(), fakeAgent{name: "a", ms: ms}, `{"query":"memory","k":3,"from":"`+cutoff.Format(time.RFC3339)+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestRecallTool_InvalidFromReturnsFriendlyError(t *testing.T) {
	ms := memorystream.New(memorystream.HashEmbedder{})

	box, err := tool.Build([]string{"recall"})
	require.NoError(t, err)
	recall, _ := box.Get("recall")

	out, err := recall.Call(context.Background(), fakeAgent{name: "a", ms: ms}, `{"query":"memory","from":"not-a-time"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "invalid from timestamp")
}

func TestDelegateTool_NamingAndMissingTarget(t *testing.T) {
	name := tool.DelegateToolName("Research Assistant-2")
	assert.Equal(t, "ask_research_assistant_2", name)

	delegate := tool.NewDelegateTool(nil, "missing-id", "Buddy", "Caller")
	out, err := delegate.Call(context.Background(), fakeAgent{name: "Caller"}, `{"question":"hi"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "is not available")
}
