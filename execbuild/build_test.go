package execbuild_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/execbuild"
	"github.com/beezlebug/agentgraph/execgraph"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/storage"
)

func newTestGraph() *design.Graph {
	nodes := []design.Node{
		{ID: "in", Kind: design.KindTextInput, Config: map[string]any{}},
		{ID: "kg", Kind: design.KindKnowledgeGraph, Config: map[string]any{"name": "KG"}},
		{ID: "ms", Kind: design.KindMemoryStream, Config: map[string]any{"name": "MS"}},
		{ID: "tb", Kind: design.KindToolbox, Config: map[string]any{"tools": []string{"wait", "reason"}}},
		{ID: "a1", Kind: design.KindAgent, Config: map[string]any{"name": "Scout", "model": "gpt-4o-mini"}},
		{ID: "a2", Kind: design.KindAgent, Config: map[string]any{"name": "Helper"}},
		{ID: "out", Kind: design.KindTextOutput, Config: map[string]any{}},
	}
	edges := []design.Edge{
		{ID: "e1", SourceNode: "in", SourcePort: design.PortMessageOut, TargetNode: "a1", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
		{ID: "e2", SourceNode: "a1", SourcePort: design.PortKnowledge, TargetNode: "kg", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		{ID: "e3", SourceNode: "a1", SourcePort: design.PortMemory, TargetNode: "ms", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		{ID: "e4", SourceNode: "a1", SourcePort: design.PortTools, TargetNode: "tb", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		{ID: "e5", SourceNode: "a1", SourcePort: design.PortAsk, TargetNode: "a2", TargetPort: design.PortAnswer, Kind: design.EdgeDelegate},
		{ID: "e6", SourceNode: "a1", SourcePort: design.PortMessageOut, TargetNode: "out", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
	}
	return design.NewGraph(nodes, edges)
}

func TestBuild_WiresResourcesDelegatesAndRouting(t *testing.T) {
	backend, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	require.NoError(t, backend.SaveProject(context.Background(), storage.Project{ID: "proj-1", Name: "p", Data: []byte(`{}`)}))

	b := execbuild.New(backend, nil, memorystream.HashEmbedder{})
	g := newTestGraph()

	out, err := b.Build(context.Background(), g, "proj-1")
	require.NoError(t, err)

	require.Len(t, out.Executables, 2)
	a1, ok := out.Executables["a1"]
	require.True(t, ok)
	assert.Equal(t, "Scout", a1.Name())

	assert.Equal(t, []string{"in"}, out.TextInputEventIDs)
	assert.Equal(t, []string{"a1"}, out.TextEntryIDs)
	assert.True(t, out.ExitIDs["a1"])

	targets := out.Routing["a1"]
	require.Len(t, targets, 1)
	assert.Equal(t, execgraph.TargetExit, targets[0].Kind)
	assert.Equal(t, "out", targets[0].ID)
}

func TestBuild_RejectsInvalidGraph(t *testing.T) {
	backend, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	b := execbuild.New(backend, nil, memorystream.HashEmbedder{})
	empty := design.NewGraph(nil, nil)

	_, err = b.Build(context.Background(), empty, "proj-1")
	require.Error(t, err)
}
