package design_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/design"
)

func validGraph() *design.Graph {
	nodes := []design.Node{
		{ID: "in", Kind: design.KindTextInput},
		{ID: "a1", Kind: design.KindAgent},
		{ID: "kg", Kind: design.KindKnowledgeGraph},
		{ID: "out", Kind: design.KindTextOutput},
	}
	edges := []design.Edge{
		{ID: "e1", SourceNode: "in", SourcePort: design.PortMessageOut, TargetNode: "a1", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
		{ID: "e2", SourceNode: "a1", SourcePort: design.PortKnowledge, TargetNode: "kg", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		{ID: "e3", SourceNode: "a1", SourcePort: design.PortMessageOut, TargetNode: "out", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
	}
	return design.NewGraph(nodes, edges)
}

func TestValidate_AcceptsWellFormedGraph(t *testing.T) {
	g := validGraph()
	assert.NoError(t, g.Validate())
}

func TestValidate_RejectsEmptyGraph(t *testing.T) {
	g := design.NewGraph(nil, nil)
	assert.Error(t, g.Validate())
}

func TestValidate_RejectsDuplicateNodeID(t *testing.T) {
	g := design.NewGraph([]design.Node{
		{ID: "a", Kind: design.KindAgent},
		{ID: "a", Kind: design.KindAgent},
	}, nil)
	assert.Error(t, g.Validate())
}

func TestValidate_RejectsUnknownNodeKind(t *testing.T) {
	g := design.NewGraph([]design.Node{{ID: "a", Kind: "bogus"}}, nil)
	assert.Error(t, g.Validate())
}

func TestValidate_RejectsEdgeToUnknownNode(t *testing.T) {
	g := design.NewGraph(
		[]design.Node{{ID: "a", Kind: design.KindAgent}},
		[]design.Edge{{ID: "e1", SourceNode: "a", SourcePort: design.PortMessageOut, TargetNode: "ghost", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage}},
	)
	assert.Error(t, g.Validate())
}

func TestValidate_RejectsPortNotInNodeKindPortSet(t *testing.T) {
	g := design.NewGraph(
		[]design.Node{
			{ID: "a", Kind: design.KindAgent},
			{ID: "b", Kind: design.KindTextOutput},
		},
		[]design.Edge{{ID: "e1", SourceNode: "a", SourcePort: design.PortAsk, TargetNode: "b", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage}},
	)
	assert.Error(t, g.Validate())
}

func TestValidate_RejectsMoreThanOneResourceBindingOfSameKind(t *testing.T) {
	g := design.NewGraph(
		[]design.Node{
			{ID: "a", Kind: design.KindAgent},
			{ID: "kg1", Kind: design.KindKnowledgeGraph},
			{ID: "kg2", Kind: design.KindKnowledgeGraph},
		},
		[]design.Edge{
			{ID: "e1", SourceNode: "a", SourcePort: design.PortKnowledge, TargetNode: "kg1", TargetPort: design.PortConnection, Kind: design.EdgeResource},
			{ID: "e2", SourceNode: "a", SourcePort: design.PortKnowledge, TargetNode: "kg2", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		},
	)
	assert.Error(t, g.Validate())
}

func TestValidate_AllowsMultipleToolboxResourceBindings(t *testing.T) {
	g := design.NewGraph(
		[]design.Node{
			{ID: "a", Kind: design.KindAgent},
			{ID: "tb1", Kind: design.KindToolbox},
			{ID: "tb2", Kind: design.KindToolbox},
		},
		[]design.Edge{
			{ID: "e1", SourceNode: "a", SourcePort: design.PortTools, TargetNode: "tb1", TargetPort: design.PortConnection, Kind: design.EdgeResource},
			{ID: "e2", SourceNode: "a", SourcePort: design.PortTools, TargetNode: "tb2", TargetPort: design.PortConnection, Kind: design.EdgeResource},
		},
	)
	assert.NoError(t, g.Validate())
}

func TestNode_LookupAndUnmarshalledGraphReindexesLazily(t *testing.T) {
	g := &design.Graph{
		Nodes: []design.Node{{ID: "a", Kind: design.KindAgent}},
	}
	require.NotNil(t, g.Node("a"))
	assert.Nil(t, g.Node("missing"))
}

func TestNode_ConfigAccessorsHandleJSONNumberDecoding(t *testing.T) {
	n := design.Node{Config: map[string]any{
		"max_iterations": float64(7),
		"temperature":    float64(0.5),
		"stateful":       true,
		"tags":           []any{"a", "b"},
	}}
	assert.Equal(t, 7, n.ConfigInt("max_iterations", 1))
	assert.Equal(t, 0.5, n.ConfigFloat("temperature", 0))
	assert.True(t, n.ConfigBool("stateful", false))
	assert.Equal(t, []string{"a", "b"}, n.ConfigStringSlice("tags"))
	assert.Equal(t, "fallback", n.ConfigString("missing", "fallback"))
}

func TestEdgesFrom_FiltersByPortAndKind(t *testing.T) {
	g := validGraph()
	out := g.EdgesFrom("a1", design.PortMessageOut, design.EdgeMessage)
	require.Len(t, out, 1)
	assert.Equal(t, "out", out[0].TargetNode)
}
