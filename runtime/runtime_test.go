package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/execbuild"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/runtime"
	"github.com/beezlebug/agentgraph/scheduler"
	"github.com/beezlebug/agentgraph/storage"
)

func simpleGraph() *design.Graph {
	nodes := []design.Node{
		{ID: "in", Kind: design.KindTextInput},
		{ID: "a1", Kind: design.KindAgent, Config: map[string]any{"name": "Echo"}},
		{ID: "out", Kind: design.KindTextOutput},
	}
	edges := []design.Edge{
		{ID: "e1", SourceNode: "in", SourcePort: design.PortMessageOut, TargetNode: "a1", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
		{ID: "e2", SourceNode: "a1", SourcePort: design.PortMessageOut, TargetNode: "out", TargetPort: design.PortMessageIn, Kind: design.EdgeMessage},
	}
	return design.NewGraph(nodes, edges)
}

func newTestRuntime(t *testing.T) (*runtime.Runtime, *[]string) {
	t.Helper()
	backend, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	builder := execbuild.New(backend, nil, memorystream.HashEmbedder{})
	sched := scheduler.New(10*time.Millisecond, nil)

	var mu sync.Mutex
	var delivered []string
	rt := runtime.New(builder, sched, nil, func(projectID, sender, content string) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, sender+": "+content)
	})
	return rt, &delivered
}

func TestDeploy_NotDeployedBeforeDeploy(t *testing.T) {
	rt, _ := newTestRuntime(t)
	assert.False(t, rt.IsDeployed())
	assert.Empty(t, rt.RunningAgents())
}

func TestDeployAndUndeploy(t *testing.T) {
	rt, _ := newTestRuntime(t)
	g := simpleGraph()

	require.NoError(t, rt.Deploy(context.Background(), g, "proj-1"))
	assert.True(t, rt.IsDeployed())
	assert.Len(t, rt.RunningAgents(), 1)

	rt.Undeploy()
	assert.False(t, rt.IsDeployed())
	assert.Empty(t, rt.RunningAgents())
}

func TestSendTextMessage_NoDeployReturnsError(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.SendTextMessage(context.Background(), "hi", "user")
	require.Error(t, err)
}

func TestRedeployUndeploysFirst(t *testing.T) {
	rt, _ := newTestRuntime(t)
	g := simpleGraph()

	require.NoError(t, rt.Deploy(context.Background(), g, "proj-1"))
	require.NoError(t, rt.Deploy(context.Background(), g, "proj-2"))
	assert.True(t, rt.IsDeployed())
}
