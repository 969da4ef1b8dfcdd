package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/storage"
)

func TestAddEntity_RejectsDuplicateName(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	require.NoError(t, g.AddEntity(ctx, "Alice", nil))
	assert.Error(t, g.AddEntity(ctx, "Alice", nil))
}

func TestAddRelationship_RequiresBothEndpointsToExist(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	require.NoError(t, g.AddEntity(ctx, "Alice", nil))
	assert.Error(t, g.AddRelationship(ctx, "Alice", "Ghost", "knows", nil))
}

func TestRemoveEntity_AlsoRemovesTouchingRelationships(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	require.NoError(t, g.AddEntity(ctx, "Alice", nil))
	require.NoError(t, g.AddEntity(ctx, "Bob", nil))
	require.NoError(t, g.AddRelationship(ctx, "Alice", "Bob", "knows", nil))

	require.NoError(t, g.RemoveEntity(ctx, "Bob"))
	assert.Empty(t, g.GetRelationships("Alice"))
}

func TestFindPath_ReturnsShortestUndirectedPath(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, g.AddEntity(ctx, name, nil))
	}
	require.NoError(t, g.AddRelationship(ctx, "A", "B", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "B", "C", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "A", "D", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "D", "C", "knows", nil))

	path := g.FindPath("A", "C")
	assert.Len(t, path, 3)
	assert.Equal(t, "A", path[0])
	assert.Equal(t, "C", path[len(path)-1])
}

func TestFindPath_ReturnsNilWhenUnreachable(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	require.NoError(t, g.AddEntity(ctx, "A", nil))
	require.NoError(t, g.AddEntity(ctx, "B", nil))
	assert.Nil(t, g.FindPath("A", "B"))
}

func TestMostConnected_OrdersByDegreeDescending(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	for _, name := range []string{"hub", "a", "b", "c"} {
		require.NoError(t, g.AddEntity(ctx, name, nil))
	}
	require.NoError(t, g.AddRelationship(ctx, "hub", "a", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "hub", "b", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "hub", "c", "knows", nil))

	top := g.MostConnected(1)
	require.Len(t, top, 1)
	assert.Equal(t, "hub", top[0].Name)
	assert.Equal(t, 3, top[0].Count)
}

func TestIsolatedEntities_ExcludesConnectedOnes(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	require.NoError(t, g.AddEntity(ctx, "A", nil))
	require.NoError(t, g.AddEntity(ctx, "B", nil))
	require.NoError(t, g.AddEntity(ctx, "Lonely", nil))
	require.NoError(t, g.AddRelationship(ctx, "A", "B", "knows", nil))

	assert.Equal(t, []string{"Lonely"}, g.IsolatedEntities())
}

func TestConnectedComponents_PartitionsDisjointSubgraphs(t *testing.T) {
	g := knowledge.New()
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, g.AddEntity(ctx, name, nil))
	}
	require.NoError(t, g.AddRelationship(ctx, "A", "B", "knows", nil))
	require.NoError(t, g.AddRelationship(ctx, "C", "D", "knows", nil))

	components := g.ConnectedComponents()
	assert.Len(t, components, 2)
	assert.False(t, g.IsConnected())
}

func TestLoadSnapshot_RebuildsEntitiesAndRelationshipsFromDBRows(t *testing.T) {
	g := knowledge.New()
	snap := &storage.KGSnapshot{
		Entities: []storage.KGEntity{
			{ID: 1, Name: "Alice", Properties: map[string]any{"role": "scout"}},
			{ID: 2, Name: "Bob", Properties: nil},
		},
		Relationships: []storage.KGRelationship{
			{ID: 10, FromEntityID: 1, ToEntityID: 2, Type: "knows"},
		},
	}
	g.LoadSnapshot(snap)

	assert.Equal(t, 2, g.Len())
	e, ok := g.GetEntity("Alice")
	require.True(t, ok)
	assert.Equal(t, "scout", e.Properties["role"])

	rels := g.GetRelationships("Alice")
	require.Len(t, rels, 1)
	assert.Equal(t, "Bob", rels[0].To)
}
