package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/storage"
)

func newSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProject_SaveGetListDelete(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "p1", Name: "one", Data: []byte(`{}`)}))
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "p2", Name: "two", Data: []byte(`{}`)}))

	got, err := db.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Name)

	exists, err := db.ProjectExists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, exists)

	all, err := db.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteProject(ctx, "p1"))
	_, err = db.GetProject(ctx, "p1")
	assert.Error(t, err)
}

func TestProject_SaveUpsertsOnConflict(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "p1", Name: "one", Data: []byte(`{}`)}))
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "p1", Name: "renamed", Data: []byte(`{"a":1}`)}))

	got, err := db.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	all, err := db.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKnowledgeGraph_EntityAndRelationshipRoundTrip(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "proj", Name: "p", Data: []byte(`{}`)}))

	kgID, err := db.KGEnsure(ctx, "proj", "kg1")
	require.NoError(t, err)

	aliceID, err := db.KGAddEntity(ctx, kgID, "Alice", map[string]any{"role": "scout"})
	require.NoError(t, err)
	bobID, err := db.KGAddEntity(ctx, kgID, "Bob", nil)
	require.NoError(t, err)

	relID, err := db.KGAddRelationship(ctx, kgID, aliceID, bobID, "knows", map[string]any{"since": "2020"})
	require.NoError(t, err)
	require.NotZero(t, relID)

	snap, err := db.KGLoadFull(ctx, kgID)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 2)
	require.Len(t, snap.Relationships, 1)
	assert.Equal(t, "knows", snap.Relationships[0].Type)

	gotID, ok, err := db.KGGetEntityID(ctx, kgID, "Alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, aliceID, gotID)

	require.NoError(t, db.KGAddEntityProperty(ctx, aliceID, "level", 3))
	require.NoError(t, db.KGRemoveEntityProperty(ctx, aliceID, "role"))

	snap2, err := db.KGLoadFull(ctx, kgID)
	require.NoError(t, err)
	for _, e := range snap2.Entities {
		if e.Name == "Alice" {
			assert.Equal(t, float64(3), e.Properties["level"])
			_, hasRole := e.Properties["role"]
			assert.False(t, hasRole)
		}
	}

	require.NoError(t, db.KGRemoveRelationship(ctx, relID))
	snap3, err := db.KGLoadFull(ctx, kgID)
	require.NoError(t, err)
	assert.Empty(t, snap3.Relationships)
}

func TestKGEnsure_IsIdempotentPerProjectAndNode(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "proj", Name: "p", Data: []byte(`{}`)}))

	id1, err := db.KGEnsure(ctx, "proj", "kg1")
	require.NoError(t, err)
	id2, err := db.KGEnsure(ctx, "proj", "kg1")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestMemoryStream_AddObservationAndSearchRanksByCosineDistance(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "proj", Name: "p", Data: []byte(`{}`)}))

	msID, err := db.MSEnsure(ctx, "proj", "ms1")
	require.NoError(t, err)

	close := []float32{1, 0, 0}
	far := []float32{0, 1, 0}
	_, err = db.MSAddObservation(ctx, msID, storage.Observation{
		ContentType: storage.ContentMessage, Content: []byte(`"near"`), Embedding: close, Importance: 5,
	})
	require.NoError(t, err)
	_, err = db.MSAddObservation(ctx, msID, storage.Observation{
		ContentType: storage.ContentMessage, Content: []byte(`"far"`), Embedding: far, Importance: 1,
	})
	require.NoError(t, err)

	matches, err := db.MSSearch(ctx, msID, []float32{1, 0, 0}, 2, storage.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, `"near"`, string(matches[0].Observation.Content))
	assert.Less(t, matches[0].Distance, matches[1].Distance)
}

func TestMemoryStream_MetadataRoundTrip(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.SaveProject(ctx, storage.Project{ID: "proj", Name: "p", Data: []byte(`{}`)}))

	msID, err := db.MSEnsure(ctx, "proj", "ms1")
	require.NoError(t, err)

	n, err := db.MSGetMetadata(ctx, msID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MSUpdateMetadata(ctx, msID, 7))
	n, err = db.MSGetMetadata(ctx, msID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
