package memorystream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/storage"
)

func TestAdd_IncreasesLenAndWindowReturnsChronologicalOrder(t *testing.T) {
	s := memorystream.New(memorystream.HashEmbedder{})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("first"), 1))
	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("second"), 1))

	assert.Equal(t, 2, s.Len())
	win := s.Window(1)
	require.Len(t, win, 1)
	assert.Equal(t, "second", string(win[0].Content))
}

func TestWindow_ReturnsEverythingWhenNExceedsLen(t *testing.T) {
	s := memorystream.New(memorystream.HashEmbedder{})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("only"), 1))

	win := s.Window(10)
	assert.Len(t, win, 1)
}

func TestRetrieve_RanksBySimilarityThenReturnsChronological(t *testing.T) {
	s := memorystream.New(memorystream.HashEmbedder{})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("apples and oranges"), 5))
	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("quantum computing"), 5))

	results, err := s.Retrieve(ctx, "apples", 2, nil, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieve_FiltersByFromToDateBound(t *testing.T) {
	s := memorystream.New(memorystream.HashEmbedder{})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("old one"), 5))
	cutoff := time.Now()
	time.Sleep(time.Millisecond)
	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("new one"), 5))

	results, err := s.Retrieve(ctx, "one", 10, &cutoff, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new one", string(results[0].Content))
}

func TestSetLastReflectionPoint_UpdatesInMemoryValueWithoutBackend(t *testing.T) {
	s := memorystream.New(memorystream.HashEmbedder{})
	ctx := context.Background()
	assert.Equal(t, 0, s.LastReflectionPoint())
	require.NoError(t, s.SetLastReflectionPoint(ctx, 3))
	assert.Equal(t, 3, s.LastReflectionPoint())
}

func TestBindStorage_PersistsObservationsAndReflectionPoint(t *testing.T) {
	backend, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	ctx := context.Background()
	require.NoError(t, backend.SaveProject(ctx, storage.Project{ID: "proj", Name: "p", Data: []byte(`{}`)}))
	msID, err := backend.MSEnsure(ctx, "proj", "ms1")
	require.NoError(t, err)

	s := memorystream.New(memorystream.HashEmbedder{})
	require.NoError(t, s.BindStorage(ctx, backend, msID))
	require.NoError(t, s.Add(ctx, storage.ContentMessage, []byte("hello"), 2))

	n, err := backend.MSGetMetadata(ctx, msID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.SetLastReflectionPoint(ctx, 1))
	n, err = backend.MSGetMetadata(ctx, msID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
