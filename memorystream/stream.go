// Package memorystream implements the append-only observation log bound
// to a stateful agent's "memory" port: every turn appends an Observation,
// and retrieval ranks stored observations by a blend of relevance,
// recency and importance. Grounded on the original in-memory
// memory_stream.py (no storage backend) and the storage-backed variant
// described in execution_graph_builder.py / storage/sqlite_backend.py,
// with the embedder seam modeled on the teacher's rag.Embedder
// (rag/retriever/vector.go).
package memorystream

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/beezlebug/agentgraph/storage"
)

// ImportanceThreshold mirrors the original's IMPORTANCE_THRESHOLD, the
// cumulative unreflected importance at which the original ran a
// reflection pass. No code in this module reads it; the agent loop does
// not run reflection passes.
const ImportanceThreshold = 10.0

// Embedder converts text into a fixed-width vector. Production uses an
// OpenAI-embeddings-backed implementation; tests use a cheap
// deterministic hash embedder (see HashEmbedder in embedder.go) so they
// don't need network access.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Observation is a single memory-stream entry held in process memory.
// DBID is set once the entry has been persisted, enabling a later
// AccessedAt update without a second lookup.
type Observation struct {
	DBID        int64
	ContentType storage.ObservationContentType
	Content     []byte
	Embedding   []float32
	Importance  float64
	CreatedAt   time.Time
	AccessedAt  time.Time
}

// score implements the original's fallback relevance/recency/importance
// blend, used only when no storage backend is configured: the storage
// path instead delegates ranking to Backend.MSSearch.
func (o Observation) score(queryEmbedding []float32, now time.Time) float64 {
	hoursSinceAccessed := now.Sub(o.AccessedAt).Hours()
	recency := math.Exp(-0.999 * hoursSinceAccessed)
	similarity := cosineSimilarity(o.Embedding, queryEmbedding)
	return (recency + o.Importance + similarity) / 3
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Stream is the memory stream attached to one agent. With no storage
// backend bound it behaves exactly like the original's pure in-memory
// class; once BindStorage is called, Add and Retrieve delegate to the
// backend so observations survive a redeploy.
type Stream struct {
	embedder            Embedder
	memories             []Observation
	lastReflectionPoint  int

	backend storage.Backend
	msID    int64
}

// New returns an empty, purely in-memory stream using embedder.
func New(embedder Embedder) *Stream {
	return &Stream{embedder: embedder}
}

// BindStorage attaches a backend and the memory-stream row id, and loads
// the persisted last-reflection-point bookkeeping value.
func (s *Stream) BindStorage(ctx context.Context, backend storage.Backend, msID int64) error {
	lastReflection, err := backend.MSGetMetadata(ctx, msID)
	if err != nil {
		return err
	}
	s.backend = backend
	s.msID = msID
	s.lastReflectionPoint = lastReflection
	return nil
}

// Add embeds content and appends a new observation.
func (s *Stream) Add(ctx context.Context, contentType storage.ObservationContentType, content []byte, importance float64) error {
	embedding, err := s.embedder.Embed(ctx, string(content))
	if err != nil {
		return err
	}
	now := time.Now()
	obs := Observation{
		ContentType: contentType,
		Content:     content,
		Embedding:   embedding,
		Importance:  importance,
		CreatedAt:   now,
		AccessedAt:  now,
	}

	if s.backend != nil {
		id, err := s.backend.MSAddObservation(ctx, s.msID, storage.Observation{
			ContentType: contentType,
			Content:     content,
			Embedding:   embedding,
			Importance:  importance,
			CreatedAt:   now,
			AccessedAt:  now,
		})
		if err != nil {
			return err
		}
		obs.DBID = id
	}

	s.memories = append(s.memories, obs)
	return nil
}

// Retrieve returns the k observations most relevant to text, created
// within [from, to] when non-nil, re-sorted by creation time ascending
// afterward (matching the original: retrieval ranks by score, then
// returns results in chronological order). Accessed timestamps are
// bumped for every returned observation.
func (s *Stream) Retrieve(ctx context.Context, text string, k int, from, to *time.Time) ([]Observation, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.backend != nil {
		return s.retrieveFromBackend(ctx, queryEmbedding, k, from, to)
	}
	return s.retrieveInMemory(queryEmbedding, k, from, to), nil
}

func (s *Stream) retrieveInMemory(queryEmbedding []float32, k int, from, to *time.Time) []Observation {
	now := time.Now()
	var candidates []Observation
	for _, obs := range s.memories {
		if from != nil && obs.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && obs.CreatedAt.After(*to) {
			continue
		}
		candidates = append(candidates, obs)
	}
	ranked := candidates
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score(queryEmbedding, now) > ranked[j].score(queryEmbedding, now)
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].AccessedAt = now
		for m := range s.memories {
			if s.memories[m].CreatedAt.Equal(ranked[i].CreatedAt) && string(s.memories[m].Content) == string(ranked[i].Content) {
				s.memories[m].AccessedAt = now
			}
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].CreatedAt.Before(ranked[j].CreatedAt) })
	return ranked
}

func (s *Stream) retrieveFromBackend(ctx context.Context, queryEmbedding []float32, k int, from, to *time.Time) ([]Observation, error) {
	matches, err := s.backend.MSSearch(ctx, s.msID, queryEmbedding, k, storage.SearchFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]Observation, len(matches))
	for i, m := range matches {
		out[i] = Observation{
			DBID:        m.Observation.DBID,
			ContentType: m.Observation.ContentType,
			Content:     m.Observation.Content,
			Embedding:   m.Observation.Embedding,
			Importance:  m.Observation.Importance,
			CreatedAt:   m.Observation.CreatedAt,
			AccessedAt:  now,
		}
		if err := s.backend.MSUpdateAccessed(ctx, m.Observation.DBID, now); err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Window returns the last n observations in chronological order, the
// context an agent's turn builder folds into the model prompt.
func (s *Stream) Window(n int) []Observation {
	if n <= 0 || n >= len(s.memories) {
		out := make([]Observation, len(s.memories))
		copy(out, s.memories)
		return out
	}
	out := make([]Observation, n)
	copy(out, s.memories[len(s.memories)-n:])
	return out
}

// Len returns the number of observations recorded so far.
func (s *Stream) Len() int { return len(s.memories) }

// LastReflectionPoint returns the index up to which reflection has
// already processed.
func (s *Stream) LastReflectionPoint() int { return s.lastReflectionPoint }

// SetLastReflectionPoint persists the new reflection bookmark.
func (s *Stream) SetLastReflectionPoint(ctx context.Context, point int) error {
	s.lastReflectionPoint = point
	if s.backend != nil {
		return s.backend.MSUpdateMetadata(ctx, s.msID, point)
	}
	return nil
}
