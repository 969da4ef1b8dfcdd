// Package storage defines the persistence contract for projects, their
// design graphs, and the auxiliary knowledge-graph and memory-stream state
// attached to nodes. It is grounded on the original implementation's
// StorageBackend ABC (storage/sqlite_backend.py) and the teacher's
// checkpoint-store pattern (store/sqlite, store/postgres): a single Go
// interface with swappable SQLite and Postgres implementations.
package storage

import (
	"context"
	"time"
)

// Project is the persisted unit: a design graph plus bookkeeping.
type Project struct {
	ID        string
	Name      string
	Data      []byte // JSON-encoded design.Graph
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KGEntity is a persisted knowledge-graph node.
type KGEntity struct {
	ID         int64
	Name       string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KGRelationship is a persisted knowledge-graph edge.
type KGRelationship struct {
	ID           int64
	FromEntityID int64
	ToEntityID   int64
	Type         string
	Properties   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// KGSnapshot is the full set of entities/relationships for one knowledge
// graph, as returned by KGLoadFull.
type KGSnapshot struct {
	Entities      []KGEntity
	Relationships []KGRelationship
}

// ObservationContentType distinguishes the payload shape stored in an
// observation's content column.
type ObservationContentType string

const (
	ContentMessage        ObservationContentType = "message"
	ContentToolCallResult ObservationContentType = "tool_result"
	ContentResponse       ObservationContentType = "response"
)

// Observation is a persisted memory-stream entry. Embedding is the raw
// float32 vector; DBID identifies the row so AccessedAt can be bumped
// later without a second lookup.
type Observation struct {
	DBID        int64
	ContentType ObservationContentType
	Content     []byte // JSON-encoded payload
	Embedding   []float32
	Importance  float64
	CreatedAt   time.Time
	AccessedAt  time.Time
}

// ObservationMatch pairs a stored observation with its distance to a
// query embedding, as returned by a similarity search.
type ObservationMatch struct {
	Observation Observation
	Distance    float64
}

// SearchFilter bounds an MSSearch call by creation date.
type SearchFilter struct {
	From *time.Time
	To   *time.Time
}

// Backend is the storage contract every concrete implementation
// (SQLite, Postgres) satisfies. Every method takes a context so callers
// can bound slow operations, matching the original's async backend.
type Backend interface {
	Initialize(ctx context.Context) error
	Close() error

	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	SaveProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error
	ProjectExists(ctx context.Context, id string) (bool, error)

	// KGEnsure returns the knowledge-graph id for (projectID, nodeID),
	// creating the row if it doesn't exist yet.
	KGEnsure(ctx context.Context, projectID, nodeID string) (int64, error)
	KGAddEntity(ctx context.Context, kgID int64, name string, properties map[string]any) (int64, error)
	KGUpdateEntity(ctx context.Context, entityID int64, properties map[string]any) error
	KGAddEntityProperty(ctx context.Context, entityID int64, key string, value any) error
	KGRemoveEntityProperty(ctx context.Context, entityID int64, key string) error
	KGRemoveEntity(ctx context.Context, entityID int64) error
	KGGetEntityID(ctx context.Context, kgID int64, name string) (int64, bool, error)
	KGAddRelationship(ctx context.Context, kgID, fromEntityID, toEntityID int64, relType string, properties map[string]any) (int64, error)
	KGUpdateRelationshipProperty(ctx context.Context, relID int64, key string, value any) error
	KGRemoveRelationshipProperty(ctx context.Context, relID int64, key string) error
	KGRemoveRelationship(ctx context.Context, relID int64) error
	KGLoadFull(ctx context.Context, kgID int64) (*KGSnapshot, error)

	// MSEnsure returns the memory-stream id for (projectID, nodeID),
	// creating the row if it doesn't exist yet.
	MSEnsure(ctx context.Context, projectID, nodeID string) (int64, error)
	MSAddObservation(ctx context.Context, msID int64, obs Observation) (int64, error)
	MSSearch(ctx context.Context, msID int64, queryEmbedding []float32, k int, filter SearchFilter) ([]ObservationMatch, error)
	MSUpdateAccessed(ctx context.Context, observationDBID int64, accessedAt time.Time) error
	MSGetMetadata(ctx context.Context, msID int64) (lastReflectionPoint int, err error)
	MSUpdateMetadata(ctx context.Context, msID int64, lastReflectionPoint int) error
}
