// Package postgres is an alternate storage.Backend implementation backed
// by Postgres via jackc/pgx/v5, demonstrating the interface's
// pluggability the way the teacher repo offers sqlite/postgres/redis
// checkpoint stores behind the same CheckpointStore contract.
package postgres

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beezlebug/agentgraph/engerr"
	"github.com/beezlebug/agentgraph/storage"
)

// Postgres implements storage.Backend. pool is an interface subset of
// *pgxpool.Pool so tests can substitute a pgxmock pool in its place.
type Postgres struct {
	pool Pool
}

// Pool mirrors the pgx methods this package depends on, matching
// *pgxpool.Pool's real signatures so pgxmock.PgxPoolIface satisfies it
// with no adapter needed.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// New connects to dsn and installs the schema.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, engerr.NewStorage("connect", engerr.KindInternal, err)
	}
	p := &Postgres{pool: pool}
	if err := p.Initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewWithPool wires a pre-built Pool (e.g. a pgxmock pool in tests).
func NewWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Initialize(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_graphs (
	id BIGSERIAL PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(project_id, node_id)
);

CREATE TABLE IF NOT EXISTS kg_entities (
	id BIGSERIAL PRIMARY KEY,
	knowledge_graph_id BIGINT NOT NULL REFERENCES knowledge_graphs(id) ON DELETE CASCADE,
	entity_name TEXT NOT NULL,
	properties JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE(knowledge_graph_id, entity_name)
);

CREATE TABLE IF NOT EXISTS kg_relationships (
	id BIGSERIAL PRIMARY KEY,
	knowledge_graph_id BIGINT NOT NULL REFERENCES knowledge_graphs(id) ON DELETE CASCADE,
	from_entity_id BIGINT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
	to_entity_id BIGINT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
	rel_type TEXT NOT NULL,
	properties JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kg_rel_from ON kg_relationships(from_entity_id);
CREATE INDEX IF NOT EXISTS idx_kg_rel_to ON kg_relationships(to_entity_id);
CREATE INDEX IF NOT EXISTS idx_kg_rel_type ON kg_relationships(rel_type);

CREATE TABLE IF NOT EXISTS memory_streams (
	id BIGSERIAL PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	last_reflection_point INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(project_id, node_id)
);

CREATE TABLE IF NOT EXISTS observations (
	id BIGSERIAL PRIMARY KEY,
	memory_stream_id BIGINT NOT NULL REFERENCES memory_streams(id) ON DELETE CASCADE,
	content_type TEXT NOT NULL,
	content JSONB NOT NULL,
	embedding BYTEA NOT NULL,
	importance DOUBLE PRECISION NOT NULL DEFAULT 0.0,
	created_at TIMESTAMPTZ NOT NULL,
	accessed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_obs_stream ON observations(memory_stream_id);
CREATE INDEX IF NOT EXISTS idx_obs_created ON observations(created_at);
`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return engerr.NewStorage("init_schema", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) ListProjects(ctx context.Context) ([]storage.Project, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, data, created_at, updated_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, engerr.NewStorage("list_projects", engerr.KindInternal, err)
	}
	defer rows.Close()

	var out []storage.Project
	for rows.Next() {
		var pr storage.Project
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Data, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("list_projects", engerr.KindInternal, err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) GetProject(ctx context.Context, id string) (*storage.Project, error) {
	var pr storage.Project
	err := p.pool.QueryRow(ctx, `SELECT id, name, data, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&pr.ID, &pr.Name, &pr.Data, &pr.CreatedAt, &pr.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, engerr.NewStorage("get_project", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return nil, engerr.NewStorage("get_project", engerr.KindInternal, err)
	}
	return &pr, nil
}

func (p *Postgres) SaveProject(ctx context.Context, pr storage.Project) error {
	now := time.Now()
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now
	_, err := p.pool.Exec(ctx, `
		INSERT INTO projects (id, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = excluded.updated_at
	`, pr.ID, pr.Name, pr.Data, pr.CreatedAt, pr.UpdatedAt)
	if err != nil {
		return engerr.NewStorage("save_project", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) DeleteProject(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return engerr.NewStorage("delete_project", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) ProjectExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(1) FROM projects WHERE id = $1`, id).Scan(&n)
	if err != nil {
		return false, engerr.NewStorage("project_exists", engerr.KindInternal, err)
	}
	return n > 0, nil
}

func (p *Postgres) KGEnsure(ctx context.Context, projectID, nodeID string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `SELECT id FROM knowledge_graphs WHERE project_id = $1 AND node_id = $2`, projectID, nodeID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, engerr.NewStorage("kg_ensure", engerr.KindInternal, err)
	}
	err = p.pool.QueryRow(ctx, `INSERT INTO knowledge_graphs (project_id, node_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
		projectID, nodeID, time.Now()).Scan(&id)
	if err != nil {
		return 0, engerr.NewStorage("kg_ensure", engerr.KindInternal, err)
	}
	return id, nil
}

func (p *Postgres) KGAddEntity(ctx context.Context, kgID int64, name string, properties map[string]any) (int64, error) {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return 0, engerr.NewStorage("kg_add_entity", engerr.KindInternal, err)
	}
	now := time.Now()
	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO kg_entities (knowledge_graph_id, entity_name, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, kgID, name, propsJSON, now, now).Scan(&id)
	if err != nil {
		return 0, engerr.NewStorage("kg_add_entity", engerr.KindDuplicateEntity, err)
	}
	return id, nil
}

func (p *Postgres) KGUpdateEntity(ctx context.Context, entityID int64, properties map[string]any) error {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return engerr.NewStorage("kg_update_entity", engerr.KindInternal, err)
	}
	_, err = p.pool.Exec(ctx, `UPDATE kg_entities SET properties = $1, updated_at = $2 WHERE id = $3`, propsJSON, time.Now(), entityID)
	if err != nil {
		return engerr.NewStorage("kg_update_entity", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) KGAddEntityProperty(ctx context.Context, entityID int64, key string, value any) error {
	props, err := p.kgEntityProperties(ctx, entityID)
	if err != nil {
		return err
	}
	props[key] = value
	return p.KGUpdateEntity(ctx, entityID, props)
}

func (p *Postgres) KGRemoveEntityProperty(ctx context.Context, entityID int64, key string) error {
	props, err := p.kgEntityProperties(ctx, entityID)
	if err != nil {
		return err
	}
	delete(props, key)
	return p.KGUpdateEntity(ctx, entityID, props)
}

func (p *Postgres) kgEntityProperties(ctx context.Context, entityID int64) (map[string]any, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT properties FROM kg_entities WHERE id = $1`, entityID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindInternal, err)
	}
	props := map[string]any{}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindInternal, err)
	}
	return props, nil
}

func (p *Postgres) KGRemoveEntity(ctx context.Context, entityID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kg_entities WHERE id = $1`, entityID)
	if err != nil {
		return engerr.NewStorage("kg_remove_entity", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) KGGetEntityID(ctx context.Context, kgID int64, name string) (int64, bool, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `SELECT id FROM kg_entities WHERE knowledge_graph_id = $1 AND entity_name = $2`, kgID, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, engerr.NewStorage("kg_get_entity_id", engerr.KindInternal, err)
	}
	return id, true, nil
}

func (p *Postgres) KGAddRelationship(ctx context.Context, kgID, fromEntityID, toEntityID int64, relType string, properties map[string]any) (int64, error) {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return 0, engerr.NewStorage("kg_add_relationship", engerr.KindInternal, err)
	}
	now := time.Now()
	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO kg_relationships (knowledge_graph_id, from_entity_id, to_entity_id, rel_type, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
	`, kgID, fromEntityID, toEntityID, relType, propsJSON, now, now).Scan(&id)
	if err != nil {
		return 0, engerr.NewStorage("kg_add_relationship", engerr.KindDuplicateRelationship, err)
	}
	return id, nil
}

func (p *Postgres) kgRelationshipProperties(ctx context.Context, relID int64) (map[string]any, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT properties FROM kg_relationships WHERE id = $1`, relID).Scan(&raw)
	if err != nil {
		return nil, engerr.NewStorage("kg_relationship_properties", engerr.KindInternal, err)
	}
	props := map[string]any{}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, engerr.NewStorage("kg_relationship_properties", engerr.KindInternal, err)
	}
	return props, nil
}

func (p *Postgres) KGUpdateRelationshipProperty(ctx context.Context, relID int64, key string, value any) error {
	props, err := p.kgRelationshipProperties(ctx, relID)
	if err != nil {
		return err
	}
	props[key] = value
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return engerr.NewStorage("kg_update_relationship_property", engerr.KindInternal, err)
	}
	_, err = p.pool.Exec(ctx, `UPDATE kg_relationships SET properties = $1, updated_at = $2 WHERE id = $3`, propsJSON, time.Now(), relID)
	if err != nil {
		return engerr.NewStorage("kg_update_relationship_property", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) KGRemoveRelationshipProperty(ctx context.Context, relID int64, key string) error {
	props, err := p.kgRelationshipProperties(ctx, relID)
	if err != nil {
		return err
	}
	delete(props, key)
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship_property", engerr.KindInternal, err)
	}
	_, err = p.pool.Exec(ctx, `UPDATE kg_relationships SET properties = $1, updated_at = $2 WHERE id = $3`, propsJSON, time.Now(), relID)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship_property", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) KGRemoveRelationship(ctx context.Context, relID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kg_relationships WHERE id = $1`, relID)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) KGLoadFull(ctx context.Context, kgID int64) (*storage.KGSnapshot, error) {
	entRows, err := p.pool.Query(ctx, `SELECT id, entity_name, properties, created_at, updated_at FROM kg_entities WHERE knowledge_graph_id = $1`, kgID)
	if err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}
	defer entRows.Close()

	var snap storage.KGSnapshot
	for entRows.Next() {
		var e storage.KGEntity
		var raw []byte
		if err := entRows.Scan(&e.ID, &e.Name, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		e.Properties = map[string]any{}
		if err := json.Unmarshal(raw, &e.Properties); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}

	relRows, err := p.pool.Query(ctx, `
		SELECT id, from_entity_id, to_entity_id, rel_type, properties, created_at, updated_at
		FROM kg_relationships WHERE knowledge_graph_id = $1
	`, kgID)
	if err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var r storage.KGRelationship
		var raw []byte
		if err := relRows.Scan(&r.ID, &r.FromEntityID, &r.ToEntityID, &r.Type, &raw, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		r.Properties = map[string]any{}
		if err := json.Unmarshal(raw, &r.Properties); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		snap.Relationships = append(snap.Relationships, r)
	}
	return &snap, relRows.Err()
}

func (p *Postgres) MSEnsure(ctx context.Context, projectID, nodeID string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `SELECT id FROM memory_streams WHERE project_id = $1 AND node_id = $2`, projectID, nodeID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, engerr.NewStorage("ms_ensure", engerr.KindInternal, err)
	}
	err = p.pool.QueryRow(ctx, `INSERT INTO memory_streams (project_id, node_id, last_reflection_point, created_at) VALUES ($1, $2, 0, $3) RETURNING id`,
		projectID, nodeID, time.Now()).Scan(&id)
	if err != nil {
		return 0, engerr.NewStorage("ms_ensure", engerr.KindInternal, err)
	}
	return id, nil
}

func (p *Postgres) MSAddObservation(ctx context.Context, msID int64, obs storage.Observation) (int64, error) {
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	if obs.AccessedAt.IsZero() {
		obs.AccessedAt = obs.CreatedAt
	}
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO observations (memory_stream_id, content_type, content, embedding, importance, created_at, accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
	`, msID, obs.ContentType, obs.Content, encodeEmbedding(obs.Embedding), obs.Importance, obs.CreatedAt, obs.AccessedAt).Scan(&id)
	if err != nil {
		return 0, engerr.NewStorage("ms_add_observation", engerr.KindInternal, err)
	}
	return id, nil
}

// MSSearch mirrors the SQLite backend's in-application cosine-distance
// scan; Postgres's pgvector extension would be the natural home for this
// but isn't part of the wired dependency set, so the same brute-force
// scoring is used here for parity between backends.
func (p *Postgres) MSSearch(ctx context.Context, msID int64, queryEmbedding []float32, k int, filter storage.SearchFilter) ([]storage.ObservationMatch, error) {
	query := `SELECT id, content_type, content, embedding, importance, created_at, accessed_at FROM observations WHERE memory_stream_id = $1`
	args := []any{msID}
	argN := 2
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argN)
		args = append(args, *filter.To)
		argN++
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
	}
	defer rows.Close()

	var matches []storage.ObservationMatch
	for rows.Next() {
		var obs storage.Observation
		var embeddingBlob []byte
		if err := rows.Scan(&obs.DBID, &obs.ContentType, &obs.Content, &embeddingBlob, &obs.Importance, &obs.CreatedAt, &obs.AccessedAt); err != nil {
			return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
		}
		obs.Embedding = decodeEmbedding(embeddingBlob)
		matches = append(matches, storage.ObservationMatch{
			Observation: obs,
			Distance:    cosineDistance(obs.Embedding, queryEmbedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
	}

	sortMatches(matches)
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (p *Postgres) MSUpdateAccessed(ctx context.Context, observationDBID int64, accessedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE observations SET accessed_at = $1 WHERE id = $2`, accessedAt, observationDBID)
	if err != nil {
		return engerr.NewStorage("ms_update_accessed", engerr.KindInternal, err)
	}
	return nil
}

func (p *Postgres) MSGetMetadata(ctx context.Context, msID int64) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT last_reflection_point FROM memory_streams WHERE id = $1`, msID).Scan(&n)
	if err == pgx.ErrNoRows {
		return 0, engerr.NewStorage("ms_get_metadata", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return 0, engerr.NewStorage("ms_get_metadata", engerr.KindInternal, err)
	}
	return n, nil
}

func (p *Postgres) MSUpdateMetadata(ctx context.Context, msID int64, lastReflectionPoint int) error {
	_, err := p.pool.Exec(ctx, `UPDATE memory_streams SET last_reflection_point = $1 WHERE id = $2`, lastReflectionPoint, msID)
	if err != nil {
		return engerr.NewStorage("ms_update_metadata", engerr.KindInternal, err)
	}
	return nil
}

var _ storage.Backend = (*Postgres)(nil)

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func sortMatches(m []storage.ObservationMatch) {
	sort.Slice(m, func(i, j int) bool { return m[i].Distance < m[j].Distance })
}
