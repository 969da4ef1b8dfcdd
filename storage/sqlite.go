package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/beezlebug/agentgraph/engerr"
)

// EmbeddingDim is the fixed vector width memory-stream embeddings use,
// matching the original implementation's EMBEDDING_DIM.
const EmbeddingDim = 384

// SQLite is the primary Backend implementation, grounded on the schema in
// the original's storage/sqlite_backend.py and the teacher's sql.Open /
// InitSchema construction pattern (store/sqlite/sqlite.go). The upstream
// backend offloads vector search to the sqlite-vec extension; no Go
// binding for that extension exists anywhere in reach, so MSSearch here
// computes cosine distance in application code over BLOB-stored
// embeddings instead (see DESIGN.md).
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and installs the
// schema if it isn't present yet.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, engerr.NewStorage("open", engerr.KindInternal, err)
	}
	s := &SQLite{db: db}
	if err := s.Initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Initialize(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_graphs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(project_id, node_id)
);

CREATE TABLE IF NOT EXISTS kg_entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	knowledge_graph_id INTEGER NOT NULL REFERENCES knowledge_graphs(id) ON DELETE CASCADE,
	entity_name TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(knowledge_graph_id, entity_name)
);

CREATE TABLE IF NOT EXISTS kg_relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	knowledge_graph_id INTEGER NOT NULL REFERENCES knowledge_graphs(id) ON DELETE CASCADE,
	from_entity_id INTEGER NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
	to_entity_id INTEGER NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
	rel_type TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kg_rel_from ON kg_relationships(from_entity_id);
CREATE INDEX IF NOT EXISTS idx_kg_rel_to ON kg_relationships(to_entity_id);
CREATE INDEX IF NOT EXISTS idx_kg_rel_type ON kg_relationships(rel_type);

CREATE TABLE IF NOT EXISTS memory_streams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	last_reflection_point INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(project_id, node_id)
);

CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_stream_id INTEGER NOT NULL REFERENCES memory_streams(id) ON DELETE CASCADE,
	content_type TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	importance REAL NOT NULL DEFAULT 0.0,
	created_at DATETIME NOT NULL,
	accessed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_obs_stream ON observations(memory_stream_id);
CREATE INDEX IF NOT EXISTS idx_obs_created ON observations(created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return engerr.NewStorage("init_schema", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, data, created_at, updated_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, engerr.NewStorage("list_projects", engerr.KindInternal, err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Data, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("list_projects", engerr.KindInternal, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, data, created_at, updated_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Data, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, engerr.NewStorage("get_project", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return nil, engerr.NewStorage("get_project", engerr.KindInternal, err)
	}
	return &p, nil
}

func (s *SQLite) SaveProject(ctx context.Context, p Project) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Data, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return engerr.NewStorage("save_project", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return engerr.NewStorage("delete_project", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) ProjectExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, engerr.NewStorage("project_exists", engerr.KindInternal, err)
	}
	return n > 0, nil
}

func (s *SQLite) KGEnsure(ctx context.Context, projectID, nodeID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM knowledge_graphs WHERE project_id = ? AND node_id = ?`, projectID, nodeID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, engerr.NewStorage("kg_ensure", engerr.KindInternal, err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO knowledge_graphs (project_id, node_id, created_at) VALUES (?, ?, ?)`,
		projectID, nodeID, time.Now())
	if err != nil {
		return 0, engerr.NewStorage("kg_ensure", engerr.KindInternal, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) KGAddEntity(ctx context.Context, kgID int64, name string, properties map[string]any) (int64, error) {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return 0, engerr.NewStorage("kg_add_entity", engerr.KindInternal, err)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kg_entities (knowledge_graph_id, entity_name, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, kgID, name, propsJSON, now, now)
	if err != nil {
		return 0, engerr.NewStorage("kg_add_entity", engerr.KindDuplicateEntity, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) KGUpdateEntity(ctx context.Context, entityID int64, properties map[string]any) error {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return engerr.NewStorage("kg_update_entity", engerr.KindInternal, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE kg_entities SET properties = ?, updated_at = ? WHERE id = ?`, propsJSON, time.Now(), entityID)
	if err != nil {
		return engerr.NewStorage("kg_update_entity", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) KGAddEntityProperty(ctx context.Context, entityID int64, key string, value any) error {
	props, err := s.kgEntityProperties(ctx, entityID)
	if err != nil {
		return err
	}
	props[key] = value
	return s.KGUpdateEntity(ctx, entityID, props)
}

func (s *SQLite) KGRemoveEntityProperty(ctx context.Context, entityID int64, key string) error {
	props, err := s.kgEntityProperties(ctx, entityID)
	if err != nil {
		return err
	}
	delete(props, key)
	return s.KGUpdateEntity(ctx, entityID, props)
}

func (s *SQLite) kgEntityProperties(ctx context.Context, entityID int64) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT properties FROM kg_entities WHERE id = ?`, entityID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindInternal, err)
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, engerr.NewStorage("kg_entity_properties", engerr.KindInternal, err)
	}
	return props, nil
}

func (s *SQLite) KGRemoveEntity(ctx context.Context, entityID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kg_entities WHERE id = ?`, entityID)
	if err != nil {
		return engerr.NewStorage("kg_remove_entity", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) KGGetEntityID(ctx context.Context, kgID int64, name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM kg_entities WHERE knowledge_graph_id = ? AND entity_name = ?`, kgID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, engerr.NewStorage("kg_get_entity_id", engerr.KindInternal, err)
	}
	return id, true, nil
}

func (s *SQLite) KGAddRelationship(ctx context.Context, kgID, fromEntityID, toEntityID int64, relType string, properties map[string]any) (int64, error) {
	propsJSON, err := json.Marshal(orEmptyMap(properties))
	if err != nil {
		return 0, engerr.NewStorage("kg_add_relationship", engerr.KindInternal, err)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kg_relationships (knowledge_graph_id, from_entity_id, to_entity_id, rel_type, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, kgID, fromEntityID, toEntityID, relType, propsJSON, now, now)
	if err != nil {
		return 0, engerr.NewStorage("kg_add_relationship", engerr.KindDuplicateRelationship, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) kgRelationshipProperties(ctx context.Context, relID int64) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT properties FROM kg_relationships WHERE id = ?`, relID).Scan(&raw)
	if err != nil {
		return nil, engerr.NewStorage("kg_relationship_properties", engerr.KindInternal, err)
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, engerr.NewStorage("kg_relationship_properties", engerr.KindInternal, err)
	}
	return props, nil
}

func (s *SQLite) KGUpdateRelationshipProperty(ctx context.Context, relID int64, key string, value any) error {
	props, err := s.kgRelationshipProperties(ctx, relID)
	if err != nil {
		return err
	}
	props[key] = value
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return engerr.NewStorage("kg_update_relationship_property", engerr.KindInternal, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE kg_relationships SET properties = ?, updated_at = ? WHERE id = ?`, propsJSON, time.Now(), relID)
	if err != nil {
		return engerr.NewStorage("kg_update_relationship_property", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) KGRemoveRelationshipProperty(ctx context.Context, relID int64, key string) error {
	props, err := s.kgRelationshipProperties(ctx, relID)
	if err != nil {
		return err
	}
	delete(props, key)
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship_property", engerr.KindInternal, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE kg_relationships SET properties = ?, updated_at = ? WHERE id = ?`, propsJSON, time.Now(), relID)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship_property", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) KGRemoveRelationship(ctx context.Context, relID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kg_relationships WHERE id = ?`, relID)
	if err != nil {
		return engerr.NewStorage("kg_remove_relationship", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) KGLoadFull(ctx context.Context, kgID int64) (*KGSnapshot, error) {
	entRows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_name, properties, created_at, updated_at FROM kg_entities WHERE knowledge_graph_id = ?
	`, kgID)
	if err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}
	defer entRows.Close()

	var snap KGSnapshot
	for entRows.Next() {
		var e KGEntity
		var raw string
		if err := entRows.Scan(&e.ID, &e.Name, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		e.Properties = map[string]any{}
		if err := json.Unmarshal([]byte(raw), &e.Properties); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}

	relRows, err := s.db.QueryContext(ctx, `
		SELECT id, from_entity_id, to_entity_id, rel_type, properties, created_at, updated_at
		FROM kg_relationships WHERE knowledge_graph_id = ?
	`, kgID)
	if err != nil {
		return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var r KGRelationship
		var raw string
		if err := relRows.Scan(&r.ID, &r.FromEntityID, &r.ToEntityID, &r.Type, &raw, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		r.Properties = map[string]any{}
		if err := json.Unmarshal([]byte(raw), &r.Properties); err != nil {
			return nil, engerr.NewStorage("kg_load_full", engerr.KindInternal, err)
		}
		snap.Relationships = append(snap.Relationships, r)
	}
	return &snap, relRows.Err()
}

func (s *SQLite) MSEnsure(ctx context.Context, projectID, nodeID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM memory_streams WHERE project_id = ? AND node_id = ?`, projectID, nodeID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, engerr.NewStorage("ms_ensure", engerr.KindInternal, err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO memory_streams (project_id, node_id, last_reflection_point, created_at) VALUES (?, ?, 0, ?)`,
		projectID, nodeID, time.Now())
	if err != nil {
		return 0, engerr.NewStorage("ms_ensure", engerr.KindInternal, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) MSAddObservation(ctx context.Context, msID int64, obs Observation) (int64, error) {
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	if obs.AccessedAt.IsZero() {
		obs.AccessedAt = obs.CreatedAt
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (memory_stream_id, content_type, content, embedding, importance, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msID, obs.ContentType, obs.Content, encodeEmbedding(obs.Embedding), obs.Importance, obs.CreatedAt, obs.AccessedAt)
	if err != nil {
		return 0, engerr.NewStorage("ms_add_observation", engerr.KindInternal, err)
	}
	return res.LastInsertId()
}

// MSSearch ranks observations in msID by cosine distance to queryEmbedding
// and returns the top k. The original delegates this to the sqlite-vec
// MATCH operator over a vec0 virtual table; that extension has no Go
// binding anywhere in reach, so this scans and scores in Go instead.
func (s *SQLite) MSSearch(ctx context.Context, msID int64, queryEmbedding []float32, k int, filter SearchFilter) ([]ObservationMatch, error) {
	query := `SELECT id, content_type, content, embedding, importance, created_at, accessed_at FROM observations WHERE memory_stream_id = ?`
	args := []any{msID}
	if filter.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, *filter.To)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
	}
	defer rows.Close()

	var matches []ObservationMatch
	for rows.Next() {
		var obs Observation
		var embeddingBlob []byte
		if err := rows.Scan(&obs.DBID, &obs.ContentType, &obs.Content, &embeddingBlob, &obs.Importance, &obs.CreatedAt, &obs.AccessedAt); err != nil {
			return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
		}
		obs.Embedding = decodeEmbedding(embeddingBlob)
		matches = append(matches, ObservationMatch{
			Observation: obs,
			Distance:    cosineDistance(obs.Embedding, queryEmbedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, engerr.NewStorage("ms_search", engerr.KindInternal, err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *SQLite) MSUpdateAccessed(ctx context.Context, observationDBID int64, accessedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE observations SET accessed_at = ? WHERE id = ?`, accessedAt, observationDBID)
	if err != nil {
		return engerr.NewStorage("ms_update_accessed", engerr.KindInternal, err)
	}
	return nil
}

func (s *SQLite) MSGetMetadata(ctx context.Context, msID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT last_reflection_point FROM memory_streams WHERE id = ?`, msID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, engerr.NewStorage("ms_get_metadata", engerr.KindEntityNotFound, nil)
	}
	if err != nil {
		return 0, engerr.NewStorage("ms_get_metadata", engerr.KindInternal, err)
	}
	return n, nil
}

func (s *SQLite) MSUpdateMetadata(ctx context.Context, msID int64, lastReflectionPoint int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memory_streams SET last_reflection_point = ? WHERE id = ?`, lastReflectionPoint, msID)
	if err != nil {
		return engerr.NewStorage("ms_update_metadata", engerr.KindInternal, err)
	}
	return nil
}

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

// cosineDistance returns 1 - cosine_similarity, so smaller is closer,
// matching sqlite-vec's distance convention for the MATCH operator.
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
