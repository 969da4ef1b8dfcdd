// Package knowledge implements the in-memory knowledge-graph façade bound
// to an agent's "knowledge" port: a directed multigraph of named entities
// and typed relationships, with the traversal helpers the original
// memory/knowledge_graph.py exposes (find_path, get_neighbors,
// get_most_connected, connected components, ...). Persistence is
// delegated to storage.Backend when one is configured; without a backend
// the graph lives purely in memory, mirroring the teacher's MemoryGraph
// (rag/store/knowledge_graph.go).
package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/beezlebug/agentgraph/engerr"
	"github.com/beezlebug/agentgraph/storage"
)

// Entity is a named node, with a free-form property bag.
type Entity struct {
	Name       string
	Properties map[string]any
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	From       string
	To         string
	Type       string
	Properties map[string]any
}

// Graph is a directed multigraph of entities and relationships. All
// public methods are safe for concurrent use; an agent's knowledge-graph
// resource is shared across its turns.
type Graph struct {
	mu            sync.RWMutex
	entities      map[string]*Entity
	outgoing      map[string][]*Relationship
	incoming      map[string][]*Relationship
	storage       storage.Backend
	kgID          int64
	entityDBID    map[string]int64
}

// New returns an empty, purely in-memory graph.
func New() *Graph {
	return &Graph{
		entities:   make(map[string]*Entity),
		outgoing:   make(map[string][]*Relationship),
		incoming:   make(map[string][]*Relationship),
		entityDBID: make(map[string]int64),
	}
}

// BindStorage attaches a backend and the knowledge-graph row id so future
// mutations persist. Used by the execution graph builder when assembling
// a knowledge_graph node backed by a storage.Backend.
func (g *Graph) BindStorage(backend storage.Backend, kgID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.storage = backend
	g.kgID = kgID
}

// LoadSnapshot populates an empty, storage-bound graph from a previously
// persisted snapshot, used by the execution graph builder when restoring
// a knowledge_graph node's state at deploy time. It bypasses the
// storage-write path of AddEntity/AddRelationship since the rows already
// exist; it only rebuilds the in-memory indexes and the name/id mapping.
func (g *Graph) LoadSnapshot(snapshot *storage.KGSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idToName := make(map[int64]string, len(snapshot.Entities))
	for _, e := range snapshot.Entities {
		g.entities[e.Name] = &Entity{Name: e.Name, Properties: cloneProps(e.Properties)}
		g.entityDBID[e.Name] = e.ID
		idToName[e.ID] = e.Name
	}
	for _, r := range snapshot.Relationships {
		from, ok1 := idToName[r.FromEntityID]
		to, ok2 := idToName[r.ToEntityID]
		if !ok1 || !ok2 {
			continue
		}
		rel := &Relationship{From: from, To: to, Type: r.Type, Properties: cloneProps(r.Properties)}
		g.outgoing[from] = append(g.outgoing[from], rel)
		g.incoming[to] = append(g.incoming[to], rel)
	}
}

// AddEntity inserts a new entity by name; it returns a DuplicateEntity
// storage error if an entity with that name already exists.
func (g *Graph) AddEntity(ctx context.Context, name string, properties map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.entities[name]; exists {
		return engerr.NewStorage("add_entity", engerr.KindDuplicateEntity, nil)
	}
	g.entities[name] = &Entity{Name: name, Properties: cloneProps(properties)}

	if g.storage != nil {
		id, err := g.storage.KGAddEntity(ctx, g.kgID, name, properties)
		if err != nil {
			delete(g.entities, name)
			return err
		}
		g.entityDBID[name] = id
	}
	return nil
}

// AddEntityProperty sets a single property on an existing entity.
func (g *Graph) AddEntityProperty(ctx context.Context, name, key string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entities[name]
	if !ok {
		return engerr.NewStorage("add_entity_property", engerr.KindEntityNotFound, nil)
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	e.Properties[key] = value

	if g.storage != nil {
		if id, ok := g.entityDBID[name]; ok {
			return g.storage.KGAddEntityProperty(ctx, id, key, value)
		}
	}
	return nil
}

// GetEntity returns the entity by name, or ok=false if absent.
func (g *Graph) GetEntity(name string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[name]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// RemoveEntity deletes an entity and every relationship touching it.
func (g *Graph) RemoveEntity(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entities[name]; !ok {
		return engerr.NewStorage("remove_entity", engerr.KindEntityNotFound, nil)
	}
	delete(g.entities, name)
	g.outgoing[name] = nil
	g.incoming[name] = nil
	for other, rels := range g.outgoing {
		g.outgoing[other] = filterRels(rels, name)
	}
	for other, rels := range g.incoming {
		g.incoming[other] = filterRels(rels, name)
	}

	if g.storage != nil {
		if id, ok := g.entityDBID[name]; ok {
			delete(g.entityDBID, name)
			return g.storage.KGRemoveEntity(ctx, id)
		}
	}
	return nil
}

func filterRels(rels []*Relationship, excludeEntity string) []*Relationship {
	out := rels[:0]
	for _, r := range rels {
		if r.From != excludeEntity && r.To != excludeEntity {
			out = append(out, r)
		}
	}
	return out
}

// AddRelationship connects two existing entities. Both endpoints must
// already exist.
func (g *Graph) AddRelationship(ctx context.Context, from, to, relType string, properties map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entities[from]; !ok {
		return engerr.NewStorage("add_relationship", engerr.KindEntityNotFound, nil)
	}
	if _, ok := g.entities[to]; !ok {
		return engerr.NewStorage("add_relationship", engerr.KindEntityNotFound, nil)
	}
	rel := &Relationship{From: from, To: to, Type: relType, Properties: cloneProps(properties)}
	g.outgoing[from] = append(g.outgoing[from], rel)
	g.incoming[to] = append(g.incoming[to], rel)

	if g.storage != nil {
		fromID, to2ID := g.entityDBID[from], g.entityDBID[to]
		if _, err := g.storage.KGAddRelationship(ctx, g.kgID, fromID, to2ID, relType, properties); err != nil {
			return err
		}
	}
	return nil
}

// GetRelationships returns every relationship touching entity (both
// directions), or every relationship in the graph if entity is "".
func (g *Graph) GetRelationships(entity string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if entity == "" {
		var all []Relationship
		for _, rels := range g.outgoing {
			for _, r := range rels {
				all = append(all, *r)
			}
		}
		return all
	}
	var out []Relationship
	for _, r := range g.outgoing[entity] {
		out = append(out, *r)
	}
	for _, r := range g.incoming[entity] {
		out = append(out, *r)
	}
	return out
}

// FindEntitiesByType returns entity names whose "type" property equals
// entityType, mirroring the original's find_entities_by_type.
func (g *Graph) FindEntitiesByType(entityType string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for name, e := range g.entities {
		if t, _ := e.Properties["type"].(string); t == entityType {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FindRelationshipsByType returns every relationship of the given type.
func (g *Graph) FindRelationshipsByType(relType string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Relationship
	for _, rels := range g.outgoing {
		for _, r := range rels {
			if r.Type == relType {
				out = append(out, *r)
			}
		}
	}
	return out
}

// Neighbours returns the set of entity names directly reachable from
// entity in either direction, de-duplicated.
func (g *Graph) Neighbours(entity string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := map[string]bool{}
	for _, r := range g.outgoing[entity] {
		seen[r.To] = true
	}
	for _, r := range g.incoming[entity] {
		seen[r.From] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FindPath returns the shortest undirected path of entity names from
// start to end (inclusive), or nil if unreachable. Uses breadth-first
// search, matching the original's find_path semantics.
func (g *Graph) FindPath(start, end string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if start == end {
		return []string{start}
	}
	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.neighboursLocked(cur) {
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = cur
			if next == end {
				return reconstructPath(prev, end)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *Graph) neighboursLocked(entity string) []string {
	seen := map[string]bool{}
	for _, r := range g.outgoing[entity] {
		seen[r.To] = true
	}
	for _, r := range g.incoming[entity] {
		seen[r.From] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func reconstructPath(prev map[string]string, end string) []string {
	var path []string
	for cur := end; cur != ""; cur = prev[cur] {
		path = append([]string{cur}, path...)
		if prev[cur] == "" {
			break
		}
	}
	return path
}

// ConnectedWithinK returns every entity reachable from start within k
// hops (exclusive of start itself).
func (g *Graph) ConnectedWithinK(start string, k int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] >= k {
			continue
		}
		for _, next := range g.neighboursLocked(cur) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = visited[cur] + 1
			queue = append(queue, next)
		}
	}
	delete(visited, start)
	out := make([]string, 0, len(visited))
	for name := range visited {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// connectivityCount pairs an entity with its total relationship degree.
type connectivityCount struct {
	Name  string
	Count int
}

// MostConnected returns the n entities with the highest combined
// in+out degree, descending, matching get_most_connected.
func (g *Graph) MostConnected(n int) []connectivityCount {
	g.mu.RLock()
	defer g.mu.RUnlock()
	counts := make([]connectivityCount, 0, len(g.entities))
	for name := range g.entities {
		counts = append(counts, connectivityCount{Name: name, Count: len(g.outgoing[name]) + len(g.incoming[name])})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// IsolatedEntities returns entities with no relationships at all.
func (g *Graph) IsolatedEntities() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for name := range g.entities {
		if len(g.outgoing[name])+len(g.incoming[name]) == 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsConnected reports whether the graph (as an undirected graph) has at
// most one connected component.
func (g *Graph) IsConnected() bool {
	return len(g.ConnectedComponents()) <= 1
}

// ConnectedComponents partitions every entity into undirected connected
// components.
func (g *Graph) ConnectedComponents() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := map[string]bool{}
	var components [][]string
	names := make([]string, 0, len(g.entities))
	for name := range g.entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, start := range names {
		if visited[start] {
			continue
		}
		var component []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, cur)
			for _, next := range g.neighboursLocked(cur) {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

// Len returns the number of entities in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// ToDict exports the graph as a plain map for serialization, mirroring
// the original's to_dict.
func (g *Graph) ToDict() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entities := make(map[string]any, len(g.entities))
	for name, e := range g.entities {
		entities[name] = e.Properties
	}
	var relationships []map[string]any
	for _, rels := range g.outgoing {
		for _, r := range rels {
			relationships = append(relationships, map[string]any{
				"from": r.From, "to": r.To, "type": r.Type, "properties": r.Properties,
			})
		}
	}
	return map[string]any{"entities": entities, "relationships": relationships}
}

func cloneProps(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
