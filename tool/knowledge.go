package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/beezlebug/agentgraph/engerr"
)

// Knowledge-graph tools, grounded on
// _examples/original_source/backend/beezle_bug/tools/memory/knowledge_graph.py,
// adapted to knowledge.Graph's actual CRUD/query surface.

func init() {
	Register("kg_add_entity", func() Tool { return kgAddEntityTool{} })
	Register("kg_add_property", func() Tool { return kgAddPropertyTool{} })
	Register("kg_add_relationship", func() Tool { return kgAddRelationshipTool{} })
	Register("kg_get_entity", func() Tool { return kgGetEntityTool{} })
	Register("kg_get_relationships", func() Tool { return kgGetRelationshipsTool{} })
	Register("kg_remove_entity", func() Tool { return kgRemoveEntityTool{} })
	Register("kg_find_by_type", func() Tool { return kgFindByTypeTool{} })
	Register("kg_find_path", func() Tool { return kgFindPathTool{} })
	Register("kg_get_neighbors", func() Tool { return kgNeighboursTool{} })
	Register("kg_most_connected", func() Tool { return kgMostConnectedTool{} })
	Register("kg_isolated_entities", func() Tool { return kgIsolatedEntitiesTool{} })
	Register("kg_check_connectivity", func() Tool { return kgCheckConnectivityTool{} })
}

func noKGErr() (string, error) {
	return "", engerr.NewTool("knowledge_graph", nil)
}

type kgAddEntityTool struct{}

func (kgAddEntityTool) Name() string { return "kg_add_entity" }
func (kgAddEntityTool) Description() string {
	return "Add a new entity to the knowledge graph with a type."
}
func (kgAddEntityTool) Parameters() map[string]any {
	return map[string]any{
		"name": map[string]any{"type": "string", "description": "The name of the entity."},
		"type": map[string]any{"type": "string", "description": "The type of the entity (e.g. person, city, company)."},
	}
}
func (kgAddEntityTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if err := kg.AddEntity(ctx, args.Name, map[string]any{"type": args.Type}); err != nil {
		return "Error: " + err.Error(), nil
	}
	return "Entity added: " + args.Name, nil
}

type kgAddPropertyTool struct{}

func (kgAddPropertyTool) Name() string        { return "kg_add_property" }
func (kgAddPropertyTool) Description() string { return "Add a property to an existing entity." }
func (kgAddPropertyTool) Parameters() map[string]any {
	return map[string]any{
		"entity":   map[string]any{"type": "string", "description": "The name of the entity"},
		"property": map[string]any{"type": "string", "description": "The property name"},
		"value":    map[string]any{"type": "string", "description": "The property value"},
	}
}
func (kgAddPropertyTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Entity, Property, Value string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if err := kg.AddEntityProperty(ctx, args.Entity, args.Property, args.Value); err != nil {
		return "Error: " + err.Error(), nil
	}
	return "Property added.", nil
}

type kgAddRelationshipTool struct{}

func (kgAddRelationshipTool) Name() string { return "kg_add_relationship" }
func (kgAddRelationshipTool) Description() string {
	return "Add a new relationship between two entities in the knowledge graph."
}
func (kgAddRelationshipTool) Parameters() map[string]any {
	return map[string]any{
		"entity1":      map[string]any{"type": "string", "description": "The starting entity."},
		"relationship": map[string]any{"type": "string", "description": "The type of relationship."},
		"entity2":      map[string]any{"type": "string", "description": "The target entity."},
	}
}
func (kgAddRelationshipTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct {
		Entity1      string `json:"entity1"`
		Relationship string `json:"relationship"`
		Entity2      string `json:"entity2"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if err := kg.AddRelationship(ctx, args.Entity1, args.Entity2, args.Relationship, nil); err != nil {
		return "Error: " + err.Error(), nil
	}
	return "Relationship added.", nil
}

type kgGetEntityTool struct{}

func (kgGetEntityTool) Name() string        { return "kg_get_entity" }
func (kgGetEntityTool) Description() string { return "Retrieve an entity from the knowledge graph." }
func (kgGetEntityTool) Parameters() map[string]any {
	return map[string]any{"entity": map[string]any{"type": "string", "description": "The entity to retrieve"}}
}
func (kgGetEntityTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Entity string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	entity, ok := kg.GetEntity(args.Entity)
	if !ok {
		return "Entity not found.", nil
	}
	out, err := json.Marshal(entity)
	return string(out), err
}

type kgGetRelationshipsTool struct{}

func (kgGetRelationshipsTool) Name() string { return "kg_get_relationships" }
func (kgGetRelationshipsTool) Description() string {
	return "Retrieve relationships involving a specific entity, or all relationships if entity is empty."
}
func (kgGetRelationshipsTool) Parameters() map[string]any {
	return map[string]any{"entity": map[string]any{"type": "string", "description": "The entity whose relationships to retrieve; empty retrieves all."}}
}
func (kgGetRelationshipsTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Entity string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	out, err := json.Marshal(kg.GetRelationships(args.Entity))
	return string(out), err
}

type kgRemoveEntityTool struct{}

func (kgRemoveEntityTool) Name() string { return "kg_remove_entity" }
func (kgRemoveEntityTool) Description() string {
	return "Remove an entity and all its relationships from the knowledge graph."
}
func (kgRemoveEntityTool) Parameters() map[string]any {
	return map[string]any{"entity": map[string]any{"type": "string", "description": "The name of the entity to remove."}}
}
func (kgRemoveEntityTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Entity string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if err := kg.RemoveEntity(ctx, args.Entity); err != nil {
		return "Error: " + err.Error(), nil
	}
	return "Entity removed: " + args.Entity, nil
}

type kgFindByTypeTool struct{}

func (kgFindByTypeTool) Name() string        { return "kg_find_by_type" }
func (kgFindByTypeTool) Description() string { return "Find all entities of a given type." }
func (kgFindByTypeTool) Parameters() map[string]any {
	return map[string]any{"type": map[string]any{"type": "string", "description": "The entity type to search for."}}
}
func (kgFindByTypeTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	out, err := json.Marshal(kg.FindEntitiesByType(args.Type))
	return string(out), err
}

type kgFindPathTool struct{}

func (kgFindPathTool) Name() string { return "kg_find_path" }
func (kgFindPathTool) Description() string {
	return "Find the shortest path of relationships between two entities."
}
func (kgFindPathTool) Parameters() map[string]any {
	return map[string]any{
		"start": map[string]any{"type": "string", "description": "The starting entity."},
		"end":   map[string]any{"type": "string", "description": "The target entity."},
	}
}
func (kgFindPathTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Start, End string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	path := kg.FindPath(args.Start, args.End)
	if path == nil {
		return "No path found.", nil
	}
	return strings.Join(path, " -> "), nil
}

type kgNeighboursTool struct{}

func (kgNeighboursTool) Name() string        { return "kg_get_neighbors" }
func (kgNeighboursTool) Description() string { return "Get the entities directly connected to an entity." }
func (kgNeighboursTool) Parameters() map[string]any {
	return map[string]any{"entity": map[string]any{"type": "string", "description": "The entity to inspect."}}
}
func (kgNeighboursTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct{ Entity string }
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	out, err := json.Marshal(kg.Neighbours(args.Entity))
	return string(out), err
}

type kgMostConnectedTool struct{}

func (kgMostConnectedTool) Name() string        { return "kg_most_connected" }
func (kgMostConnectedTool) Description() string { return "List the n most-connected entities in the graph." }
func (kgMostConnectedTool) Parameters() map[string]any {
	return map[string]any{"n": map[string]any{"type": "integer", "description": "How many entities to return."}}
}
func (kgMostConnectedTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	var args struct {
		N int `json:"n"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if args.N <= 0 {
		args.N = 5
	}
	out, err := json.Marshal(kg.MostConnected(args.N))
	return string(out), err
}

type kgIsolatedEntitiesTool struct{}

func (kgIsolatedEntitiesTool) Name() string { return "kg_isolated_entities" }
func (kgIsolatedEntitiesTool) Description() string {
	return "List entities with no relationships at all."
}
func (kgIsolatedEntitiesTool) Parameters() map[string]any { return map[string]any{} }
func (kgIsolatedEntitiesTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	out, err := json.Marshal(kg.IsolatedEntities())
	return string(out), err
}

type kgCheckConnectivityTool struct{}

func (kgCheckConnectivityTool) Name() string { return "kg_check_connectivity" }
func (kgCheckConnectivityTool) Description() string {
	return "Check whether the knowledge graph is a single connected component."
}
func (kgCheckConnectivityTool) Parameters() map[string]any { return map[string]any{} }
func (kgCheckConnectivityTool) Call(ctx context.Context, agent AgentContext, argsJSON string) (string, error) {
	kg := agent.KnowledgeGraph()
	if kg == nil {
		return noKGErr()
	}
	if kg.IsConnected() {
		return "connected", nil
	}
	return "disconnected", nil
}
