// Package design models the design-time agent graph: the user-authored,
// persisted graph of nodes and typed edges that the builder compiles into
// an execution graph. Nothing in this package executes anything — it is
// pure data plus the validation rules from the invariants list.
package design

import "github.com/beezlebug/agentgraph/engerr"

// NodeKind enumerates the fixed set of node kinds a design graph may
// contain. Each kind fixes a port set and a config schema.
type NodeKind string

const (
	KindAgent           NodeKind = "agent"
	KindKnowledgeGraph  NodeKind = "knowledge_graph"
	KindMemoryStream    NodeKind = "memory_stream"
	KindToolbox         NodeKind = "toolbox"
	KindTextInput       NodeKind = "text_input"
	KindVoiceInput      NodeKind = "voice_input"
	KindTextOutput      NodeKind = "text_output"
	KindScheduledEvent  NodeKind = "scheduled_event"
	KindMessageBuffer   NodeKind = "message_buffer"
)

// EdgeKind enumerates the legal edge semantics.
type EdgeKind string

const (
	EdgeMessage  EdgeKind = "message"
	EdgeResource EdgeKind = "resource"
	EdgeDelegate EdgeKind = "delegate"
)

// Port name constants. The full set per node kind is documented on each
// node's config type below; Graph.Validate enforces membership.
const (
	PortMessageIn  = "message_in"
	PortMessageOut = "message_out"
	PortAnswer     = "answer"
	PortAsk        = "ask"
	PortKnowledge  = "knowledge"
	PortMemory     = "memory"
	PortTools      = "tools"
	PortConnection = "connection"
	PortTrigger    = "trigger"
)

// Position is the node's canvas location. The engine never interprets it;
// it is round-tripped for the UI.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex of the design graph. Config is kind-specific and
// left as a loosely-typed map — the builder interprets it per NodeKind,
// mirroring the original implementation's permissive, un-rejected config
// dict (schema is advisory, never enforced at this layer).
type Node struct {
	ID       string         `json:"id"`
	Kind     NodeKind       `json:"kind"`
	Position Position       `json:"position"`
	Config   map[string]any `json:"config"`
}

// ConfigString reads a string config field with a default.
func (n *Node) ConfigString(key, def string) string {
	if n.Config == nil {
		return def
	}
	if v, ok := n.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigInt reads an int config field with a default. JSON numbers decode
// as float64, so both representations are accepted.
func (n *Node) ConfigInt(key string, def int) int {
	if n.Config == nil {
		return def
	}
	switch v := n.Config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// ConfigFloat reads a float config field with a default.
func (n *Node) ConfigFloat(key string, def float64) float64 {
	if n.Config == nil {
		return def
	}
	switch v := n.Config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// ConfigBool reads a bool config field with a default.
func (n *Node) ConfigBool(key string, def bool) bool {
	if n.Config == nil {
		return def
	}
	if v, ok := n.Config[key].(bool); ok {
		return v
	}
	return def
}

// ConfigStringSlice reads a []string config field ([]any of strings in the
// decoded JSON case, or []string directly).
func (n *Node) ConfigStringSlice(key string) []string {
	if n.Config == nil {
		return nil
	}
	switch v := n.Config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Edge is a single directed connection between two node ports.
type Edge struct {
	ID         string   `json:"id"`
	SourceNode string   `json:"source_node"`
	SourcePort string   `json:"source_port"`
	TargetNode string   `json:"target_node"`
	TargetPort string   `json:"target_port"`
	Kind       EdgeKind `json:"kind"`
}

// Message is a single entry of a message list, the unit passed along a
// message edge traversal.
type Message struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Graph is the full design-time agent graph for one project: nodes, edges,
// in insertion order. Edge order matters — routing preserves it.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	nodeIndex map[string]*Node
}

// NewGraph builds a Graph from nodes/edges and indexes nodes by id.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{Nodes: nodes, Edges: edges}
	g.reindex()
	return g
}

func (g *Graph) reindex() {
	g.nodeIndex = make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		g.nodeIndex[g.Nodes[i].ID] = &g.Nodes[i]
	}
}

// Node looks up a node by id, or nil if absent.
func (g *Graph) Node(id string) *Node {
	if g.nodeIndex == nil {
		g.reindex()
	}
	return g.nodeIndex[id]
}

// EdgesForNode returns every edge touching the given node, either as
// source or target, in declaration order.
func (g *Graph) EdgesForNode(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceNode == id || e.TargetNode == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesFrom returns the edges of the given kind originating at id's given
// source port, in declaration order.
func (g *Graph) EdgesFrom(id, port string, kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceNode == id && e.SourcePort == port && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the invariants that must hold before a graph can be
// deployed (spec invariants 1-3): every edge references nodes present in
// the graph, ports are members of the node kind's port set, and an agent
// has at most one bound resource per kind.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return engerr.NewValidation("design graph has no nodes")
	}
	if g.nodeIndex == nil {
		g.reindex()
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return engerr.NewValidation("node has empty id")
		}
		if seen[n.ID] {
			return engerr.NewValidation("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if !validKind(n.Kind) {
			return engerr.NewValidation("node %q has unknown kind %q", n.ID, n.Kind)
		}
	}

	resourceCount := map[string]map[NodeKind]int{}
	for _, e := range g.Edges {
		src := g.Node(e.SourceNode)
		dst := g.Node(e.TargetNode)
		if src == nil {
			return engerr.NewValidation("edge %q references unknown source node %q", e.ID, e.SourceNode)
		}
		if dst == nil {
			return engerr.NewValidation("edge %q references unknown target node %q", e.ID, e.TargetNode)
		}
		if !validPort(src.Kind, e.SourcePort) {
			return engerr.NewValidation("edge %q: invalid source port %q for node kind %q", e.ID, e.SourcePort, src.Kind)
		}
		if !validPort(dst.Kind, e.TargetPort) {
			return engerr.NewValidation("edge %q: invalid target port %q for node kind %q", e.ID, e.TargetPort, dst.Kind)
		}

		if e.Kind == EdgeResource {
			agentID, resourceNode := resourceEndpoint(src, dst, e)
			if resourceNode != nil {
				if resourceCount[agentID] == nil {
					resourceCount[agentID] = map[NodeKind]int{}
				}
				if resourceNode.Kind != KindToolbox {
					resourceCount[agentID][resourceNode.Kind]++
				}
			}
		}
	}

	for agentID, counts := range resourceCount {
		for kind, n := range counts {
			if n > 1 {
				return engerr.NewValidation("agent %q has %d %s resource bindings, at most 1 allowed", agentID, n, kind)
			}
		}
	}

	return nil
}

// resourceEndpoint identifies which side of a resource edge is the agent
// and which is the bound resource node.
func resourceEndpoint(src, dst *Node, e Edge) (agentID string, resource *Node) {
	if src.Kind == KindAgent {
		return src.ID, dst
	}
	if dst.Kind == KindAgent {
		return dst.ID, src
	}
	return "", nil
}

func validKind(k NodeKind) bool {
	switch k {
	case KindAgent, KindKnowledgeGraph, KindMemoryStream, KindToolbox,
		KindTextInput, KindVoiceInput, KindTextOutput, KindScheduledEvent, KindMessageBuffer:
		return true
	}
	return false
}

// portSets enumerates the legal ports per node kind, per spec §3.
var portSets = map[NodeKind]map[string]bool{
	KindAgent: {
		PortMessageIn: true, PortAnswer: true,
		PortMessageOut: true, PortAsk: true,
		PortKnowledge: true, PortMemory: true, PortTools: true,
	},
	KindKnowledgeGraph: {PortConnection: true},
	KindMemoryStream:   {PortConnection: true},
	KindToolbox:        {PortConnection: true},
	KindTextInput:      {PortMessageOut: true},
	KindVoiceInput:     {PortMessageOut: true},
	KindScheduledEvent: {PortMessageOut: true},
	KindTextOutput:     {PortMessageIn: true},
	KindMessageBuffer: {
		PortMessageIn: true, PortTrigger: true, PortMessageOut: true,
	},
}

func validPort(kind NodeKind, port string) bool {
	ports, ok := portSets[kind]
	if !ok {
		return false
	}
	return ports[port]
}
