// Package execbuild compiles a design-time design.Graph into a runtime
// execgraph.Graph: it loads knowledge-graph and memory-stream resources
// from storage, builds toolboxes and delegate tools, constructs one
// agent.Agent per agent node, and computes the routing table and
// entry/exit points. Grounded step-for-step on the original
// ExecutionGraphBuilder (agent_graph/execution_graph_builder.py); the
// unique seam is the same one the original uses — delegate tools close
// over the same executables map the builder is still populating, so a
// forward reference to an agent built later in node order still resolves
// once the builder finishes.
package execbuild

import (
	"context"
	"time"

	"github.com/beezlebug/agentgraph/agent"
	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/engerr"
	"github.com/beezlebug/agentgraph/eventbus"
	"github.com/beezlebug/agentgraph/execgraph"
	"github.com/beezlebug/agentgraph/internal/logx"
	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/llmadapter"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/storage"
	"github.com/beezlebug/agentgraph/tool"
)

const (
	defaultModel           = "gpt-4"
	defaultAPIURL          = "http://127.0.0.1:1234/v1"
	defaultContextSize     = 25
	defaultTriggerInterval = 30.0
)

// Builder compiles design graphs into execution graphs for one storage
// backend and event bus, shared across every project it builds.
type Builder struct {
	storage  storage.Backend
	bus      *eventbus.Bus
	embedder memorystream.Embedder
	log      logx.Logger
}

// New returns a Builder. embedder is used for every memory_stream node's
// Stream; bus may be nil to disable introspection events.
func New(backend storage.Backend, bus *eventbus.Bus, embedder memorystream.Embedder) *Builder {
	return &Builder{storage: backend, bus: bus, embedder: embedder, log: logx.Default()}
}

// Build transforms design into a ready-to-run execgraph.Graph for
// projectID. It first runs design.Graph.Validate and returns that error
// if the design is invalid.
func (b *Builder) Build(ctx context.Context, g *design.Graph, projectID string) (*execgraph.Graph, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	b.log.Info("building execution graph for project %s", projectID)

	kgs, err := b.loadKnowledgeGraphs(ctx, g, projectID)
	if err != nil {
		return nil, err
	}
	streams, err := b.loadMemoryStreams(ctx, g, projectID)
	if err != nil {
		return nil, err
	}
	toolboxes := buildToolboxConfigs(g)

	out := execgraph.NewGraph(projectID)

	for _, node := range g.Nodes {
		if node.Kind != design.KindAgent {
			continue
		}
		ag, err := b.buildAgent(node, g, kgs, streams, toolboxes, out.Executables)
		if err != nil {
			return nil, err
		}
		out.Executables[node.ID] = ag
	}

	for _, node := range g.Nodes {
		if node.Kind == design.KindMessageBuffer {
			out.Buffers[node.ID] = execgraph.NewMessageBufferState()
		}
	}

	for _, node := range g.Nodes {
		switch node.Kind {
		case design.KindTextInput:
			out.TextInputEventIDs = append(out.TextInputEventIDs, node.ID)
		case design.KindVoiceInput:
			out.VoiceInputEventIDs = append(out.VoiceInputEventIDs, node.ID)
		}
	}
	out.TextEntryIDs = messageTargetsOf(g, design.KindTextInput)
	out.VoiceEntryIDs = messageTargetsOf(g, design.KindVoiceInput)
	out.ScheduledEvents = buildScheduledConfigs(g)

	out.Routing = b.buildRoutingTable(g, out.Executables, out.Buffers)

	for _, id := range messageSourcesOf(g, design.KindTextOutput) {
		out.ExitIDs[id] = true
	}

	b.log.Info(
		"built execution graph: %d executables, %d message buffers, %d text entries, %d voice entries, %d scheduled events, %d exits",
		len(out.Executables), len(out.Buffers), len(out.TextEntryIDs), len(out.VoiceEntryIDs),
		len(out.ScheduledEvents), len(out.ExitIDs),
	)
	return out, nil
}

func (b *Builder) loadKnowledgeGraphs(ctx context.Context, g *design.Graph, projectID string) (map[string]*knowledge.Graph, error) {
	kgs := make(map[string]*knowledge.Graph)
	for _, node := range g.Nodes {
		if node.Kind != design.KindKnowledgeGraph {
			continue
		}
		kgID, err := b.storage.KGEnsure(ctx, projectID, node.ID)
		if err != nil {
			return nil, err
		}
		snapshot, err := b.storage.KGLoadFull(ctx, kgID)
		if err != nil {
			return nil, err
		}
		kg := knowledge.New()
		kg.BindStorage(b.storage, kgID)
		if snapshot != nil {
			kg.LoadSnapshot(snapshot)
		}
		kgs[node.ID] = kg
		b.log.Info("loaded knowledge graph %s (db id %d)", node.ID, kgID)
	}
	return kgs, nil
}

func (b *Builder) loadMemoryStreams(ctx context.Context, g *design.Graph, projectID string) (map[string]*memorystream.Stream, error) {
	streams := make(map[string]*memorystream.Stream)
	for _, node := range g.Nodes {
		if node.Kind != design.KindMemoryStream {
			continue
		}
		msID, err := b.storage.MSEnsure(ctx, projectID, node.ID)
		if err != nil {
			return nil, err
		}
		ms := memorystream.New(b.embedder)
		if err := ms.BindStorage(ctx, b.storage, msID); err != nil {
			return nil, err
		}
		streams[node.ID] = ms
		b.log.Info("loaded memory stream %s (db id %d)", node.ID, msID)
	}
	return streams, nil
}

func buildToolboxConfigs(g *design.Graph) map[string][]string {
	toolboxes := make(map[string][]string)
	for _, node := range g.Nodes {
		if node.Kind != design.KindToolbox {
			continue
		}
		toolboxes[node.ID] = node.ConfigStringSlice("tools")
	}
	return toolboxes
}

// buildAgent assembles one Agent: resolving its bound resources via
// resource edges, building its toolbox (including any delegate tools
// synthesized from outgoing "ask" edges), and constructing its LLM
// adapter and prompt renderer from node config.
func (b *Builder) buildAgent(
	node design.Node,
	g *design.Graph,
	kgs map[string]*knowledge.Graph,
	streams map[string]*memorystream.Stream,
	toolboxes map[string][]string,
	executables map[string]execgraph.Executable,
) (*agent.Agent, error) {
	var kg *knowledge.Graph
	var ms *memorystream.Stream
	var toolNames []string

	for _, edge := range g.EdgesForNode(node.ID) {
		if edge.Kind != design.EdgeResource {
			continue
		}
		resourceID := edge.SourceNode
		if edge.SourceNode == node.ID {
			resourceID = edge.TargetNode
		}
		resourceNode := g.Node(resourceID)
		if resourceNode == nil {
			continue
		}
		switch resourceNode.Kind {
		case design.KindKnowledgeGraph:
			kg = kgs[resourceID]
		case design.KindMemoryStream:
			ms = streams[resourceID]
		case design.KindToolbox:
			toolNames = append(toolNames, toolboxes[resourceID]...)
		}
	}

	name := node.ConfigString("name", "Agent")
	model := node.ConfigString("model", defaultModel)
	apiURL := node.ConfigString("api_url", defaultAPIURL)
	apiKey := node.ConfigString("api_key", "")
	systemPromptSource := node.ConfigString("system_prompt", agent.DefaultSystemPromptTemplate)
	contextSize := node.ConfigInt("context_size", defaultContextSize)

	box, err := tool.Build(toolNames)
	if err != nil {
		return nil, engerr.NewDeployment("building toolbox for agent "+node.ID, err)
	}

	for _, edge := range g.EdgesFrom(node.ID, design.PortAsk, design.EdgeDelegate) {
		targetNode := g.Node(edge.TargetNode)
		if targetNode == nil || targetNode.Kind != design.KindAgent {
			continue
		}
		targetName := targetNode.ConfigString("name", "Agent")
		delegate := tool.NewDelegateTool(executables, edge.TargetNode, targetName, name)
		box.Add(delegate)
		b.log.Info("added delegate tool %q to agent %s", delegate.Name(), name)
	}

	renderer, err := agent.NewTemplateRenderer(node.ID, systemPromptSource)
	if err != nil {
		return nil, engerr.NewDeployment("parsing system prompt template for agent "+node.ID, err)
	}

	adapter := llmadapter.NewOpenAI(model, apiURL, apiKey)

	if kg == nil {
		kg = knowledge.New()
	}
	opts := []agent.Option{
		agent.WithEventBus(b.bus),
		agent.WithKnowledgeGraph(kg),
		agent.WithContextWindow(contextSize),
	}
	if ms != nil {
		opts = append(opts, agent.WithMemoryStream(ms))
	}

	ag := agent.New(node.ID, name, adapter, box, renderer, opts...)
	b.log.Info("built agent %s (%s)", name, node.ID)
	return ag, nil
}

func messageTargetsOf(g *design.Graph, kind design.NodeKind) []string {
	var targets []string
	for _, node := range g.Nodes {
		if node.Kind != kind {
			continue
		}
		for _, edge := range g.Edges {
			if edge.SourceNode == node.ID && edge.Kind == design.EdgeMessage {
				targets = append(targets, edge.TargetNode)
			}
		}
	}
	return targets
}

func messageSourcesOf(g *design.Graph, kind design.NodeKind) []string {
	seen := map[string]bool{}
	var sources []string
	for _, node := range g.Nodes {
		if node.Kind != kind {
			continue
		}
		for _, edge := range g.Edges {
			if edge.TargetNode == node.ID && edge.Kind == design.EdgeMessage && !seen[edge.SourceNode] {
				seen[edge.SourceNode] = true
				sources = append(sources, edge.SourceNode)
			}
		}
	}
	return sources
}

func buildScheduledConfigs(g *design.Graph) []execgraph.ScheduledEventConfig {
	var out []execgraph.ScheduledEventConfig
	for _, node := range g.Nodes {
		if node.Kind != design.KindScheduledEvent {
			continue
		}
		trigger := execgraph.TriggerInterval
		if node.ConfigString("trigger_type", "interval") == "once" {
			trigger = execgraph.TriggerOnce
		}
		var runAt time.Time
		if s := node.ConfigString("run_at", ""); s != "" {
			if parsed, err := time.Parse(time.RFC3339, s); err == nil {
				runAt = parsed
			}
		}
		out = append(out, execgraph.ScheduledEventConfig{
			NodeID:          node.ID,
			Name:            node.ConfigString("name", "Scheduled Event"),
			Trigger:         trigger,
			IntervalSeconds: node.ConfigFloat("interval_seconds", defaultTriggerInterval),
			RunAt:           runAt,
			MessageContent:  node.ConfigString("message_content", "Review your current state and pending tasks."),
		})
	}
	return out
}

// buildRoutingTable walks every message_out edge and classifies its
// target: an executable, one of a message buffer's two ports, or an exit
// to a text_output node. Edges to anything else are not routable and are
// skipped, matching the original's silent-skip behavior.
func (b *Builder) buildRoutingTable(
	g *design.Graph,
	executables map[string]execgraph.Executable,
	buffers map[string]*execgraph.MessageBufferState,
) map[string][]execgraph.RouteTarget {
	routing := make(map[string][]execgraph.RouteTarget)
	for _, edge := range g.Edges {
		if edge.Kind != design.EdgeMessage || edge.SourcePort != design.PortMessageOut {
			continue
		}
		targetNode := g.Node(edge.TargetNode)
		if targetNode == nil {
			continue
		}

		var kind execgraph.TargetKind
		switch {
		case executables[edge.TargetNode] != nil:
			kind = execgraph.TargetExecutable
		case buffers[edge.TargetNode] != nil:
			if edge.TargetPort == design.PortTrigger {
				kind = execgraph.TargetBufferTrigger
			} else {
				kind = execgraph.TargetBufferIn
			}
		case targetNode.Kind == design.KindTextOutput:
			kind = execgraph.TargetExit
		default:
			continue
		}

		routing[edge.SourceNode] = append(routing[edge.SourceNode], execgraph.RouteTarget{Kind: kind, ID: edge.TargetNode})
	}
	return routing
}
