// Package runtime manages the live state of one deployed agent graph:
// building the execution graph via execbuild, routing messages along the
// precomputed routing table, and driving scheduled events through the
// scheduler. Grounded step-for-step on the original implementation's
// AgentGraphRuntime (agent_graph/runtime.py).
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/execbuild"
	"github.com/beezlebug/agentgraph/execgraph"
	"github.com/beezlebug/agentgraph/internal/logx"
	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/scheduler"
)

// DeliverFunc is called once per message an exit executable produces,
// the runtime's only outward-facing side effect besides logging.
type DeliverFunc func(projectID, senderName, content string)

// RunningAgent is one entry of RunningAgents' snapshot.
type RunningAgent struct {
	ID    string
	Name  string
	State string
}

// Runtime holds the currently deployed execution graph, if any. One
// Runtime manages one project at a time, matching the original's single
// current-deployment design; deploying a second project first undeploys
// the first.
type Runtime struct {
	builder   *execbuild.Builder
	scheduler *scheduler.Scheduler
	log       logx.Logger
	deliver   DeliverFunc

	mu         sync.RWMutex
	deployed   bool
	projectID  string
	execGraph  *execgraph.Graph
}

// New returns a Runtime. deliver may be nil to discard exit-node output
// instead of forwarding it anywhere.
func New(builder *execbuild.Builder, sched *scheduler.Scheduler, log logx.Logger, deliver DeliverFunc) *Runtime {
	if log == nil {
		log = logx.Default()
	}
	return &Runtime{builder: builder, scheduler: sched, log: log, deliver: deliver}
}

// Deploy builds an execution graph for g and starts its scheduled
// events, undeploying any previously running project first.
func (r *Runtime) Deploy(ctx context.Context, g *design.Graph, projectID string) error {
	r.mu.Lock()
	wasDeployed := r.deployed
	r.mu.Unlock()
	if wasDeployed {
		r.log.Warn("already deployed, undeploying first")
		r.Undeploy()
	}

	r.log.Info("deploying agent graph for project %s", projectID)
	execGraph, err := r.builder.Build(ctx, g, projectID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.projectID = projectID
	r.execGraph = execGraph
	r.deployed = true
	r.mu.Unlock()

	r.startScheduledEvents(execGraph)
	r.log.Info("agent graph deployed for project %s", projectID)
	return nil
}

// Undeploy stops scheduled events and discards the execution graph. It
// is a no-op if nothing is deployed.
func (r *Runtime) Undeploy() {
	r.mu.Lock()
	if !r.deployed || r.execGraph == nil {
		r.mu.Unlock()
		return
	}
	execGraph := r.execGraph
	r.mu.Unlock()

	r.log.Info("undeploying agent graph")
	r.stopScheduledEvents(execGraph)

	r.mu.Lock()
	r.execGraph = nil
	r.projectID = ""
	r.deployed = false
	r.mu.Unlock()

	r.log.Info("agent graph undeployed")
}

func scheduledTaskID(nodeID string) string { return nodeID + "_scheduled" }

func (r *Runtime) startScheduledEvents(execGraph *execgraph.Graph) {
	for _, cfg := range execGraph.ScheduledEvents {
		if _, hasRoute := execGraph.Routing[cfg.NodeID]; !hasRoute {
			r.log.Warn("scheduled event %q (%s) has no connected targets", cfg.Name, cfg.NodeID)
			continue
		}
		cfg := cfg
		callback := func(ctx context.Context) error {
			messages := []design.Message{{Sender: cfg.Name, Content: cfg.MessageContent}}
			r.walkGraph(ctx, execGraph, cfg.NodeID, messages)
			return nil
		}

		taskID := scheduledTaskID(cfg.NodeID)
		if cfg.Trigger == execgraph.TriggerOnce && !cfg.RunAt.IsZero() {
			r.scheduler.ScheduleOnce(taskID, cfg.NodeID, cfg.RunAt, callback)
			r.log.Info("scheduled one-time event %q for %s", cfg.Name, cfg.RunAt)
		} else {
			r.scheduler.ScheduleInterval(taskID, cfg.NodeID, cfg.IntervalSeconds, false, callback)
			r.log.Info("scheduled interval event %q every %.0fs", cfg.Name, cfg.IntervalSeconds)
		}
	}
}

func (r *Runtime) stopScheduledEvents(execGraph *execgraph.Graph) {
	for _, cfg := range execGraph.ScheduledEvents {
		r.scheduler.CancelTask(scheduledTaskID(cfg.NodeID))
		r.log.Info("stopped scheduled event %q", cfg.Name)
	}
}

// walkGraph recursively routes messages from source through the routing
// table: executables are run and their output routed onward (and
// delivered to the user if that executable is an exit node), message buffers
// accumulate or flush depending on which port they were reached through.
func (r *Runtime) walkGraph(ctx context.Context, execGraph *execgraph.Graph, sourceID string, messages []design.Message) {
	if len(messages) == 0 {
		return
	}
	for _, target := range execGraph.Routing[sourceID] {
		switch target.Kind {
		case execgraph.TargetExecutable:
			r.executeAndRoute(ctx, execGraph, target.ID, messages)
		case execgraph.TargetBufferIn:
			if buf := execGraph.Buffers[target.ID]; buf != nil {
				buf.Buffer(messages)
			}
		case execgraph.TargetBufferTrigger:
			if buf := execGraph.Buffers[target.ID]; buf != nil {
				if flushed := buf.Flush(); len(flushed) > 0 {
					r.log.Info("message buffer %s triggered, flushing %d message(s)", target.ID, len(flushed))
					r.walkGraph(ctx, execGraph, target.ID, flushed)
				}
			}
		case execgraph.TargetExit:
			// unreachable: exit targets are only reached via an
			// executable's own exit_ids check in executeAndRoute.
		}
	}
}

func (r *Runtime) executeAndRoute(ctx context.Context, execGraph *execgraph.Graph, nodeID string, messages []design.Message) *executionResult {
	node, ok := execGraph.Executables[nodeID]
	if !ok {
		return nil
	}
	outputs, err := node.Execute(ctx, messages)
	if err != nil {
		r.log.Error("executable %s failed: %v", nodeID, err)
		return nil
	}
	if len(outputs) == 0 {
		return nil
	}
	if execGraph.ExitIDs[nodeID] {
		r.deliverToUser(execGraph.ProjectID, outputs)
	}
	r.walkGraph(ctx, execGraph, nodeID, outputs)
	return &executionResult{AgentID: nodeID, AgentName: node.Name(), Response: outputs[0].Content}
}

func (r *Runtime) deliverToUser(projectID string, messages []design.Message) {
	if r.deliver == nil {
		return
	}
	for _, m := range messages {
		r.deliver(projectID, m.Sender, m.Content)
	}
}

// executionResult mirrors the original's per-response dict returned from
// send_user_message/send_voice_message.
type executionResult struct {
	AgentID   string
	AgentName string
	Response  string
}

// SendTextMessage routes a user-authored text message through every
// text_input_event entry point. With no text_input node in the deployed
// graph, every executable is treated as an entry point (fallback
// behavior the original uses so a graph with no explicit input node
// still accepts messages).
func (r *Runtime) SendTextMessage(ctx context.Context, content, sender string) ([]MessageResult, error) {
	execGraph, err := r.current()
	if err != nil {
		return nil, err
	}
	return r.sendVia(ctx, execGraph, execGraph.TextInputEventIDs, execGraph.TextEntryIDs, content, sender), nil
}

// SendVoiceMessage routes a voice-transcribed message through every
// voice_input_event entry point, falling back to SendTextMessage's
// behavior entirely when the graph has no voice_input node.
func (r *Runtime) SendVoiceMessage(ctx context.Context, content, sender string) ([]MessageResult, error) {
	execGraph, err := r.current()
	if err != nil {
		return nil, err
	}
	if len(execGraph.VoiceInputEventIDs) == 0 {
		return r.SendTextMessage(ctx, content, sender)
	}
	return r.sendVia(ctx, execGraph, execGraph.VoiceInputEventIDs, execGraph.VoiceEntryIDs, content, sender), nil
}

// MessageResult is one entry point's response to a routed message.
type MessageResult struct {
	AgentID   string
	AgentName string
	Response  string
}

func (r *Runtime) sendVia(ctx context.Context, execGraph *execgraph.Graph, eventIDs, entryIDs []string, content, sender string) []MessageResult {
	messages := []design.Message{{Sender: sender, Content: content}}
	var results []MessageResult

	if len(eventIDs) > 0 {
		for _, eventID := range eventIDs {
			for _, target := range execGraph.Routing[eventID] {
				switch target.Kind {
				case execgraph.TargetBufferIn:
					if buf := execGraph.Buffers[target.ID]; buf != nil {
						buf.Buffer(messages)
					}
				case execgraph.TargetBufferTrigger:
					if buf := execGraph.Buffers[target.ID]; buf != nil {
						if flushed := buf.Flush(); len(flushed) > 0 {
							r.walkGraph(ctx, execGraph, target.ID, flushed)
						}
					}
				}
			}
		}
		for _, agentID := range entryIDs {
			if res := r.executeAndRoute(ctx, execGraph, agentID, messages); res != nil {
				results = append(results, MessageResult{AgentID: res.AgentID, AgentName: res.AgentName, Response: res.Response})
			}
		}
		return results
	}

	for agentID := range execGraph.Executables {
		if res := r.executeAndRoute(ctx, execGraph, agentID, messages); res != nil {
			results = append(results, MessageResult{AgentID: res.AgentID, AgentName: res.AgentName, Response: res.Response})
		}
	}
	return results
}

// RunningAgents returns one entry per executable in the deployed graph,
// or nil when nothing is deployed.
func (r *Runtime) RunningAgents() []RunningAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.deployed || r.execGraph == nil {
		return nil
	}
	out := make([]RunningAgent, 0, len(r.execGraph.Executables))
	for id, ex := range r.execGraph.Executables {
		out = append(out, RunningAgent{ID: id, Name: ex.Name(), State: "running"})
	}
	return out
}

// hasKnowledgeGraph is satisfied by every agent.Agent; the seam lets
// RunningKnowledgeGraphs avoid importing the agent package directly.
type hasKnowledgeGraph interface {
	KnowledgeGraph() *knowledge.Graph
}

// RunningKnowledgeGraphs returns the knowledge graph bound to each
// deployed agent that has one, keyed by the agent's display name, or nil
// when nothing is deployed. Agents whose KnowledgeGraph is nil are
// omitted; execbuild gives every agent a graph (an empty, unpersisted one
// when no knowledge_graph node is wired to it), so built agents all appear.
func (r *Runtime) RunningKnowledgeGraphs() map[string]*knowledge.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.deployed || r.execGraph == nil {
		return nil
	}
	out := make(map[string]*knowledge.Graph)
	for _, ex := range r.execGraph.Executables {
		if hk, ok := ex.(hasKnowledgeGraph); ok {
			if kg := hk.KnowledgeGraph(); kg != nil {
				out[ex.Name()] = kg
			}
		}
	}
	return out
}

// IsDeployed reports whether a project is currently deployed.
func (r *Runtime) IsDeployed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deployed
}

func (r *Runtime) current() (*execgraph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.deployed || r.execGraph == nil {
		return nil, fmt.Errorf("runtime: no agent graph is deployed")
	}
	return r.execGraph, nil
}
