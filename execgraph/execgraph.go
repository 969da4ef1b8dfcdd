// Package execgraph defines the runtime-only projection of a design graph:
// the compiled form the builder produces once per deploy and the runtime
// walks on every message. Nothing here is persisted — it is rebuilt from
// the design graph and the storage-backed resources on every deploy.
package execgraph

import (
	"context"
	"sync"
	"time"

	"github.com/beezlebug/agentgraph/design"
)

// Executable is anything the routing table can deliver messages to: today
// only agents, but the seam exists so other node kinds could execute.
type Executable interface {
	ID() string
	Name() string
	Execute(ctx context.Context, messages []design.Message) ([]design.Message, error)
}

// TargetKind identifies what a routing table entry points at.
type TargetKind string

const (
	TargetExecutable     TargetKind = "executable"
	TargetBufferIn       TargetKind = "message_buffer_in"
	TargetBufferTrigger  TargetKind = "message_buffer_trigger"
	TargetExit           TargetKind = "exit"
)

// RouteTarget is one destination a source node's message_out edges fan out
// to, preserving the design edge's declaration order.
type RouteTarget struct {
	Kind TargetKind
	ID   string
}

// MessageBufferState accumulates pending messages for a message_buffer node
// until its trigger port fires, at which point Flush drains and returns
// them. Safe for concurrent use since scheduled events and user messages
// can both feed the same buffer.
type MessageBufferState struct {
	mu      sync.Mutex
	pending []design.Message
}

// NewMessageBufferState returns an empty buffer.
func NewMessageBufferState() *MessageBufferState {
	return &MessageBufferState{}
}

// Buffer appends messages to the pending list.
func (b *MessageBufferState) Buffer(messages []design.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, messages...)
}

// Flush drains and returns the pending list, or nil if empty.
func (b *MessageBufferState) Flush() []design.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// TriggerType distinguishes a scheduled event that fires exactly once from
// one that repeats on an interval.
type TriggerType string

const (
	TriggerOnce     TriggerType = "once"
	TriggerInterval TriggerType = "interval"
)

// ScheduledEventConfig is the compiled form of a scheduled_event node: the
// runtime registers one scheduler task per instance at deploy time.
type ScheduledEventConfig struct {
	NodeID          string
	Name            string
	Trigger         TriggerType
	IntervalSeconds float64
	RunAt           time.Time
	MessageContent  string
}

// Graph is the full compiled execution graph for one deployed project. It
// is immutable after Build returns; the runtime only ever reads it until
// Undeploy discards it for a fresh Build.
type Graph struct {
	ProjectID string

	Executables map[string]Executable
	Buffers     map[string]*MessageBufferState

	// Routing maps a source node id to its ordered fan-out targets,
	// covering only message_out edges (design §4.6).
	Routing map[string][]RouteTarget

	// Entry points: node ids of text_input/voice_input nodes, and the
	// executable ids directly reachable from them via message edges.
	TextInputEventIDs  []string
	VoiceInputEventIDs []string
	TextEntryIDs       []string
	VoiceEntryIDs      []string

	ScheduledEvents []ScheduledEventConfig

	// ExitIDs holds executable ids whose message_out edges feed a
	// text_output node directly — their output is delivered to the user
	// as well as routed onward.
	ExitIDs map[string]bool
}

// NewGraph returns an empty, ready-to-populate Graph for projectID.
func NewGraph(projectID string) *Graph {
	return &Graph{
		ProjectID:   projectID,
		Executables: make(map[string]Executable),
		Buffers:     make(map[string]*MessageBufferState),
		Routing:     make(map[string][]RouteTarget),
		ExitIDs:     make(map[string]bool),
	}
}
