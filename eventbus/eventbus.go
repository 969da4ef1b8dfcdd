// Package eventbus provides the publish-subscribe introspection bus agents
// emit progress on: message receipt, LLM calls, tool selection and
// completion, and errors. It mirrors the teacher's NodeListener pattern
// (graph/listeners.go) but the event taxonomy itself is domain-specific,
// grounded on the original implementation's events/event.py.
package eventbus

import (
	"time"

	"github.com/beezlebug/agentgraph/internal/logx"
)

// EventType enumerates every event an agent or the runtime may emit.
type EventType string

const (
	AgentStarted      EventType = "agent.started"
	AgentStopped      EventType = "agent.stopped"
	MessageReceived   EventType = "message.received"
	MessageSent       EventType = "message.sent"
	LLMCallStarted    EventType = "llm.call.started"
	LLMCallCompleted  EventType = "llm.call.completed"
	ToolSelected      EventType = "tool.selected"
	ToolCompleted     EventType = "tool.execution.completed"
	ErrorOccurred     EventType = "error.occurred"
)

// Event is a single introspection event. Data carries event-specific
// fields (duration_ms, tool name, truncated previews, ...) as a loosely
// typed map, mirroring the original's free-form data dict.
type Event struct {
	Type      EventType
	AgentName string
	Timestamp time.Time
	Data      map[string]any
}

// Listener receives every event a Bus emits. Implementations must not
// block significantly — Emit calls listeners synchronously in order.
type Listener func(Event)

// Bus is a publish-subscribe event bus: subscribers can register for a
// specific EventType or for every event. A listener's panic/error is
// caught and logged so one broken subscriber cannot take down emission to
// the rest, matching the original's per-callback try/except.
type Bus struct {
	subscribers    map[EventType][]Listener
	allSubscribers []Listener
	log            logx.Logger
}

// New returns an empty bus. A nil logger falls back to logx.Default().
func New(log logx.Logger) *Bus {
	if log == nil {
		log = logx.Default()
	}
	return &Bus{
		subscribers: make(map[EventType][]Listener),
		log:         log,
	}
}

// Subscribe registers callback for a single event type.
func (b *Bus) Subscribe(t EventType, callback Listener) {
	b.subscribers[t] = append(b.subscribers[t], callback)
}

// SubscribeAll registers callback for every event type emitted.
func (b *Bus) SubscribeAll(callback Listener) {
	b.allSubscribers = append(b.allSubscribers, callback)
}

// Emit delivers ev to every matching subscriber, then to every
// subscribe-all listener. A zero Timestamp is filled in with now.
func (b *Bus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.dispatch(b.subscribers[ev.Type], ev)
	b.dispatch(b.allSubscribers, ev)
}

func (b *Bus) dispatch(listeners []Listener, ev Event) {
	for _, l := range listeners {
		b.safeCall(l, ev)
	}
}

func (b *Bus) safeCall(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked: %v", r)
		}
	}()
	l(ev)
}
