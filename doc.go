// Package agentgraph implements an execution engine for visual agent
// graphs: a project designs a graph of typed nodes (LLM agents,
// knowledge graphs, memory streams, schedulers, message buffers, tool
// registries, text/voice input and output) wired by typed edges, and
// this engine validates, compiles, and runs it.
//
// # Package Structure
//
// design/
// The node/edge/port type system and graph validation: fixed port
// sets per node kind, edge-kind rules, and Graph.Validate.
//
// execgraph/
// The compiled runtime representation of a deployed graph: executables,
// routing table, message-buffer state, entry/exit points.
//
// execbuild/
// Compiles a design.Graph into an execgraph.Graph: loads knowledge
// graphs and memory streams from storage, builds each agent's tool
// box (including delegate tools for ask-port edges between agents),
// and derives the routing table.
//
// runtime/
// Deploys a compiled graph and routes messages through it: walks the
// routing table from an entry point, executing agents and buffering
// or delivering their output, and exposes SendTextMessage /
// SendVoiceMessage for driving a deployed graph from the outside.
//
// agent/
// A single LLM agent node: turns a new message into zero or more
// replies, calling tools in a loop, against a pluggable
// llmadapter.Adapter and an optional memorystream.Stream for
// persistent, embedding-searchable recall across turns.
//
// knowledge/
// An in-memory entity/relationship graph bound to a project-scoped
// storage.Backend for durable persistence.
//
// memorystream/
// An importance-scored, embedding-searchable log of observations,
// modeled on generative-agent memory streams.
//
// tool/
// The tool registry an agent's tool box draws from: knowledge-graph
// read/write tools, memory-stream recall, and delegate tools that
// hand a turn to another agent node.
//
// storage/
// The persistence backend interface and its SQLite and PostgreSQL
// implementations: projects, knowledge-graph snapshots, and
// memory-stream observations.
//
// eventbus/
// A small typed pub/sub bus the engine uses to report turn-level
// events (agent replies, tool calls, errors) to observers.
//
// scheduler/
// Polls for due scheduled-event nodes and fires them into a deployed
// graph's entry points.
//
// config/
// Engine-wide settings loaded from .env files and the process
// environment.
//
// cmd/agentgraphctl/
// A diagnostic CLI that deploys a JSON-encoded design graph from a
// file and prints the resulting running-agent list.
package agentgraph
