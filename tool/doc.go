// Package tool implements the dynamic tool registry an agent's toolbox
// draws from: built-in system tools (wait, reason, self_reflect,
// self_critique, get_date_time), knowledge-graph CRUD/query tools, a
// memory-stream recall tool, a web_fetch tool for reading pages, and
// synthesized delegate tools that let one agent ask another a question
// inline in its own tool-call loop.
//
// Every tool implements the Tool interface: a name, a description and
// JSON-schema parameters for LLM-facing function-calling, and a Call
// method that parses its arguments and runs against an AgentContext. New
// built-in tools register themselves by name via Register in an init
// function; a toolbox node's config names the subset it wants, resolved
// through Build.
package tool
