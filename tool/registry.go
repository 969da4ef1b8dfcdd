package tool

import (
	"sort"

	"github.com/beezlebug/agentgraph/engerr"
)

// Factory constructs a fresh Tool instance. Built-in tools are stateless
// (one shared instance suffices); Factory exists so toolbox-specific tools
// (e.g. web_fetch with a configured timeout) can still be registered
// uniformly, mirroring toolbox_factory.py's class registry.
type Factory func() Tool

var registry = map[string]Factory{}

// Register adds a tool constructor under name, called from each built-in
// tool file's init so the registry is populated by import side effect —
// the Go analogue of toolbox_factory.py's module-level registry dict.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names returns every registered tool name, sorted for deterministic
// listings (diagnostic CLI, error messages).
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build materializes a Box containing one fresh instance of each named
// tool, in the order requested — a toolbox node's config.tools list.
func Build(names []string) (*Box, error) {
	box := NewBox()
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, engerr.NewValidation("unknown tool %q, available: %v", name, Names())
		}
		box.Add(factory())
	}
	return box, nil
}
