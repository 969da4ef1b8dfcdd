// Package cli renders runtime and knowledge-graph state for the
// diagnostic command-line tool, styled with charmbracelet/lipgloss the
// way intelligencedev-manifold's TUI styles its panes (internal/tui/model.go)
// — here applied to plain one-shot terminal output rather than a full
// bubbletea program, since that is all this engine's CLI needs.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/beezlebug/agentgraph/knowledge"
	"github.com/beezlebug/agentgraph/runtime"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// RenderRunningAgents formats a Runtime's RunningAgents snapshot as a
// small table for terminal display.
func RenderRunningAgents(agents []runtime.RunningAgent) string {
	if len(agents) == 0 {
		return warnStyle.Render("no agents deployed")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Running agents (%d)", len(agents))))
	b.WriteString("\n")
	for _, a := range agents {
		b.WriteString(fmt.Sprintf("  %s %s\n", nameStyle.Render(a.Name), dimStyle.Render("["+a.ID+"] "+a.State)))
	}
	return b.String()
}

// RenderKnowledgeGraph formats a knowledge.Graph's entities and
// relationships for terminal display.
func RenderKnowledgeGraph(name string, kg *knowledge.Graph) string {
	if kg == nil {
		return warnStyle.Render(name + ": no knowledge graph bound")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d entities)", name, kg.Len())))
	b.WriteString("\n")

	for _, rel := range kg.GetRelationships("") {
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			nameStyle.Render(rel.From),
			dimStyle.Render("--"+rel.Type+"-->"),
			nameStyle.Render(rel.To),
		))
	}
	isolated := kg.IsolatedEntities()
	if len(isolated) > 0 {
		b.WriteString(dimStyle.Render("  isolated: " + strings.Join(isolated, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}
