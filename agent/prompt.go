package agent

import (
	"bytes"
	"text/template"
	"time"
)

// PromptData is everything a system-prompt template may reference:
// the agent's own name, the current timestamp, and a summary of the
// advisory knowledge-graph entity-kind schema.
type PromptData struct {
	AgentName     string
	Now           time.Time
	EntitySchemas string
}

// PromptRenderer is the narrow, pluggable seam for system-prompt
// templating. Full template authoring/management is an external
// collaborator's concern; the engine only needs something that turns one
// configured template source plus PromptData into a string.
type PromptRenderer interface {
	Render(data PromptData) (string, error)
}

// TemplateRenderer is the default PromptRenderer, a thin wrapper over the
// standard library's text/template — templating itself sits outside this
// engine's domain stack, so there is no third-party templating dependency
// to reach for here.
type TemplateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer compiles source once at agent-construction time.
func NewTemplateRenderer(name, source string) (*TemplateRenderer, error) {
	tmpl, err := template.New(name).Parse(source)
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

func (r *TemplateRenderer) Render(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultSystemPromptTemplate is used when a node's config carries no
// explicit system_prompt, matching the teacher-shown convention of
// shipping a sane built-in rather than failing deployment on an absent
// template.
const DefaultSystemPromptTemplate = `You are {{.AgentName}}, an autonomous agent.
The current date and time is {{.Now.Format "Monday, 02 January 2006, 15:04"}}.
{{.EntitySchemas}}`
