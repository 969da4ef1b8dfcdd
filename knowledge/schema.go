package knowledge

import "strings"

// entityKindSchemas is the advisory, non-enforced list of entity kinds an
// agent's system prompt advertises to the model so it knows what
// vocabulary to use when calling knowledge-graph tools. Nothing in Graph
// rejects an unlisted kind — this only shapes prompt text.
var entityKindSchemas = []string{
	"person",
	"organization",
	"city",
	"country",
	"region",
	"product",
	"programming_language",
	"event",
	"landmark",
	"concept",
}

// EntityKinds returns the advisory entity-kind vocabulary.
func EntityKinds() []string {
	out := make([]string, len(entityKindSchemas))
	copy(out, entityKindSchemas)
	return out
}

// SchemaForPrompt renders the entity-kind vocabulary as a single line for
// inclusion in an agent's rendered system prompt.
func SchemaForPrompt() string {
	return "Known entity kinds: " + strings.Join(entityKindSchemas, ", ")
}
