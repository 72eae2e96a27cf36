package automation

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	// Description seeds a generated automation ID.
	Description string

	// Now stamps a generated automation ID. Zero uses time.Now.
	Now time.Time

	// UseChoose wraps the actions in a choose block keyed by trigger ID.
	UseChoose bool
}

// Normalized is a repaired automation.
type Normalized struct {
	YAML  string
	ID    string
	Alias string
}

// CleanResponse strips markdown code fences and surrounding whitespace from
// a model response.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```yaml"):
		text = text[len("```yaml"):]
	case strings.HasPrefix(text, "```yml"):
		text = text[len("```yml"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Normalize parses generated YAML and repairs its structure.
//
// The automation gets an ID when it has none. Singular trigger, condition
// and action keys are renamed to their plural form unless the plural is
// already present. Every trigger gets a cleaned ID, derived from its
// platform and entity when missing. With UseChoose set, and unless an
// action already uses choose, the actions are wrapped so each trigger ID
// runs them through its own choose option.
//
// A response holding a one-item list is unwrapped. Anything that is not an
// automation mapping returns ErrInvalidYAML.
func Normalize(text string, opts NormalizeOptions) (Normalized, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Normalized{}, fmt.Errorf("%w: empty document", ErrInvalidYAML)
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return Normalized{}, fmt.Errorf("%w: expected a mapping", ErrInvalidYAML)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	idNode := mappingGet(root, "id")
	id := scalarValue(idNode)
	if id == "" {
		id = GenerateAutomationID(opts.Description, now)
		if idNode != nil {
			*idNode = *scalarNode(id)
		} else {
			mappingSetFirst(root, "id", scalarNode(id))
		}
	}

	renameKey(root, "trigger", "triggers")
	renameKey(root, "condition", "conditions")
	renameKey(root, "action", "actions")

	triggerIDs := normalizeTriggers(root)

	if opts.UseChoose && len(triggerIDs) > 0 {
		wrapInChoose(root, triggerIDs)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return Normalized{}, fmt.Errorf("encoding automation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Normalized{}, fmt.Errorf("encoding automation: %w", err)
	}

	return Normalized{
		YAML:  buf.String(),
		ID:    id,
		Alias: scalarValue(mappingGet(root, "alias")),
	}, nil
}

// normalizeTriggers assigns cleaned IDs to every trigger and returns them in
// order.
func normalizeTriggers(root *yaml.Node) []string {
	triggers := mappingGet(root, "triggers")
	if triggers == nil {
		return nil
	}
	if triggers.Kind == yaml.MappingNode {
		wrapped := sequenceNode(cloneNode(triggers))
		*triggers = *wrapped
	}
	if triggers.Kind != yaml.SequenceNode {
		return nil
	}

	var ids []string
	for i, t := range triggers.Content {
		if t.Kind != yaml.MappingNode {
			continue
		}
		id := scalarValue(mappingGet(t, "id"))
		if id == "" {
			id = defaultTriggerID(t, i)
		}
		id = cleanTriggerID(id)
		if existing := mappingGet(t, "id"); existing != nil {
			*existing = *scalarNode(id)
		} else {
			mappingSetFirst(t, "id", scalarNode(id))
		}
		ids = append(ids, id)
	}
	return ids
}

// defaultTriggerID is platform_entity, or platform_N for triggers without an
// entity.
func defaultTriggerID(t *yaml.Node, index int) string {
	platform := scalarValue(mappingGet(t, "platform"))
	if platform == "" {
		platform = scalarValue(mappingGet(t, "trigger"))
	}
	if platform == "" {
		platform = scalarValue(mappingGet(t, "type"))
	}
	if platform == "" {
		platform = "trigger"
	}

	entity := mappingGet(t, "entity_id")
	if entity != nil && entity.Kind == yaml.SequenceNode && len(entity.Content) > 0 {
		entity = entity.Content[0]
	}
	if name := scalarValue(entity); name != "" {
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			name = name[dot+1:]
		}
		return strings.ToLower(platform + "_" + name)
	}
	return strings.ToLower(platform + "_" + strconv.Itoa(index+1))
}

// wrapInChoose replaces the actions with a single choose action holding one
// option per trigger ID.
func wrapInChoose(root *yaml.Node, triggerIDs []string) {
	actions := mappingGet(root, "actions")
	if actions == nil {
		return
	}
	if actions.Kind == yaml.MappingNode {
		wrapped := sequenceNode(cloneNode(actions))
		*actions = *wrapped
	}
	if actions.Kind != yaml.SequenceNode {
		return
	}
	for _, a := range actions.Content {
		if a.Kind == yaml.MappingNode && mappingGet(a, "choose") != nil {
			return
		}
	}

	options := make([]*yaml.Node, 0, len(triggerIDs))
	for _, id := range triggerIDs {
		condition := mappingNode(
			scalarNode("condition"), scalarNode("trigger"),
			scalarNode("id"), scalarNode(id),
		)
		options = append(options, mappingNode(
			scalarNode("conditions"), sequenceNode(condition),
			scalarNode("sequence"), cloneNode(actions),
		))
	}

	choose := mappingNode(scalarNode("choose"), sequenceNode(options...))
	*actions = *sequenceNode(choose)
}

// ─── yaml.Node helpers ──────────────────────────────────────────────────────

func mappingGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mappingSetFirst(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append([]*yaml.Node{scalarNode(key), value}, m.Content...)
}

// renameKey renames from to to unless to is already present.
func renameKey(m *yaml.Node, from, to string) {
	if mappingGet(m, to) != nil {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == from {
			m.Content[i] = scalarNode(to)
			return
		}
	}
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func mappingNode(kv ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: kv}
}

func sequenceNode(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = cloneNode(child)
	}
	return &c
}
