package sigma

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseRule decodes one Sigma rule document and builds its condition tree.
// The original document node is retained on the rule so downstream output
// generation can preserve key order.
func ParseRule(data []byte) (*Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse rule: empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse rule: document is not a mapping")
	}

	rule := &Rule{Document: root}
	var detection *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "title":
			rule.Title = val.Value
		case "id":
			rule.ID = val.Value
		case "level":
			rule.Level = val.Value
		case "detection":
			detection = val
		}
	}
	if rule.Title == "" {
		return nil, fmt.Errorf("parse rule: missing title")
	}
	if detection == nil {
		return nil, fmt.Errorf("parse rule %q: missing detection section", rule.Title)
	}
	if detection.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse rule %q: detection must be a mapping", rule.Title)
	}

	sels := NewSelections()
	condition := ""
	for i := 0; i+1 < len(detection.Content); i += 2 {
		key, val := detection.Content[i], detection.Content[i+1]
		if key.Value == "condition" {
			condition = val.Value
			continue
		}
		tree, err := buildSelection(val)
		if err != nil {
			return nil, fmt.Errorf("parse rule %q: selection %s: %w", rule.Title, key.Value, err)
		}
		sels.Add(key.Value, tree)
	}
	if condition == "" {
		return nil, fmt.Errorf("parse rule %q: missing condition", rule.Title)
	}

	tree, agg, err := ParseCondition(condition, sels)
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", rule.Title, err)
	}
	rule.Condition = tree
	rule.Aggregation = agg
	return rule, nil
}

// buildSelection converts one detection-section entry into a condition
// subtree: a mapping becomes the AND of its items, a list becomes a List
// node over its elements.
func buildSelection(node *yaml.Node) (*Condition, error) {
	switch node.Kind {
	case yaml.MappingNode:
		var items []*Condition
		for i := 0; i+1 < len(node.Content); i += 2 {
			built, err := buildItems(node.Content[i].Value, node.Content[i+1])
			if err != nil {
				return nil, err
			}
			items = append(items, built...)
		}
		if len(items) == 1 {
			return items[0], nil
		}
		return And(items...), nil

	case yaml.SequenceNode:
		var children []*Condition
		for _, elem := range node.Content {
			switch elem.Kind {
			case yaml.MappingNode:
				child, err := buildSelection(elem)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			case yaml.ScalarNode:
				children = append(children, ValueLeaf(decodeScalar(elem)))
			default:
				return nil, fmt.Errorf("unsupported list element")
			}
		}
		return List(children...), nil

	default:
		return nil, fmt.Errorf("selection must be a mapping or a list")
	}
}

// buildItems converts one "Field|mod1|mod2: value" entry into Item nodes.
// The contains/startswith/endswith source modifiers are folded into wildcard
// values; "re" becomes a typed value; anything else is carried as a typed
// value so the backend can refuse it by name. The "all" modifier on a list
// expands into one item per element (AND semantics).
func buildItems(rawKey string, val *yaml.Node) ([]*Condition, error) {
	parts := strings.Split(rawKey, "|")
	field := parts[0]
	mods := parts[1:]

	wrap := func(s string) string { return s }
	wrapping := false
	typedMod := ""
	requireAll := false
	for _, m := range mods {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "contains":
			wrap, wrapping = func(s string) string { return "*" + s + "*" }, true
		case "startswith":
			wrap, wrapping = func(s string) string { return s + "*" }, true
		case "endswith":
			wrap, wrapping = func(s string) string { return "*" + s }, true
		case "re":
			typedMod = "re"
		case "all":
			requireAll = true
		case "":
		default:
			typedMod = m
		}
	}

	if typedMod != "" {
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("field %s: %s modifier requires a scalar value", field, typedMod)
		}
		return []*Condition{Item(field, Typed(typedMod, val.Value))}, nil
	}

	switch val.Kind {
	case yaml.ScalarNode:
		return []*Condition{Item(field, wrapScalar(decodeScalar(val), wrap, wrapping))}, nil

	case yaml.SequenceNode:
		values := make([]Value, 0, len(val.Content))
		for _, elem := range val.Content {
			if elem.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("field %s: nested list values are not supported", field)
			}
			values = append(values, wrapScalar(decodeScalar(elem), wrap, wrapping))
		}
		if requireAll {
			items := make([]*Condition, 0, len(values))
			for _, v := range values {
				items = append(items, Item(field, v))
			}
			return items, nil
		}
		return []*Condition{Item(field, Seq(values...))}, nil

	default:
		return nil, fmt.Errorf("field %s: unsupported value shape", field)
	}
}

func decodeScalar(n *yaml.Node) Value {
	switch n.Tag {
	case "!!null":
		return Absent()
	case "!!int":
		if i, err := strconv.Atoi(n.Value); err == nil {
			return Int(i)
		}
		return Str(n.Value)
	default:
		return Str(n.Value)
	}
}

// wrapScalar applies a source-modifier wildcard wrapping to string scalars.
// Non-string scalars are stringified first when a wrapping is in effect,
// matching how the original tooling coerces values under contains and
// friends.
func wrapScalar(v Value, wrap func(string) string, wrapping bool) Value {
	if v.Kind != ScalarValue {
		return v
	}
	if s, ok := v.Scalar.(string); ok {
		return Str(wrap(s))
	}
	if wrapping {
		return Str(wrap(fmt.Sprint(v.Scalar)))
	}
	return v
}
