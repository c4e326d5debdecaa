package hayabusa

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

// assemble deep-copies the source document, hoists the title to the first
// output line, replaces the detection section with the accumulated selection
// blocks and serializes the rest in block style with 4-space indent.
func (c *conversion) assemble(rule *sigma.Rule, fragments []string) ([]byte, error) {
	root := cloneNode(rule.Document)
	if root == nil {
		root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	title := rule.Title
	removeMappingKey(root, "title")
	setMappingValue(root, "detection", c.detectionNode(fragments))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "title: %s\n", title)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode output document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode output document: %w", err)
	}
	return buf.Bytes(), nil
}

// detectionNode builds the rewritten detection mapping: the condition first,
// then every selection block in registry insertion order.
func (c *conversion) detectionNode(fragments []string) *yaml.Node {
	det := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	appendPairNode(det, "condition", scalarNode(strings.Join(fragments, c.opts.AndToken)))

	for _, name := range c.names {
		block := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, p := range c.blocks[name] {
			appendPairNode(block, p.field, valueNode(p.value))
		}
		appendPairNode(det, name, block)
	}
	return det
}

func valueNode(v any) *yaml.Node {
	switch t := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		return scalarNode(t)
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(t)}
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range t {
			seq.Content = append(seq.Content, valueNode(elem))
		}
		return seq
	default:
		return scalarNode(fmt.Sprint(t))
	}
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func appendPairNode(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, scalarNode(key), value)
}

// cloneNode deep-copies a node tree so the caller-held document is never
// mutated. Styles are reset to force block-style output regardless of how
// the source was written.
func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := &yaml.Node{
		Kind:   n.Kind,
		Tag:    n.Tag,
		Value:  n.Value,
		Anchor: n.Anchor,
	}
	if n.Alias != nil {
		out.Alias = cloneNode(n.Alias)
	}
	for _, child := range n.Content {
		out.Content = append(out.Content, cloneNode(child))
	}
	return out
}

func removeMappingKey(mapping *yaml.Node, key string) {
	if mapping.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return
		}
	}
}

// setMappingValue replaces the value under key in place, or appends the
// pair when the key is absent.
func setMappingValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	appendPairNode(mapping, key, value)
}
