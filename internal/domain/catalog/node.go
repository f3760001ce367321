package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type namedNode struct {
	name string
	ref  string
	node *yaml.Node
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node == nil {
		return node
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	return node
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		v := node.Content[i+1]
		if k != nil && k.Value == key {
			return v
		}
	}
	return nil
}

func scalarValue(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

// namedEntries accepts a section written either as a mapping keyed by name or
// as a list of mappings carrying a "name" field, and yields the entries in
// document order.
func namedEntries(node *yaml.Node, section string, result *ValidationResult) []namedNode {
	var out []namedNode
	seen := map[string]struct{}{}
	push := func(name, ref string, value *yaml.Node) {
		name = strings.TrimSpace(name)
		if name == "" {
			result.add(ref, "name is empty")
			return
		}
		if _, ok := seen[name]; ok {
			result.add(ref, fmt.Sprintf("duplicate name %q", name))
			return
		}
		seen[name] = struct{}{}
		out = append(out, namedNode{name: name, ref: ref, node: value})
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			push(name, fmt.Sprintf("%s.%s", section, strings.TrimSpace(name)), node.Content[i+1])
		}
	case yaml.SequenceNode:
		for i, entry := range node.Content {
			ref := fmt.Sprintf("%s[%d]", section, i)
			if entry == nil || entry.Kind != yaml.MappingNode {
				result.add(ref, "invalid value (entry must be a mapping)")
				continue
			}
			push(scalarValue(mappingValue(entry, "name")), ref, entry)
		}
	default:
		result.add(section, "invalid value (must be a mapping or a list)")
	}
	return out
}

// stringList decodes a list of scalars. A null value is an empty list.
func stringList(node *yaml.Node, ref string, result *ValidationResult) []string {
	if isNull(node) {
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		result.add(ref, "invalid value (must be a list)")
		return nil
	}
	var out []string
	for i, item := range node.Content {
		value := strings.TrimSpace(scalarValue(item))
		if value == "" {
			result.add(fmt.Sprintf("%s[%d]", ref, i), "invalid value (must be a non-empty string)")
			continue
		}
		out = append(out, value)
	}
	return out
}

// orderedPairs decodes a mapping of scalars, keeping document order.
func orderedPairs(node *yaml.Node, ref string, result *ValidationResult) [][2]string {
	if isNull(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		result.add(ref, "invalid value (must be a mapping)")
		return nil
	}
	var out [][2]string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := strings.TrimSpace(node.Content[i].Value)
		value := node.Content[i+1]
		if value == nil || value.Kind != yaml.ScalarNode {
			result.add(fmt.Sprintf("%s.%s", ref, key), "invalid value (must be a string)")
			continue
		}
		out = append(out, [2]string{key, strings.TrimSpace(value.Value)})
	}
	return out
}
