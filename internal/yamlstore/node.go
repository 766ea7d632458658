package yamlstore

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// NewMapping returns an empty block mapping node.
func NewMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// NewSequence returns an empty block sequence node.
func NewSequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

// NewString returns a string scalar node.
func NewString(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// IsMapping reports whether n is a mapping node.
func IsMapping(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.MappingNode
}

// Get returns the value stored under key in mapping m, or nil.
func Get(m *yaml.Node, key string) *yaml.Node {
	if !IsMapping(m) {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// GetString returns the scalar value stored under key, or "".
func GetString(m *yaml.Node, key string) string {
	v := Get(m, key)
	if v == nil || v.Kind != yaml.ScalarNode || v.ShortTag() == "!!null" {
		return ""
	}
	return v.Value
}

// Set stores value under key, keeping the key's position when it already exists.
func Set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, NewString(key), value)
}

// Ensure returns the node under key, creating it with make when absent or of
// a different kind.
func Ensure(m *yaml.Node, key string, kind yaml.Kind, make func() *yaml.Node) *yaml.Node {
	if v := Get(m, key); v != nil && v.Kind == kind {
		return v
	}
	v := make()
	Set(m, key, v)
	return v
}

// Merge deep-merges src into dst. Nested mappings merge key by key; every
// other value in src replaces the value in dst. Keys only present in dst are
// kept in place and new keys are appended. dst is returned.
func Merge(dst, src *yaml.Node) *yaml.Node {
	if !IsMapping(dst) || !IsMapping(src) {
		return dst
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		key := src.Content[i].Value
		value := src.Content[i+1]
		if existing := Get(dst, key); IsMapping(existing) && IsMapping(value) {
			Merge(existing, value)
			continue
		}
		Set(dst, key, Clone(value))
	}
	return dst
}

// Clone deep-copies n.
func Clone(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Content != nil {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			out.Content[i] = Clone(child)
		}
	}
	return &out
}

// FromValue encodes a Go value into a node tree.
func FromValue(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}

// ToValue decodes n into plain Go values (maps, slices, scalars) for JSON output.
func ToValue(n *yaml.Node) (any, error) {
	var v any
	if n == nil {
		return nil, nil
	}
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ToMap decodes a mapping node into a map. Non-mapping nodes yield an empty map.
func ToMap(n *yaml.Node) (map[string]any, error) {
	if !IsMapping(n) {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	if err := n.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// preferDoubleQuotes switches quoted string scalars to double quotes.
func preferDoubleQuotes(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		switch {
		case n.Style&yaml.SingleQuotedStyle != 0:
			n.Style = yaml.DoubleQuotedStyle
		case n.Style == 0 && needsQuoting(n.Value):
			n.Style = yaml.DoubleQuotedStyle
		}
	}
	for _, child := range n.Content {
		preferDoubleQuotes(child)
	}
}

func needsQuoting(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return true
	}
	if strings.ContainsAny(s[:1], "-?:,[]{}#&*!|>'\"%@`") {
		return true
	}
	return strings.Contains(s, ": ") || strings.Contains(s, " #") ||
		strings.HasSuffix(s, ":") || strings.ContainsAny(s, "\n\r\t")
}
