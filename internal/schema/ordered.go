package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-keyed map that remembers insertion order. The zero
// value is an empty map ready to use.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (m *OrderedMap[V]) Set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m OrderedMap[V]) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of entries.
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (m OrderedMap[V]) Each(fn func(key string, v V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Clone returns a shallow copy whose key order can be extended independently.
func (m OrderedMap[V]) Clone() OrderedMap[V] {
	out := OrderedMap[V]{
		keys:   m.Keys(),
		values: make(map[string]V, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	*m = OrderedMap[V]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		m.Set(key, v)
	}

	_, err = dec.Token()
	return err
}

// MarshalYAML encodes the map as a YAML mapping with keys in insertion order.
func (m OrderedMap[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping the document's key order.
func (m *OrderedMap[V]) UnmarshalYAML(value *yaml.Node) error {
	*m = OrderedMap[V]{}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		var v V
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		m.Set(key, v)
	}
	return nil
}
