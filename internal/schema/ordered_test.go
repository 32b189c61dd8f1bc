package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func TestOrderedMapKeepsInsertionOrder(t *testing.T) {
	var m schema.OrderedMap[int]
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	v, ok := m.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, 3, m.Len())
}

func TestOrderedMapCloneIsIndependent(t *testing.T) {
	var m schema.OrderedMap[string]
	m.Set("a", "1")

	c := m.Clone()
	c.Set("b", "2")

	assert.Equal(t, 1, m.Len())
	assert.False(t, m.Has("b"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())
}

func TestOrderedMapJSONPreservesOrder(t *testing.T) {
	input := `{"id":1,"name":2,"email":3,"created_at":4}`

	var m schema.OrderedMap[int]
	require.NoError(t, json.Unmarshal([]byte(input), &m))
	assert.Equal(t, []string{"id", "name", "email", "created_at"}, m.Keys())

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
	assert.Equal(t, input, string(out))
}

func TestOrderedMapJSONNull(t *testing.T) {
	var m schema.OrderedMap[int]
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, 0, m.Len())

	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestOrderedMapYAMLPreservesOrder(t *testing.T) {
	input := "zeta: 1\nalpha: 2\nmid: 3\n"

	var m schema.OrderedMap[int]
	require.NoError(t, yaml.Unmarshal([]byte(input), &m))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())

	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}
