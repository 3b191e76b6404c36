package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore[string]()

	require.NoError(t, s.Put("a", "one"))

	v, ok, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	s := NewMemoryStore[int]()

	require.NoError(t, s.Put("k", 1))
	require.NoError(t, s.Put("k", 2))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, s.Count())
}

func TestMemoryStore_ListPrefix(t *testing.T) {
	s := NewMemoryStore[string]()

	require.NoError(t, s.Put("org1:agent:a", "a"))
	require.NoError(t, s.Put("org1:agent:b", "b"))
	require.NoError(t, s.Put("org2:agent:c", "c"))

	t.Run("matching prefix", func(t *testing.T) {
		values, err := s.List("org1:")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, values)
	})

	t.Run("empty prefix returns all", func(t *testing.T) {
		values, err := s.List("")
		require.NoError(t, err)
		assert.Len(t, values, 3)
	})

	t.Run("no match", func(t *testing.T) {
		values, err := s.List("org3:")
		require.NoError(t, err)
		assert.Empty(t, values)
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore[string]()

	require.NoError(t, s.Put("k", "v"))

	deleted, err := s.Delete("k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete("k")
	require.NoError(t, err)
	assert.False(t, deleted)

	exists, err := s.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_ListPreservesInsertionOrder(t *testing.T) {
	s := NewMemoryStore[int]()

	require.NoError(t, s.Put("c", 3))
	require.NoError(t, s.Put("a", 1))
	require.NoError(t, s.Put("b", 2))

	values, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, values)
}
