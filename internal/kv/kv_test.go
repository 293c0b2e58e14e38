package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("one")))
	require.NoError(t, s.Set(ctx, "b", []byte("two")))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	// Mutating the returned slice must not affect the store.
	v[0] = 'X'
	v2, _, _ := s.Get(ctx, "a")
	assert.Equal(t, []byte("one"), v2)

	exists, err := s.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, exists)

	keys, err := s.GetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "a"))
	exists, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	// Overwrite replaces the value.
	require.NoError(t, s.Set(ctx, "b", []byte("three")))
	v, _, _ = s.Get(ctx, "b")
	assert.Equal(t, []byte("three"), v)
}

func TestSqliteStore(t *testing.T) {
	ctx := context.Background()
	mgr := NewSqliteStoreManager("")

	s, err := mgr.Get(ctx, "default")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	v, _, _ = s.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), v)

	keys, err := s.GetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelegatingStoreManager(t *testing.T) {
	ctx := context.Background()
	mgr := NewDelegatingStoreManager(map[string]StoreManager{
		"default": NewMemoryStoreManager(),
		"cache":   NewMemoryStoreManager(),
	})

	assert.True(t, mgr.IsDefined("default"))
	assert.False(t, mgr.IsDefined("nope"))
	assert.Equal(t, "in-memory store", mgr.Summary("cache"))
	assert.Empty(t, mgr.Summary("nope"))

	_, err := mgr.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNoSuchStore)

	// Labels are isolated stores.
	def, err := mgr.Get(ctx, "default")
	require.NoError(t, err)
	cache, err := mgr.Get(ctx, "cache")
	require.NoError(t, err)
	require.NoError(t, def.Set(ctx, "k", []byte("v")))
	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatchGating(t *testing.T) {
	ctx := context.Background()
	mgr := NewDelegatingStoreManager(map[string]StoreManager{
		"default": NewMemoryStoreManager(),
	})

	d := NewDispatch([]string{"default"}, mgr)
	_, err := d.Open(ctx, "default")
	assert.NoError(t, err)

	_, err = d.Open(ctx, "secret")
	assert.ErrorIs(t, err, ErrAccessDenied)

	assert.NoError(t, ValidateAllowed("c", []string{"default"}, mgr))
	err = ValidateAllowed("c", []string{"ghost"}, mgr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
