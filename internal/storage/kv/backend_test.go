package kv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/remotestore/internal/storage"
	"github.com/dreamware/remotestore/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.DataSource {
		b, err := New(NewMemoryStore())
		require.NoError(t, err)
		return storage.NewEngine(b)
	})
}

func TestRecords(t *testing.T) {
	store := NewMemoryStore()
	b, err := New(store)
	require.NoError(t, err)
	ds := storage.NewEngine(b)

	storagetest.MustPut(t, ds, "a/b/c", "x")
	storagetest.MustPut(t, ds, "a/d", "y")

	assert.Equal(t, []string{"item:", "item:a", "item:a/b", "item:a/b/c", "item:a/d"}, keys(store, keyPrefix))

	raw, err := store.Get("item:a")
	require.NoError(t, err)
	var rec record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, kindFolder, rec.Kind)
	assert.Equal(t, []string{"b/", "d"}, rec.Children)

	_, err = ds.Delete(storage.ParsePath("a/b/c"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"item:", "item:a", "item:a/d"}, keys(store, keyPrefix))
}

func TestExistingStoreIsReused(t *testing.T) {
	store := NewMemoryStore()
	b, err := New(store)
	require.NoError(t, err)
	etag := storagetest.MustPut(t, storage.NewEngine(b), "doc", "x")

	again, err := New(store)
	require.NoError(t, err)
	assert.Equal(t, etag, storagetest.Etag(t, storage.NewEngine(again), "doc"))
}

func TestCorruptRecordIsReported(t *testing.T) {
	store := NewMemoryStore()
	b, err := New(store)
	require.NoError(t, err)
	ds := storage.NewEngine(b)
	storagetest.MustPut(t, ds, "doc", "x")

	require.NoError(t, store.Put("item:doc", []byte("{not json")))
	_, err = ds.Get(storage.ParsePath("doc"), "", nil, false)
	assert.Equal(t, storage.BackendFailure, storage.KindOf(err))
}
