package folder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/remotestore/internal/storage"
	"github.com/dreamware/remotestore/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.DataSource {
		ds, err := NewDataSource(t.TempDir())
		require.NoError(t, err)
		return ds
	})
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataSource(dir)
	require.NoError(t, err)

	res, err := ds.Put(storage.ParsePath("notes/todo"), "", nil, &storage.Document{
		Content:     []byte("milk"),
		ContentType: "text/plain",
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "notes", "todo"))
	require.NoError(t, err)
	assert.Equal(t, "milk", string(content))

	var dm documentMeta
	_, err = toml.DecodeFile(filepath.Join(dir, "notes", ".todo.itemdata.toml"), &dm)
	require.NoError(t, err)
	assert.Equal(t, datastructVersion, dm.DatastructVersion)
	assert.Equal(t, res.Etag.String(), dm.Etag)
	assert.Equal(t, "text/plain", dm.ContentType)
	assert.False(t, dm.LastModified.IsZero())

	var fm folderMeta
	_, err = toml.DecodeFile(filepath.Join(dir, "notes", ".folder.itemdata.toml"), &fm)
	require.NoError(t, err)
	assert.Equal(t, storagetest.Etag(t, ds, "notes/").String(), fm.Etag)

	_, err = toml.DecodeFile(filepath.Join(dir, ".folder.itemdata.toml"), &fm)
	require.NoError(t, err)
	assert.Equal(t, storagetest.Etag(t, ds, "").String(), fm.Etag)
}

func TestDeleteRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataSource(dir)
	require.NoError(t, err)
	storagetest.MustPut(t, ds, "a/b/c", "x")

	_, err = ds.Delete(storage.ParsePath("a/b/c"), "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "a"))
	assert.True(t, os.IsNotExist(err), "empty folders are pruned from disk")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".folder.itemdata.toml", entries[0].Name())
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataSource(dir)
	require.NoError(t, err)
	etag := storagetest.MustPut(t, ds, "a/doc", "persisted")
	rootEtag := storagetest.Etag(t, ds, "")

	reopened, err := NewDataSource(dir)
	require.NoError(t, err)
	assert.Equal(t, rootEtag, storagetest.Etag(t, reopened, ""))

	item, err := reopened.Get(storage.ParsePath("a/doc"), etag, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), item.(*storage.Document).Content)
}

func TestCorruptMetadataIsReported(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataSource(dir)
	require.NoError(t, err)
	storagetest.MustPut(t, ds, "doc", "x")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".doc.itemdata.toml"), []byte("etag = [unterminated"), 0o640))

	_, err = ds.Get(storage.ParsePath("doc"), "", nil, false)
	require.Error(t, err)
	assert.Equal(t, storage.BackendFailure, storage.KindOf(err))
}

func TestWritesLeaveOnlyItemsAndMetadata(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataSource(dir)
	require.NoError(t, err)
	storagetest.MustPut(t, ds, "a/doc", "v1")
	storagetest.MustPut(t, ds, "a/doc", "v2")

	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"doc", ".doc.itemdata.toml", ".folder.itemdata.toml"}, names)
}

func TestTempFilesUseReservedNames(t *testing.T) {
	name := strings.Replace(tempPattern, "*", "123456", 1)
	assert.True(t, storage.IsMetadataName(name), name)
	assert.Error(t, storage.ParsePath("a/"+name).Validate())
}

func TestRemoveFolderKeepsStrayFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	folder := storage.ParsePath("a/")
	require.NoError(t, s.CreateFolder(folder, storage.NewEtag()))

	stray := filepath.Join(dir, "a", ".stray.itemdata.toml")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o640))

	err = s.Remove(folder)
	require.Error(t, err)
	assert.Equal(t, storage.BackendFailure, storage.KindOf(err))
	_, err = os.Stat(stray)
	assert.NoError(t, err, "removing a folder never deletes files it does not own")
}
