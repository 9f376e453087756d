// Package storagetest holds the behavior suite every storage.DataSource must
// pass. Backend packages run it from their own tests:
//
//	func TestConformance(t *testing.T) {
//		storagetest.Run(t, func(t *testing.T) storage.DataSource {
//			return memory.NewDataSource()
//		})
//	}
package storagetest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/remotestore/internal/storage"
)

// Factory returns a fresh, empty DataSource for one subtest.
type Factory func(t *testing.T) storage.DataSource

func path(raw string) storage.ItemPath {
	return storage.ParsePath(raw)
}

func doc(content, contentType string) *storage.Document {
	return &storage.Document{Content: []byte(content), ContentType: contentType}
}

// MustPut stores content at raw and returns the new etag.
func MustPut(t *testing.T, ds storage.DataSource, raw, content string) storage.Etag {
	t.Helper()
	res, err := ds.Put(path(raw), "", nil, doc(content, "text/plain"))
	require.NoError(t, err)
	return res.Etag
}

// Etag returns the current etag of raw.
func Etag(t *testing.T, ds storage.DataSource, raw string) storage.Etag {
	t.Helper()
	item, err := ds.Get(path(raw), "", nil, false)
	require.NoError(t, err)
	return item.Tag()
}

func requireKind(t *testing.T, err error, kind storage.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, storage.KindOf(err), "error: %v", err)
}

// Run executes the whole suite against the DataSources built by newDS.
func Run(t *testing.T, newDS Factory) {
	t.Run("scenarios", func(t *testing.T) { runScenarios(t, newDS) })
	t.Run("get", func(t *testing.T) { runGet(t, newDS) })
	t.Run("put", func(t *testing.T) { runPut(t, newDS) })
	t.Run("delete", func(t *testing.T) { runDelete(t, newDS) })
	t.Run("names", func(t *testing.T) { runNames(t, newDS) })
}

func runScenarios(t *testing.T, newDS Factory) {
	ds := newDS(t)

	// A: create, read back, conflict, listing
	res, err := ds.Put(path("a/b/c"), "", nil, doc("HELLO", "text/plain"))
	require.NoError(t, err)
	require.Equal(t, storage.Created, res.Status)
	etag1 := res.Etag

	item, err := ds.Get(path("a/b/c"), "", nil, true)
	require.NoError(t, err)
	d, ok := item.(*storage.Document)
	require.True(t, ok)
	assert.Equal(t, etag1, d.Etag)
	assert.Equal(t, []byte("HELLO"), d.Content)
	assert.Equal(t, "text/plain", d.ContentType)
	assert.False(t, d.LastModified.IsZero())

	_, err = ds.Get(path("a/b"), "", nil, true)
	requireKind(t, err, storage.Conflict)

	item, err = ds.Get(path("a/"), "", nil, true)
	require.NoError(t, err)
	f, ok := item.(*storage.Folder)
	require.True(t, ok)
	require.Contains(t, f.Content, "b")
	assert.IsType(t, &storage.Folder{}, f.Content["b"])

	// B: identical content is a no-op
	_, err = ds.Put(path("a/b/c"), "", nil, doc("HELLO", "text/plain"))
	requireKind(t, err, storage.ContentNotChanged)
	assert.Equal(t, etag1, Etag(t, ds, "a/b/c"))

	// C: failed If-Match mutates nothing
	_, err = ds.Put(path("a/b/c"), "WRONG", nil, doc("BYE", "text/plain"))
	requireKind(t, err, storage.NoIfMatch)
	assert.Equal(t, etag1, Etag(t, ds, "a/b/c"))

	// D: delete prunes the emptied chain
	rootBefore := Etag(t, ds, "")
	removed, err := ds.Delete(path("a/b/c"), "")
	require.NoError(t, err)
	assert.Equal(t, etag1, removed)

	_, err = ds.Get(path("a/b/c"), "", nil, false)
	requireKind(t, err, storage.NotFound)
	_, err = ds.Get(path("a/b/"), "", nil, false)
	requireKind(t, err, storage.NotFound)
	_, err = ds.Get(path("a/"), "", nil, false)
	requireKind(t, err, storage.NotFound)

	root, err := ds.Get(path(""), "", nil, true)
	require.NoError(t, err)
	assert.Empty(t, root.(*storage.Folder).Content)
	assert.NotEqual(t, rootBefore, root.Tag(), "root etag changes after a pruning delete")

	// E: If-None-Match wildcard creates once
	res, err = ds.Put(path("user/new/a"), "", []storage.Etag{storage.Wildcard}, doc("x", "text/plain"))
	require.NoError(t, err)
	assert.Equal(t, storage.Created, res.Status)
	_, err = ds.Put(path("user/new/a"), "", []storage.Etag{storage.Wildcard}, doc("x", "text/plain"))
	requireKind(t, err, storage.IfNoneMatch)
}

func runGet(t *testing.T, newDS Factory) {
	t.Run("root of empty store", func(t *testing.T) {
		ds := newDS(t)
		item, err := ds.Get(path(""), "", nil, false)
		require.NoError(t, err)
		f, ok := item.(*storage.Folder)
		require.True(t, ok)
		assert.NotEmpty(t, f.Etag)
		assert.Nil(t, f.Content)
	})

	t.Run("metadata only", func(t *testing.T) {
		ds := newDS(t)
		etag := MustPut(t, ds, "notes/todo", "milk")

		item, err := ds.Get(path("notes/todo"), "", nil, false)
		require.NoError(t, err)
		d := item.(*storage.Document)
		assert.Equal(t, etag, d.Etag)
		assert.Nil(t, d.Content)
		assert.Equal(t, "text/plain", d.ContentType)
	})

	t.Run("missing paths", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b", "x")

		_, err := ds.Get(path("nope"), "", nil, false)
		requireKind(t, err, storage.NotFound)
		_, err = ds.Get(path("a/nope/x"), "", nil, false)
		requireKind(t, err, storage.NotFound)
		assert.Equal(t, "a/nope/", err.(*storage.Error).Path.String())
	})

	t.Run("document in the way of a folder", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b", "x")

		_, err := ds.Get(path("a/b/c"), "", nil, false)
		requireKind(t, err, storage.Conflict)
		assert.Equal(t, "a/b/", err.(*storage.Error).Path.String())

		_, err = ds.Get(path("a/b/"), "", nil, false)
		requireKind(t, err, storage.Conflict)
	})

	t.Run("folder in the way of a document", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b/c", "x")

		_, err := ds.Get(path("a/b"), "", nil, false)
		requireKind(t, err, storage.Conflict)
		assert.Equal(t, "a/b", err.(*storage.Error).Path.String())
	})

	t.Run("conditions", func(t *testing.T) {
		ds := newDS(t)
		etag := MustPut(t, ds, "doc", "x")

		_, err := ds.Get(path("doc"), etag, nil, true)
		assert.NoError(t, err)
		_, err = ds.Get(path("doc"), storage.Wildcard, nil, true)
		assert.NoError(t, err)

		_, err = ds.Get(path("doc"), "other", nil, true)
		requireKind(t, err, storage.NoIfMatch)
		se := err.(*storage.Error)
		assert.Equal(t, storage.Etag("other"), se.Search)
		assert.Equal(t, etag, se.Found)

		_, err = ds.Get(path("doc"), "", []storage.Etag{"other", etag}, true)
		requireKind(t, err, storage.IfNoneMatch)
		_, err = ds.Get(path("doc"), "", []storage.Etag{storage.Wildcard}, true)
		requireKind(t, err, storage.IfNoneMatch)
		_, err = ds.Get(path("doc"), "", []storage.Etag{"other"}, true)
		assert.NoError(t, err)
	})

	t.Run("etag comparison is case sensitive", func(t *testing.T) {
		ds := newDS(t)
		etag := MustPut(t, ds, "doc", "x")
		lower := storage.Etag(strings.ToLower(etag.String()))
		require.NotEqual(t, etag, lower)

		_, err := ds.Get(path("doc"), lower, nil, false)
		requireKind(t, err, storage.NoIfMatch)
	})

	t.Run("public folders can not be listed", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "public/photos/cat", "meow")
		MustPut(t, ds, "private", "secret")

		_, err := ds.Get(path("public/"), "", nil, true)
		requireKind(t, err, storage.CanNotBeListed)
		_, err = ds.Get(path("public/photos/"), "", nil, false)
		requireKind(t, err, storage.CanNotBeListed)

		item, err := ds.Get(path("public/photos/cat"), "", nil, true)
		require.NoError(t, err)
		assert.Equal(t, []byte("meow"), item.(*storage.Document).Content)

		root, err := ds.Get(path(""), "", nil, true)
		require.NoError(t, err)
		content := root.(*storage.Folder).Content
		assert.NotContains(t, content, "public")
		assert.Contains(t, content, "private")
	})

	t.Run("recursive listing", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/x", "1")
		MustPut(t, ds, "a/b/y", "2")
		MustPut(t, ds, "a/b/c/z", "3")

		item, err := ds.Get(path("a/"), "", nil, true)
		require.NoError(t, err)
		a := item.(*storage.Folder)
		require.Len(t, a.Content, 2)
		assert.Equal(t, []byte("1"), a.Content["x"].(*storage.Document).Content)

		b := a.Content["b"].(*storage.Folder)
		assert.Equal(t, Etag(t, ds, "a/b/"), b.Etag)
		c := b.Content["c"].(*storage.Folder)
		assert.Equal(t, []byte("3"), c.Content["z"].(*storage.Document).Content)
	})

	t.Run("dot-prefixed names are listed", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/.tmp-keep", "keep")
		MustPut(t, ds, "a/.hidden", "h")
		MustPut(t, ds, "a/y", "y")

		item, err := ds.Get(path("a/"), "", nil, true)
		require.NoError(t, err)
		content := item.(*storage.Folder).Content
		assert.Len(t, content, 3)
		assert.Contains(t, content, ".tmp-keep")
		assert.Contains(t, content, ".hidden")
	})

	t.Run("returned items are copies", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "doc", "abc")

		item, err := ds.Get(path("doc"), "", nil, true)
		require.NoError(t, err)
		item.(*storage.Document).Content[0] = 'X'

		again, err := ds.Get(path("doc"), "", nil, true)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again.(*storage.Document).Content)
	})
}

func runPut(t *testing.T, newDS Factory) {
	t.Run("folders can not be put", func(t *testing.T) {
		ds := newDS(t)
		_, err := ds.Put(path("a/"), "", nil, doc("x", "text/plain"))
		requireKind(t, err, storage.DoesNotWorkForFolders)
	})

	t.Run("update", func(t *testing.T) {
		ds := newDS(t)
		etag1 := MustPut(t, ds, "a/doc", "v1")

		res, err := ds.Put(path("a/doc"), etag1, nil, doc("v2", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, storage.Updated, res.Status)
		assert.NotEqual(t, etag1, res.Etag)

		item, err := ds.Get(path("a/doc"), "", nil, true)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), item.(*storage.Document).Content)
		assert.Equal(t, res.Etag, item.Tag())
	})

	t.Run("content type change is an update", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "doc", "same")

		res, err := ds.Put(path("doc"), "", nil, doc("same", "application/json"))
		require.NoError(t, err)
		assert.Equal(t, storage.Updated, res.Status)
	})

	t.Run("unchanged content reports the current etag", func(t *testing.T) {
		ds := newDS(t)
		etag := MustPut(t, ds, "doc", "same")
		parent := Etag(t, ds, "")

		_, err := ds.Put(path("doc"), "", nil, doc("same", "text/plain"))
		requireKind(t, err, storage.ContentNotChanged)
		assert.Equal(t, etag, err.(*storage.Error).Found)
		assert.Equal(t, parent, Etag(t, ds, ""), "no-op must not touch ancestors")
	})

	t.Run("ancestor etags change", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b/c", "v1")
		MustPut(t, ds, "a/other", "o")

		before := map[string]storage.Etag{}
		for _, raw := range []string{"", "a/", "a/b/"} {
			before[raw] = Etag(t, ds, raw)
		}
		otherBefore := Etag(t, ds, "a/other")

		MustPut(t, ds, "a/b/c", "v2")

		for raw, etag := range before {
			assert.NotEqual(t, etag, Etag(t, ds, raw), "ancestor %q kept its etag", raw)
		}
		assert.Equal(t, otherBefore, Etag(t, ds, "a/other"), "siblings are untouched")
	})

	t.Run("creating a nested document", func(t *testing.T) {
		ds := newDS(t)
		rootBefore := Etag(t, ds, "")

		res, err := ds.Put(path("x/y/z/doc"), "", nil, doc("deep", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, storage.Created, res.Status)
		assert.NotEqual(t, rootBefore, Etag(t, ds, ""))

		for _, raw := range []string{"x/", "x/y/", "x/y/z/"} {
			item, err := ds.Get(path(raw), "", nil, false)
			require.NoError(t, err, raw)
			assert.IsType(t, &storage.Folder{}, item)
		}
	})

	t.Run("if-match on a missing document", func(t *testing.T) {
		ds := newDS(t)
		_, err := ds.Put(path("doc"), "some-etag", nil, doc("x", "text/plain"))
		requireKind(t, err, storage.NoIfMatch)

		_, err = ds.Get(path("doc"), "", nil, false)
		requireKind(t, err, storage.NotFound)
	})

	t.Run("wildcard if-match updates", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "doc", "v1")
		res, err := ds.Put(path("doc"), storage.Wildcard, nil, doc("v2", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, storage.Updated, res.Status)
	})

	t.Run("names can not be shared by a document and a folder", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b", "doc")

		_, err := ds.Put(path("a/b/c"), "", nil, doc("x", "text/plain"))
		requireKind(t, err, storage.Conflict)

		ds2 := newDS(t)
		MustPut(t, ds2, "a/b/c", "doc")
		_, err = ds2.Put(path("a/b"), "", nil, doc("x", "text/plain"))
		requireKind(t, err, storage.Conflict)

		item, err := ds2.Get(path("a/"), "", nil, true)
		require.NoError(t, err)
		assert.IsType(t, &storage.Folder{}, item.(*storage.Folder).Content["b"])
	})

	t.Run("empty content", func(t *testing.T) {
		ds := newDS(t)
		res, err := ds.Put(path("empty"), "", nil, &storage.Document{Content: []byte{}, ContentType: "text/plain"})
		require.NoError(t, err)
		assert.Equal(t, storage.Created, res.Status)

		item, err := ds.Get(path("empty"), "", nil, true)
		require.NoError(t, err)
		content := item.(*storage.Document).Content
		assert.NotNil(t, content)
		assert.Len(t, content, 0)

		_, err = ds.Put(path("empty"), "", nil, &storage.Document{ContentType: "text/plain"})
		requireKind(t, err, storage.ContentNotChanged)
	})

	t.Run("public documents", func(t *testing.T) {
		ds := newDS(t)
		res, err := ds.Put(path("public/note"), "", nil, doc("hi", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, storage.Created, res.Status)
	})
}

func runDelete(t *testing.T, newDS Factory) {
	t.Run("folders can not be deleted", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b", "x")
		_, err := ds.Delete(path("a/"), "")
		requireKind(t, err, storage.DoesNotWorkForFolders)
	})

	t.Run("missing", func(t *testing.T) {
		ds := newDS(t)
		_, err := ds.Delete(path("nope"), "")
		requireKind(t, err, storage.NotFound)
	})

	t.Run("conflict", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b/c", "x")
		_, err := ds.Delete(path("a/b"), "")
		requireKind(t, err, storage.Conflict)
	})

	t.Run("if-match", func(t *testing.T) {
		ds := newDS(t)
		etag := MustPut(t, ds, "doc", "x")

		_, err := ds.Delete(path("doc"), "wrong")
		requireKind(t, err, storage.NoIfMatch)
		assert.Equal(t, etag, Etag(t, ds, "doc"))

		removed, err := ds.Delete(path("doc"), etag)
		require.NoError(t, err)
		assert.Equal(t, etag, removed)
	})

	t.Run("siblings keep the folder alive", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b/c", "1")
		MustPut(t, ds, "a/b/d", "2")
		before := map[string]storage.Etag{}
		for _, raw := range []string{"", "a/", "a/b/"} {
			before[raw] = Etag(t, ds, raw)
		}

		_, err := ds.Delete(path("a/b/c"), "")
		require.NoError(t, err)

		for raw, etag := range before {
			assert.NotEqual(t, etag, Etag(t, ds, raw), "ancestor %q kept its etag", raw)
		}
		item, err := ds.Get(path("a/b/"), "", nil, true)
		require.NoError(t, err)
		assert.Len(t, item.(*storage.Folder).Content, 1)
		assert.Contains(t, item.(*storage.Folder).Content, "d")
	})

	t.Run("pruning stops at the first non-empty folder", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/keep", "1")
		MustPut(t, ds, "a/b/c/d", "2")

		_, err := ds.Delete(path("a/b/c/d"), "")
		require.NoError(t, err)

		_, err = ds.Get(path("a/b/"), "", nil, false)
		requireKind(t, err, storage.NotFound)
		item, err := ds.Get(path("a/"), "", nil, true)
		require.NoError(t, err)
		assert.Len(t, item.(*storage.Folder).Content, 1)
	})

	t.Run("deleting a sibling keeps dot-prefixed documents", func(t *testing.T) {
		ds := newDS(t)
		keep := MustPut(t, ds, "a/.tmp-keep", "keep")
		MustPut(t, ds, "a/y", "y")

		_, err := ds.Delete(path("a/y"), "")
		require.NoError(t, err)

		item, err := ds.Get(path("a/.tmp-keep"), "", nil, true)
		require.NoError(t, err)
		assert.Equal(t, keep, item.Tag())
		assert.Equal(t, []byte("keep"), item.(*storage.Document).Content)

		folder, err := ds.Get(path("a/"), "", nil, true)
		require.NoError(t, err)
		assert.Len(t, folder.(*storage.Folder).Content, 1)
	})

	t.Run("name can be reused as a folder", func(t *testing.T) {
		ds := newDS(t)
		MustPut(t, ds, "a/b", "doc")
		_, err := ds.Delete(path("a/b"), "")
		require.NoError(t, err)

		res, err := ds.Put(path("a/b/c"), "", nil, doc("x", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, storage.Created, res.Status)
	})
}

func runNames(t *testing.T, newDS Factory) {
	cases := []struct {
		name string
		raw  string
		at   string
	}{
		{name: "dot", raw: "a/./b", at: "a/."},
		{name: "dot dot", raw: "a/../b", at: "a/.."},
		{name: "null byte", raw: "a/b\x00c", at: "a/b\x00c"},
		{name: "empty segment", raw: "a//b", at: "a/"},
		{name: "document metadata", raw: "a/.b.itemdata.toml", at: "a/.b.itemdata.toml"},
		{name: "folder metadata", raw: ".folder.itemdata.toml", at: ".folder.itemdata.toml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := newDS(t)
			MustPut(t, ds, "a/x", "x")

			_, err := ds.Get(path(tc.raw), "", nil, false)
			requireKind(t, err, storage.IncorrectItemName)
			assert.Equal(t, tc.at, err.(*storage.Error).Path.String())

			_, err = ds.Put(path(tc.raw), "", nil, doc("x", "text/plain"))
			requireKind(t, err, storage.IncorrectItemName)

			_, err = ds.Delete(path(tc.raw), "")
			requireKind(t, err, storage.IncorrectItemName)
		})
	}
}
