package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Folder {
	return NewFolder(
		Entry{Name: "a", Item: NewFolder(
			Entry{Name: "doc", Item: NewDocument([]byte("x"), "text/plain")},
			Entry{Name: "b", Item: NewFolder()},
		)},
		Entry{Name: "top", Item: NewDocument(nil, "")},
	)
}

func TestNewEtagIsUnique(t *testing.T) {
	seen := map[Etag]bool{}
	for i := 0; i < 1000; i++ {
		e := NewEtag()
		require.False(t, seen[e], "duplicate etag %s", e)
		assert.Len(t, e.String(), 26)
		seen[e] = true
	}
	assert.True(t, Wildcard.IsWildcard())
	assert.True(t, Etag("").IsEmpty())
}

func TestConditionalChecks(t *testing.T) {
	p := ParsePath("doc")

	assert.NoError(t, checkIfMatch(p, "", "E1"))
	assert.NoError(t, checkIfMatch(p, "*", "E1"))
	assert.NoError(t, checkIfMatch(p, "E1", "E1"))
	assert.Equal(t, NoIfMatch, KindOf(checkIfMatch(p, "e1", "E1")))

	assert.NoError(t, checkIfNoneMatch(p, nil, "E1"))
	assert.NoError(t, checkIfNoneMatch(p, []Etag{"E2", "E3"}, "E1"))
	assert.Equal(t, IfNoneMatch, KindOf(checkIfNoneMatch(p, []Etag{"E2", "E1"}, "E1")))
	assert.Equal(t, IfNoneMatch, KindOf(checkIfNoneMatch(p, []Etag{"*"}, "E1")))
}

func TestLookup(t *testing.T) {
	root := sampleTree()

	assert.Same(t, root, root.Lookup(RootPath()))
	assert.IsType(t, &Document{}, root.Lookup(ParsePath("a/doc")))
	assert.IsType(t, &Folder{}, root.Lookup(ParsePath("a/b/")))
	assert.IsType(t, &Folder{}, root.Lookup(ParsePath("a/b")), "form is the caller's business")
	assert.Nil(t, root.Lookup(ParsePath("a/missing")))
	assert.Nil(t, root.Lookup(ParsePath("top/below")), "documents have no children")
	assert.Nil(t, root.LookupFolder(ParsePath("a/doc")))

	root.Content["lazy"] = &Folder{Etag: NewEtag()}
	assert.Nil(t, root.Lookup(ParsePath("lazy/x")))
}

func TestCloneIsDeep(t *testing.T) {
	root := sampleTree()
	c := root.Clone()

	c.Content["a"].(*Folder).Content["doc"].(*Document).Content[0] = 'Y'
	delete(c.Content, "top")

	assert.Equal(t, []byte("x"), root.Lookup(ParsePath("a/doc")).(*Document).Content)
	assert.Contains(t, root.Content, "top")
	assert.Equal(t, root.Etag, c.Etag)
}

func TestMeta(t *testing.T) {
	root := sampleTree()

	f := MetaOf(root).(*Folder)
	assert.Equal(t, root.Etag, f.Etag)
	assert.Nil(t, f.Content)

	d := MetaOf(root.Lookup(ParsePath("a/doc"))).(*Document)
	assert.Nil(t, d.Content)
	assert.Equal(t, "text/plain", d.ContentType)
}

func TestSameContent(t *testing.T) {
	a := &Document{Content: []byte("x"), ContentType: "text/plain"}

	assert.True(t, a.SameContent(&Document{Content: []byte("x"), ContentType: "text/plain"}))
	assert.False(t, a.SameContent(&Document{Content: []byte("x"), ContentType: "text/html"}))
	assert.False(t, a.SameContent(&Document{Content: []byte("y"), ContentType: "text/plain"}))
	assert.True(t, (&Document{Content: []byte{}}).SameContent(&Document{}))
}

func TestNamesSorted(t *testing.T) {
	root := sampleTree()
	assert.Equal(t, []string{"a", "top"}, root.Names())
	assert.Equal(t, []string{"b", "doc"}, root.Content["a"].(*Folder).Names())
	assert.NotNil(t, root.Content["top"].(*Document).Content, "NewDocument never stores nil content")
}
