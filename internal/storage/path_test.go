package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw      string
		str      string
		folder   bool
		root     bool
		names    []string
		name     string
		parent   string
		isPublic bool
	}{
		{raw: "", str: "", folder: true, root: true, names: []string{}, name: "", parent: ""},
		{raw: "/", str: "", folder: true, root: true, names: []string{}, name: "", parent: ""},
		{raw: "a", str: "a", names: []string{"a"}, name: "a", parent: ""},
		{raw: "a/b/", str: "a/b/", folder: true, names: []string{"a", "b"}, name: "b", parent: "a/"},
		{raw: "/a/b/c", str: "a/b/c", names: []string{"a", "b", "c"}, name: "c", parent: "a/b/"},
		{raw: "public/x", str: "public/x", names: []string{"public", "x"}, name: "x", parent: "public/", isPublic: true},
		{raw: "public/", str: "public/", folder: true, names: []string{"public"}, name: "public", parent: "", isPublic: true},
		{raw: "public", str: "public", names: []string{"public"}, name: "public", parent: ""},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			p := ParsePath(tc.raw)
			assert.Equal(t, tc.str, p.String())
			assert.Equal(t, tc.folder, p.IsFolder())
			assert.Equal(t, tc.root, p.IsRoot())
			assert.Equal(t, tc.names, p.Names())
			assert.Equal(t, tc.name, p.Name())
			assert.Equal(t, tc.parent, p.Parent().String())
			assert.Equal(t, tc.isPublic, p.IsPublic())
		})
	}
}

func TestZeroPathIsRoot(t *testing.T) {
	var p ItemPath
	assert.True(t, p.IsRoot())
	assert.Equal(t, RootPath().String(), p.String())
	assert.Empty(t, p.Ancestors())
}

func TestAncestors(t *testing.T) {
	strs := func(ps []ItemPath) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.String())
		}
		return out
	}

	assert.Equal(t, []string{"", "a/", "a/b/"}, strs(ParsePath("a/b/c").Ancestors()))
	assert.Equal(t, []string{"", "a/"}, strs(ParsePath("a/b/").Ancestors()))
	assert.Equal(t, []string{""}, strs(ParsePath("doc").Ancestors()))
	assert.Empty(t, ParsePath("").Ancestors())

	for _, anc := range ParsePath("x/y/z").Ancestors() {
		assert.True(t, anc.IsFolder(), anc.String())
	}
}

func TestChildAndPrefix(t *testing.T) {
	root := RootPath()
	assert.Equal(t, "a", root.Child("a", false).String())
	assert.Equal(t, "a/", root.Child("a", true).String())
	assert.Equal(t, "a/b/c", ParsePath("a/b/").Child("c", false).String())

	p := ParsePath("a/b/c")
	assert.Equal(t, "", p.Prefix(0, false).String())
	assert.Equal(t, "a/", p.Prefix(1, true).String())
	assert.Equal(t, "a/b", p.Prefix(2, false).String())
	assert.Equal(t, "a/b/c", p.Prefix(9, false).String())
}

func TestPathIsImmutable(t *testing.T) {
	p := ParsePath("a/b/c")
	names := p.Names()
	names[0] = "changed"
	_ = p.Child("d", false)
	_ = p.Prefix(1, true)
	assert.Equal(t, "a/b/c", p.String())
}

func TestValidate(t *testing.T) {
	valid := []string{"", "a", "a/b/", "a/b/c", "with space/ünïcode", ".hidden", "..dots", "a.itemdata.toml"}
	for _, raw := range valid {
		assert.NoError(t, ParsePath(raw).Validate(), raw)
	}

	invalid := map[string]string{
		"a/./b":                   "a/.",
		"../etc":                  "..",
		"a//b":                    "a/",
		"a/b\x00":                 "a/b\x00",
		".folder.itemdata.toml":   ".folder.itemdata.toml",
		"x/.doc.itemdata.toml/y":  "x/.doc.itemdata.toml",
		"a/b/.c.itemdata.toml":    "a/b/.c.itemdata.toml",
		"a/..":                    "a/..",
		"/a/b//":                  "a/b/",
	}
	for raw, at := range invalid {
		err := ParsePath(raw).Validate()
		require.Error(t, err, raw)
		assert.Equal(t, IncorrectItemName, KindOf(err), raw)
		assert.Equal(t, at, err.(*Error).Path.String(), raw)
	}
}

func TestIsMetadataName(t *testing.T) {
	assert.True(t, IsMetadataName(".folder.itemdata.toml"))
	assert.True(t, IsMetadataName(DocumentMetadataName("todo")))
	assert.False(t, IsMetadataName(".itemdata.toml"))
	assert.False(t, IsMetadataName("todo.itemdata.toml"))
	assert.False(t, IsMetadataName("todo"))
}
