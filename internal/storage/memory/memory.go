// Package memory keeps the whole item tree in process memory.
//
// The Tree owns every node: callers only ever receive copies, so nothing
// outside the package can mutate the tree behind the Engine's back.
package memory

import (
	"github.com/dreamware/remotestore/internal/storage"
)

// Tree is an in-memory storage.Backend rooted at a single folder.
type Tree struct {
	root *storage.Folder
}

var _ storage.Backend = (*Tree)(nil)

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: storage.NewFolder()}
}

// FromRoot returns a tree that takes ownership of root.
func FromRoot(root *storage.Folder) *Tree {
	if root == nil {
		root = storage.NewFolder()
	}
	return &Tree{root: root}
}

// NewDataSource returns an Engine over an empty in-memory tree.
func NewDataSource() *storage.Engine {
	return storage.NewEngine(New())
}

// Root returns a deep copy of the whole tree.
func (t *Tree) Root() *storage.Folder {
	return t.root.Clone()
}

// parent returns the loaded folder that holds p.
func (t *Tree) parent(p storage.ItemPath) (*storage.Folder, error) {
	pp := p.Parent()
	folder := t.root.LookupFolder(pp)
	if folder == nil {
		return nil, &storage.Error{Kind: storage.NotFound, Path: pp}
	}
	if folder.Content == nil {
		return nil, &storage.Error{Kind: storage.NoContentInside, Path: pp}
	}
	return folder, nil
}

// Lookup implements storage.Backend.
func (t *Tree) Lookup(p storage.ItemPath) (storage.Item, error) {
	if p.IsRoot() {
		return t.root.Meta(), nil
	}
	parent, err := t.parent(p)
	if err != nil {
		return nil, err
	}
	child, ok := parent.Content[p.Name()]
	if !ok {
		return nil, nil
	}
	return storage.MetaOf(child), nil
}

// ReadContent implements storage.Backend.
func (t *Tree) ReadContent(p storage.ItemPath) ([]byte, error) {
	doc, ok := t.root.Lookup(p).(*storage.Document)
	if !ok {
		return nil, &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if doc.Content == nil {
		return nil, &storage.Error{Kind: storage.NoContentInside, Path: p}
	}
	return append([]byte{}, doc.Content...), nil
}

// Children implements storage.Backend.
func (t *Tree) Children(p storage.ItemPath) ([]storage.ItemPath, error) {
	folder := t.root.LookupFolder(p)
	if folder == nil {
		return nil, &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if folder.Content == nil {
		return nil, &storage.Error{Kind: storage.NoContentInside, Path: p}
	}
	out := make([]storage.ItemPath, 0, len(folder.Content))
	for _, name := range folder.Names() {
		_, isFolder := folder.Content[name].(*storage.Folder)
		out = append(out, p.Child(name, isFolder))
	}
	return out, nil
}

// WriteDocument implements storage.Backend.
func (t *Tree) WriteDocument(p storage.ItemPath, doc *storage.Document) error {
	parent, err := t.parent(p)
	if err != nil {
		return err
	}
	if _, isFolder := parent.Content[p.Name()].(*storage.Folder); isFolder {
		return &storage.Error{Kind: storage.Conflict, Path: p.Prefix(len(p.Names()), true)}
	}
	parent.Content[p.Name()] = doc.Clone()
	return nil
}

// CreateFolder implements storage.Backend.
func (t *Tree) CreateFolder(p storage.ItemPath, etag storage.Etag) error {
	parent, err := t.parent(p)
	if err != nil {
		return err
	}
	if _, exists := parent.Content[p.Name()]; exists {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "name already taken"}
	}
	parent.Content[p.Name()] = &storage.Folder{Etag: etag, Content: map[string]storage.Item{}}
	return nil
}

// SetFolderEtag implements storage.Backend.
func (t *Tree) SetFolderEtag(p storage.ItemPath, etag storage.Etag) error {
	folder := t.root.LookupFolder(p)
	if folder == nil {
		return &storage.Error{Kind: storage.NotFound, Path: p}
	}
	folder.Etag = etag
	return nil
}

// Remove implements storage.Backend.
func (t *Tree) Remove(p storage.ItemPath) error {
	if p.IsRoot() {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "the root can not be removed"}
	}
	parent, err := t.parent(p)
	if err != nil {
		return err
	}
	child, ok := parent.Content[p.Name()]
	if !ok {
		return &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if folder, isFolder := child.(*storage.Folder); isFolder && len(folder.Content) > 0 {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "folder is not empty"}
	}
	delete(parent.Content, p.Name())
	return nil
}
