package storage

import (
	"bytes"
	"time"

	"golang.org/x/exp/slices"
)

// Item is a node of the tree: either a *Document or a *Folder.
type Item interface {
	// Tag returns the item's entity tag.
	Tag() Etag
	isItem()
}

// Document is a leaf item.
//
// A nil Content means the payload was not loaded (metadata only). Stored
// documents always carry non-nil content, even when empty.
type Document struct {
	Etag         Etag
	Content      []byte
	ContentType  string
	LastModified time.Time // zero when unknown
}

// Folder is an item holding named children. A name maps to exactly one item,
// so a folder can never hold a document and a folder of the same name.
//
// A nil Content means the children were not enumerated.
type Folder struct {
	Etag    Etag
	Content map[string]Item
}

// Entry is a named child used to build folders.
type Entry struct {
	Name string
	Item Item
}

func (d *Document) Tag() Etag { return d.Etag }
func (d *Document) isItem()   {}
func (f *Folder) Tag() Etag   { return f.Etag }
func (f *Folder) isItem()     {}

// NewFolder builds a folder from entries and assigns it a fresh etag.
// Later entries replace earlier ones of the same name.
func NewFolder(entries ...Entry) *Folder {
	content := make(map[string]Item, len(entries))
	for _, e := range entries {
		content[e.Name] = e.Item
	}
	return &Folder{Etag: NewEtag(), Content: content}
}

// NewDocument builds a document with a fresh etag and the current time.
func NewDocument(content []byte, contentType string) *Document {
	if content == nil {
		content = []byte{}
	}
	return &Document{
		Etag:         NewEtag(),
		Content:      content,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}
}

// SameContent reports whether d and other carry identical content and
// content type.
func (d *Document) SameContent(other *Document) bool {
	return d.ContentType == other.ContentType && bytes.Equal(d.Content, other.Content)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	if d.Content != nil {
		c.Content = append([]byte{}, d.Content...)
	}
	return &c
}

// Meta returns a copy of d without its content.
func (d *Document) Meta() *Document {
	c := *d
	c.Content = nil
	return &c
}

// Clone returns a deep copy of f and its whole subtree.
func (f *Folder) Clone() *Folder {
	c := &Folder{Etag: f.Etag}
	if f.Content == nil {
		return c
	}
	c.Content = make(map[string]Item, len(f.Content))
	for name, child := range f.Content {
		c.Content[name] = CloneItem(child)
	}
	return c
}

// Meta returns a copy of f without its children.
func (f *Folder) Meta() *Folder {
	return &Folder{Etag: f.Etag}
}

// Names returns the names of f's loaded children in sorted order.
func (f *Folder) Names() []string {
	names := make([]string, 0, len(f.Content))
	for name := range f.Content {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CloneItem deep-copies any item.
func CloneItem(it Item) Item {
	switch v := it.(type) {
	case *Document:
		return v.Clone()
	case *Folder:
		return v.Clone()
	}
	return nil
}

// MetaOf returns a copy of it without content or children.
func MetaOf(it Item) Item {
	switch v := it.(type) {
	case *Document:
		return v.Meta()
	case *Folder:
		return v.Meta()
	}
	return nil
}

// Lookup walks from f one name at a time and returns the item at p, or nil.
// The walk fails (nil) when an intermediate name is missing, is a document,
// or is a folder whose children are not loaded. The form of p (folder or
// document) is not checked; callers compare it with the item type.
func (f *Folder) Lookup(p ItemPath) Item {
	var cur Item = f
	for _, name := range p.Names() {
		folder, ok := cur.(*Folder)
		if !ok || folder.Content == nil {
			return nil
		}
		child, ok := folder.Content[name]
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// LookupFolder is Lookup restricted to folders.
func (f *Folder) LookupFolder(p ItemPath) *Folder {
	folder, _ := f.Lookup(p).(*Folder)
	return folder
}
