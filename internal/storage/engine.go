package storage

import (
	"errors"
	"time"

	"github.com/golang/glog"
)

// Engine implements DataSource on top of a Backend. It owns the path
// resolution, conditional checks, etag propagation and folder pruning, so
// every backend shares the exact same semantics.
//
// Engine is not safe for concurrent use; wrap it in a database.Database.
type Engine struct {
	backend Backend
	now     func() time.Time
}

var _ DataSource = (*Engine)(nil)

// NewEngine returns an Engine storing items in b.
func NewEngine(b Backend) *Engine {
	return &Engine{backend: b, now: func() time.Time { return time.Now().UTC() }}
}

// Get implements DataSource.
//
// Resolution order:
//  1. metadata file names are rejected (IncorrectItemName)
//  2. folder paths in the public namespace are rejected (CanNotBeListed)
//  3. every part is validated (IncorrectItemName)
//  4. the tree is walked root to leaf (NotFound, Conflict, NoContentInside)
//  5. If-Match, then If-None-Match, are checked against the target etag
//  6. content is loaded; folders are materialized recursively
func (e *Engine) Get(p ItemPath, ifMatch Etag, ifNoneMatch []Etag, withContent bool) (Item, error) {
	if err := p.checkMetadata(); err != nil {
		return nil, err
	}
	if p.IsFolder() && p.IsPublic() {
		return nil, &Error{Kind: CanNotBeListed, Path: p}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	item, err := e.resolve(p)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(p, ifMatch, item.Tag()); err != nil {
		return nil, err
	}
	if err := checkIfNoneMatch(p, ifNoneMatch, item.Tag()); err != nil {
		return nil, err
	}
	if !withContent {
		return item, nil
	}
	return e.materialize(p, item)
}

// resolve walks p from the root and returns the metadata of its target.
func (e *Engine) resolve(p ItemPath) (Item, error) {
	names := p.Names()
	if len(names) == 0 {
		root, err := e.backend.Lookup(p)
		if err != nil {
			return nil, wrapBackend(p, "lookup root", err)
		}
		return root, nil
	}

	var item Item
	for i := range names {
		last := i == len(names)-1
		wantFolder := !last || p.IsFolder()
		cur := p.Prefix(i+1, wantFolder)

		child, err := e.backend.Lookup(cur)
		if err != nil {
			return nil, wrapBackend(cur, "lookup", err)
		}
		switch child.(type) {
		case nil:
			return nil, &Error{Kind: NotFound, Path: cur}
		case *Document:
			if wantFolder {
				return nil, &Error{Kind: Conflict, Path: p.Prefix(i+1, true), Reason: "expected a folder, found a document"}
			}
		case *Folder:
			if !wantFolder {
				return nil, &Error{Kind: Conflict, Path: p.Prefix(i+1, false), Reason: "expected a document, found a folder"}
			}
		}
		item = child
	}
	return item, nil
}

// materialize loads the content of item, recursing into folder children.
// Children that can not be listed are left out; any other failure aborts.
func (e *Engine) materialize(p ItemPath, item Item) (Item, error) {
	switch v := item.(type) {
	case *Document:
		content, err := e.backend.ReadContent(p)
		if err != nil {
			return nil, wrapBackend(p, "read content", err)
		}
		d := v.Meta()
		d.Content = content
		if d.Content == nil {
			d.Content = []byte{}
		}
		return d, nil
	case *Folder:
		children, err := e.backend.Children(p)
		if err != nil {
			return nil, wrapBackend(p, "list children", err)
		}
		f := &Folder{Etag: v.Etag, Content: make(map[string]Item, len(children))}
		for _, cp := range children {
			child, err := e.Get(cp, "", nil, true)
			if err != nil {
				if KindOf(err) == CanNotBeListed {
					continue
				}
				return nil, err
			}
			f.Content[cp.Name()] = child
		}
		return f, nil
	}
	return nil, BackendError(p, "unknown item type", nil)
}

// Put implements DataSource.
//
// The existing target is read with the same conditions as Get. A document
// with identical content and content type is left untouched and reported as
// ContentNotChanged. A missing target is created along with any missing
// intermediate folders. Every ancestor folder gets a fresh etag afterwards.
func (e *Engine) Put(p ItemPath, ifMatch Etag, ifNoneMatch []Etag, doc *Document) (PutResult, error) {
	if p.IsFolder() {
		return PutResult{}, &Error{Kind: DoesNotWorkForFolders, Path: p}
	}

	existing, err := e.Get(p, ifMatch, ifNoneMatch, true)
	switch {
	case err == nil:
		return e.update(p, existing.(*Document), doc)
	case errors.Is(err, ErrNotFound):
		if !ifMatch.IsEmpty() {
			return PutResult{}, &Error{Kind: NoIfMatch, Path: p, Search: ifMatch}
		}
		return e.create(p, doc)
	default:
		return PutResult{}, err
	}
}

func (e *Engine) update(p ItemPath, existing, doc *Document) (PutResult, error) {
	if existing.SameContent(doc) {
		return PutResult{}, &Error{Kind: ContentNotChanged, Path: p, Found: existing.Etag}
	}
	stored := e.stamp(doc)
	if err := e.backend.WriteDocument(p, stored); err != nil {
		return PutResult{}, wrapBackend(p, "write document", err)
	}
	if err := e.propagate(p); err != nil {
		return PutResult{}, err
	}
	glog.V(2).Infof("[storage]updated %s etag=%s", p, stored.Etag)
	return PutResult{Status: Updated, Etag: stored.Etag}, nil
}

func (e *Engine) create(p ItemPath, doc *Document) (PutResult, error) {
	if err := p.Validate(); err != nil {
		return PutResult{}, err
	}
	for _, anc := range p.Ancestors() {
		if anc.IsRoot() {
			continue
		}
		item, err := e.backend.Lookup(anc)
		if err != nil {
			return PutResult{}, wrapBackend(anc, "lookup", err)
		}
		switch item.(type) {
		case nil:
			if err := e.backend.CreateFolder(anc, NewEtag()); err != nil {
				return PutResult{}, wrapBackend(anc, "create folder", err)
			}
		case *Document:
			return PutResult{}, &Error{Kind: Conflict, Path: anc, Reason: "expected a folder, found a document"}
		}
	}

	stored := e.stamp(doc)
	if err := e.backend.WriteDocument(p, stored); err != nil {
		return PutResult{}, wrapBackend(p, "write document", err)
	}
	if err := e.propagate(p); err != nil {
		return PutResult{}, err
	}
	glog.V(2).Infof("[storage]created %s etag=%s", p, stored.Etag)
	return PutResult{Status: Created, Etag: stored.Etag}, nil
}

// stamp copies doc with a fresh etag and modification time.
func (e *Engine) stamp(doc *Document) *Document {
	content := doc.Content
	if content == nil {
		content = []byte{}
	}
	return &Document{
		Etag:         NewEtag(),
		Content:      append([]byte{}, content...),
		ContentType:  doc.ContentType,
		LastModified: e.now(),
	}
}

// propagate gives every folder from the root down to p's parent a fresh etag.
func (e *Engine) propagate(p ItemPath) error {
	for _, anc := range p.Ancestors() {
		if err := e.backend.SetFolderEtag(anc, NewEtag()); err != nil {
			return wrapBackend(anc, "update folder etag", err)
		}
	}
	return nil
}

// Delete implements DataSource.
//
// Only If-Match applies. After the document is removed every ancestor gets a
// fresh etag, then ancestors left empty are pruned bottom-up, root excluded.
// Pruning is best-effort and never fails the Delete.
func (e *Engine) Delete(p ItemPath, ifMatch Etag) (Etag, error) {
	if p.IsFolder() {
		return "", &Error{Kind: DoesNotWorkForFolders, Path: p}
	}

	item, err := e.Get(p, ifMatch, nil, false)
	if err != nil {
		return "", err
	}
	if err := e.backend.Remove(p); err != nil {
		return "", wrapBackend(p, "remove document", err)
	}
	if err := e.propagate(p); err != nil {
		return "", err
	}
	e.prune(p)

	glog.V(2).Infof("[storage]deleted %s etag=%s", p, item.Tag())
	return item.Tag(), nil
}

func (e *Engine) prune(p ItemPath) {
	ancestors := p.Ancestors()
	for i := len(ancestors) - 1; i > 0; i-- {
		folder := ancestors[i]
		children, err := e.backend.Children(folder)
		if err != nil {
			glog.Warningf("[storage]prune %s: %v", folder, err)
			return
		}
		if len(children) > 0 {
			return
		}
		if err := e.backend.Remove(folder); err != nil {
			glog.Warningf("[storage]prune %s: %v", folder, err)
			return
		}
	}
}
