// Package kv stores the item tree in a flat key-value Store, one record per
// item, the way a browser-side store keeps it in local storage.
//
// Every item lives under "item:" followed by its names joined with "/"; the
// root is "item:". A record is JSON. Folder records list their children by
// name, folders with a trailing "/".
package kv

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/remotestore/internal/storage"
)

const keyPrefix = "item:"

const (
	kindDocument = "document"
	kindFolder   = "folder"
)

type record struct {
	Kind         string    `json:"kind"`
	Etag         string    `json:"etag"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Content      []byte    `json:"content,omitempty"`
	Children     []string  `json:"children,omitempty"`
}

// Backend is a storage.Backend over a Store.
type Backend struct {
	store Store
}

var _ storage.Backend = (*Backend)(nil)

// New returns a Backend over store, creating the root record if missing.
func New(store Store) (*Backend, error) {
	b := &Backend{store: store}
	root := storage.RootPath()
	if _, err := store.Get(key(root)); errors.Is(err, ErrKeyNotFound) {
		if err := b.save(root, &record{Kind: kindFolder, Etag: storage.NewEtag().String()}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, storage.BackendError(root, "read root record", err)
	}
	return b, nil
}

func key(p storage.ItemPath) string {
	return keyPrefix + strings.Join(p.Names(), "/")
}

func childName(p storage.ItemPath, folder bool) string {
	if folder {
		return p.Name() + "/"
	}
	return p.Name()
}

// load returns the record of p, or nil when there is none.
func (b *Backend) load(p storage.ItemPath) (*record, error) {
	raw, err := b.store.Get(key(p))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.BackendError(p, "read record", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, storage.BackendError(p, "decode record", err)
	}
	return &rec, nil
}

func (b *Backend) save(p storage.ItemPath, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return storage.BackendError(p, "encode record", err)
	}
	if err := b.store.Put(key(p), raw); err != nil {
		return storage.BackendError(p, "write record", err)
	}
	return nil
}

func (b *Backend) loadFolder(p storage.ItemPath) (*record, error) {
	rec, err := b.load(p)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if rec.Kind != kindFolder {
		return nil, &storage.Error{Kind: storage.Conflict, Path: p, Reason: "expected a folder, found a document"}
	}
	return rec, nil
}

// link adds or removes name from the child list of p's parent.
func (b *Backend) link(p storage.ItemPath, name string, add bool) error {
	parentPath := p.Parent()
	parent, err := b.loadFolder(parentPath)
	if err != nil {
		return err
	}
	idx := slices.Index(parent.Children, name)
	switch {
	case add && idx < 0:
		parent.Children = append(parent.Children, name)
		slices.Sort(parent.Children)
	case !add && idx >= 0:
		parent.Children = slices.Delete(parent.Children, idx, idx+1)
	default:
		return nil
	}
	return b.save(parentPath, parent)
}

func toItem(rec *record) storage.Item {
	if rec.Kind == kindFolder {
		return &storage.Folder{Etag: storage.Etag(rec.Etag)}
	}
	return &storage.Document{
		Etag:         storage.Etag(rec.Etag),
		ContentType:  rec.ContentType,
		LastModified: rec.LastModified,
	}
}

// Lookup implements storage.Backend.
func (b *Backend) Lookup(p storage.ItemPath) (storage.Item, error) {
	rec, err := b.load(p)
	if err != nil || rec == nil {
		return nil, err
	}
	return toItem(rec), nil
}

// ReadContent implements storage.Backend.
func (b *Backend) ReadContent(p storage.ItemPath) ([]byte, error) {
	rec, err := b.load(p)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Kind != kindDocument {
		return nil, &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if rec.Content == nil {
		return []byte{}, nil
	}
	return rec.Content, nil
}

// Children implements storage.Backend.
func (b *Backend) Children(p storage.ItemPath) ([]storage.ItemPath, error) {
	rec, err := b.loadFolder(p)
	if err != nil {
		return nil, err
	}
	out := make([]storage.ItemPath, 0, len(rec.Children))
	for _, name := range rec.Children {
		if strings.HasSuffix(name, "/") {
			out = append(out, p.Child(strings.TrimSuffix(name, "/"), true))
		} else {
			out = append(out, p.Child(name, false))
		}
	}
	return out, nil
}

// WriteDocument implements storage.Backend.
func (b *Backend) WriteDocument(p storage.ItemPath, doc *storage.Document) error {
	existing, err := b.load(p)
	if err != nil {
		return err
	}
	if existing != nil && existing.Kind == kindFolder {
		return &storage.Error{Kind: storage.Conflict, Path: p.Prefix(len(p.Names()), true)}
	}
	rec := &record{
		Kind:         kindDocument,
		Etag:         doc.Etag.String(),
		ContentType:  doc.ContentType,
		LastModified: doc.LastModified,
		Content:      doc.Content,
	}
	if err := b.save(p, rec); err != nil {
		return err
	}
	return b.link(p, childName(p, false), true)
}

// CreateFolder implements storage.Backend.
func (b *Backend) CreateFolder(p storage.ItemPath, etag storage.Etag) error {
	existing, err := b.load(p)
	if err != nil {
		return err
	}
	if existing != nil {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "name already taken"}
	}
	if err := b.save(p, &record{Kind: kindFolder, Etag: etag.String()}); err != nil {
		return err
	}
	return b.link(p, childName(p, true), true)
}

// SetFolderEtag implements storage.Backend.
func (b *Backend) SetFolderEtag(p storage.ItemPath, etag storage.Etag) error {
	rec, err := b.loadFolder(p)
	if err != nil {
		return err
	}
	rec.Etag = etag.String()
	return b.save(p, rec)
}

// Remove implements storage.Backend.
func (b *Backend) Remove(p storage.ItemPath) error {
	if p.IsRoot() {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "the root can not be removed"}
	}
	rec, err := b.load(p)
	if err != nil {
		return err
	}
	if rec == nil {
		return &storage.Error{Kind: storage.NotFound, Path: p}
	}
	folder := rec.Kind == kindFolder
	if folder && len(rec.Children) > 0 {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "folder is not empty"}
	}
	if err := b.store.Delete(key(p)); err != nil {
		return storage.BackendError(p, "delete record", err)
	}
	return b.link(p, childName(p, folder), false)
}
