// Package folder stores the item tree on disk, one filesystem entry per item.
//
// Layout under the root directory:
//
//	.folder.itemdata.toml          root folder metadata
//	notes/                         a folder
//	notes/.folder.itemdata.toml    its metadata
//	notes/todo                     a document's content
//	notes/.todo.itemdata.toml      that document's metadata
//
// Folder metadata holds {datastruct_version, etag}; document metadata holds
// {datastruct_version, etag, content_type, last_modified}.
package folder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dreamware/remotestore/internal/storage"
)

// datastructVersion is written into every metadata file.
const datastructVersion = 1

// tempPattern names in-flight writes. It follows the metadata naming
// convention, so no item can ever be called like a temp file.
var tempPattern = storage.DocumentMetadataName("tmp-*")

type folderMeta struct {
	DatastructVersion int    `toml:"datastruct_version"`
	Etag              string `toml:"etag"`
}

type documentMeta struct {
	DatastructVersion int       `toml:"datastruct_version"`
	Etag              string    `toml:"etag"`
	ContentType       string    `toml:"content_type"`
	LastModified      time.Time `toml:"last_modified"`
}

// Store is an on-disk storage.Backend.
//
// Every primitive touches the filesystem synchronously. Callers serialize
// access through a database.Database.
type Store struct {
	root string
}

var _ storage.Backend = (*Store)(nil)

// New opens (or initializes) a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	s := &Store{root: abs}

	metaPath := filepath.Join(abs, storage.FolderMetadataName())
	if _, err := os.Stat(metaPath); errors.Is(err, os.ErrNotExist) {
		if err := s.writeFolderMeta(storage.RootPath(), storage.NewEtag()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat root metadata: %w", err)
	}
	return s, nil
}

// NewDataSource returns an Engine over a store rooted at dir.
func NewDataSource(dir string) (*storage.Engine, error) {
	s, err := New(dir)
	if err != nil {
		return nil, err
	}
	return storage.NewEngine(s), nil
}

// abs maps p onto the filesystem and makes sure the result stays under root.
func (s *Store) abs(p storage.ItemPath) (string, error) {
	joined := filepath.Join(s.root, filepath.FromSlash(strings.Join(p.Names(), "/")))
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", storage.BackendError(p, "path escapes storage root", err)
	}
	return joined, nil
}

func (s *Store) folderMetaPath(p storage.ItemPath) (string, error) {
	dir, err := s.abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storage.FolderMetadataName()), nil
}

func (s *Store) documentMetaPath(p storage.ItemPath) (string, error) {
	dir, err := s.abs(p.Parent())
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storage.DocumentMetadataName(p.Name())), nil
}

func (s *Store) readFolderMeta(p storage.ItemPath) (*storage.Folder, error) {
	path, err := s.folderMetaPath(p)
	if err != nil {
		return nil, err
	}
	var meta folderMeta
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		return nil, storage.BackendError(p, "read folder metadata", err)
	}
	return &storage.Folder{Etag: storage.Etag(meta.Etag)}, nil
}

func (s *Store) writeFolderMeta(p storage.ItemPath, etag storage.Etag) error {
	path, err := s.folderMetaPath(p)
	if err != nil {
		return err
	}
	meta := folderMeta{DatastructVersion: datastructVersion, Etag: etag.String()}
	if err := writeTOML(path, meta); err != nil {
		return storage.BackendError(p, "write folder metadata", err)
	}
	return nil
}

func (s *Store) readDocumentMeta(p storage.ItemPath) (*storage.Document, error) {
	path, err := s.documentMetaPath(p)
	if err != nil {
		return nil, err
	}
	var meta documentMeta
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		return nil, storage.BackendError(p, "read document metadata", err)
	}
	return &storage.Document{
		Etag:         storage.Etag(meta.Etag),
		ContentType:  meta.ContentType,
		LastModified: meta.LastModified,
	}, nil
}

// Lookup implements storage.Backend.
func (s *Store) Lookup(p storage.ItemPath) (storage.Item, error) {
	if p.IsRoot() {
		return s.readFolderMeta(p)
	}
	full, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, storage.BackendError(p, "stat", err)
	case info.IsDir():
		return s.readFolderMeta(p.Prefix(len(p.Names()), true))
	default:
		return s.readDocumentMeta(p.Prefix(len(p.Names()), false))
	}
}

// ReadContent implements storage.Backend.
func (s *Store) ReadContent(p storage.ItemPath) ([]byte, error) {
	full, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, storage.BackendError(p, "read content", err)
	}
	return content, nil
}

// Children implements storage.Backend. Metadata and temporary files are
// not items and never show up.
func (s *Store) Children(p storage.ItemPath) ([]storage.ItemPath, error) {
	full, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, storage.BackendError(p, "read folder", err)
	}
	out := make([]storage.ItemPath, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if storage.IsMetadataName(name) {
			continue
		}
		out = append(out, p.Child(name, entry.IsDir()))
	}
	return out, nil
}

// WriteDocument implements storage.Backend. Content is written before
// metadata so a crash never leaves metadata pointing at missing content.
func (s *Store) WriteDocument(p storage.ItemPath, doc *storage.Document) error {
	full, err := s.abs(p)
	if err != nil {
		return err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return &storage.Error{Kind: storage.Conflict, Path: p.Prefix(len(p.Names()), true)}
	}
	if err := writeFile(full, doc.Content); err != nil {
		return storage.BackendError(p, "write content", err)
	}

	metaPath, err := s.documentMetaPath(p)
	if err != nil {
		return err
	}
	meta := documentMeta{
		DatastructVersion: datastructVersion,
		Etag:              doc.Etag.String(),
		ContentType:       doc.ContentType,
		LastModified:      doc.LastModified,
	}
	if err := writeTOML(metaPath, meta); err != nil {
		return storage.BackendError(p, "write document metadata", err)
	}
	return nil
}

// CreateFolder implements storage.Backend.
func (s *Store) CreateFolder(p storage.ItemPath, etag storage.Etag) error {
	full, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.Mkdir(full, 0o750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "name already taken"}
		}
		return storage.BackendError(p, "create folder", err)
	}
	return s.writeFolderMeta(p, etag)
}

// SetFolderEtag implements storage.Backend.
func (s *Store) SetFolderEtag(p storage.ItemPath, etag storage.Etag) error {
	return s.writeFolderMeta(p, etag)
}

// Remove implements storage.Backend.
func (s *Store) Remove(p storage.ItemPath) error {
	if p.IsRoot() {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "the root can not be removed"}
	}
	full, err := s.abs(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return &storage.Error{Kind: storage.NotFound, Path: p}
	}
	if err != nil {
		return storage.BackendError(p, "stat", err)
	}

	if !info.IsDir() {
		if err := os.Remove(full); err != nil {
			return storage.BackendError(p, "remove content", err)
		}
		metaPath, err := s.documentMetaPath(p)
		if err != nil {
			return err
		}
		if err := os.Remove(metaPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return storage.BackendError(p, "remove document metadata", err)
		}
		return nil
	}

	children, err := s.Children(p)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &storage.Error{Kind: storage.Conflict, Path: p, Reason: "folder is not empty"}
	}
	metaPath, err := s.folderMetaPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(metaPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storage.BackendError(p, "remove folder metadata", err)
	}
	if err := os.Remove(full); err != nil {
		return storage.BackendError(p, "remove folder", err)
	}
	return nil
}

// writeFile streams data to path using a temp file and an atomic rename.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("write: %w", werr)
	}
	if cerr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("flush: %w", cerr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("rename to %q: %w", path, err)
	}
	return nil
}

func writeTOML(path string, v any) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return writeFile(path, []byte(buf.String()))
}
