package storage

// PutStatus tells whether a successful Put created or replaced a document.
type PutStatus uint8

const (
	// Created means no document existed at the path before the Put.
	Created PutStatus = iota + 1
	// Updated means an existing document was replaced.
	Updated
)

func (s PutStatus) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// PutResult is the outcome of a successful Put.
type PutResult struct {
	Status PutStatus
	Etag   Etag
}

// DataSource defines the storage contract shared by every backend.
// Implementations report failures as *Error values only.
type DataSource interface {
	// Get resolves p and returns a copy of the item found there.
	// An empty ifMatch and an empty ifNoneMatch impose no condition.
	// When withContent is false, documents come back without content and
	// folders without children.
	Get(p ItemPath, ifMatch Etag, ifNoneMatch []Etag, withContent bool) (Item, error)

	// Put creates or replaces the document at p.
	Put(p ItemPath, ifMatch Etag, ifNoneMatch []Etag, doc *Document) (PutResult, error)

	// Delete removes the document at p and returns the etag it had.
	Delete(p ItemPath, ifMatch Etag) (Etag, error)
}

// Backend is the set of load/store primitives a DataSource is built from.
// The Engine calls them in root-to-leaf order, so every primitive may assume
// the parent folder of its path exists and has been checked.
type Backend interface {
	// Lookup returns the item stored under p's last name inside p's parent,
	// without document content or folder children. It returns nil, nil when
	// the name is absent, whatever the form of p. The root always exists.
	Lookup(p ItemPath) (Item, error)

	// ReadContent returns the content of the document at p.
	ReadContent(p ItemPath) ([]byte, error)

	// Children returns the paths of the children of folder p, each in its
	// own form (folders end with "/").
	Children(p ItemPath) ([]ItemPath, error)

	// WriteDocument stores doc at p, replacing any document already there.
	WriteDocument(p ItemPath, doc *Document) error

	// CreateFolder creates the empty folder p.
	CreateFolder(p ItemPath, etag Etag) error

	// SetFolderEtag replaces the etag of folder p.
	SetFolderEtag(p ItemPath, etag Etag) error

	// Remove deletes the document p, or the folder p when it is empty.
	Remove(p ItemPath) error
}
