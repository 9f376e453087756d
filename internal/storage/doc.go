// Package storage implements a remoteStorage-compatible document store: a
// tree of folders and documents addressed by slash-delimited paths, where
// every node carries an entity tag used for optimistic concurrency.
//
// # Overview
//
// The package holds the value types exchanged with callers (ItemPath, Etag,
// Item), the error taxonomy, and the Engine that implements the DataSource
// contract. Backends only provide load/store primitives; path resolution,
// conditional requests, etag propagation and folder pruning live here once.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         HTTP layer (cmd/server)     │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│   database.Database (one mutex)     │
//	└─────────────────────────────────────┘
//	                 │  DataSource
//	                 ▼
//	┌─────────────────────────────────────┐
//	│   storage.Engine (Get/Put/Delete)   │
//	└─────────────────────────────────────┘
//	                 │  Backend
//	    ┌────────────┼────────────┐
//	    ▼            ▼            ▼
//	┌────────┐  ┌────────┐  ┌────────┐
//	│ memory │  │ folder │  │   kv   │
//	│  Tree  │  │ Store  │  │Backend │
//	└────────┘  └────────┘  └────────┘
//
// # Paths
//
// A path ending in "/" names a folder; anything else names a document. The
// empty path is the root folder. Names "." and "..", names with a null byte,
// empty inner names and the metadata sidecar names used by the folder
// backend are rejected with IncorrectItemName.
//
// Folder paths under "public/" can never be listed (CanNotBeListed);
// documents there are read and written normally.
//
// # Entity Tags
//
// Etags are ULIDs, generated by the Engine on every write. After a
// successful Put or Delete every folder from the root to the item's parent
// carries a fresh etag, so polling any ancestor reveals a change below it.
// Conditional headers compare etags exactly; "*" matches any existing item.
//
// # Uniqueness
//
// A name inside a folder denotes either a document or a folder, never both.
// Asking for "a/b" when "a/b/" exists (or the reverse) is a Conflict.
//
// # Concurrency
//
// The Engine and the backends are not synchronized. A database.Database
// serializes every operation behind one mutex, readers included, which keeps
// the etag propagation walk atomic for every observer.
//
// # Error Handling
//
// Every failure is a *Error with a Kind:
//
//	NotFound              no item at the path
//	Conflict              document where a folder was expected, or the reverse
//	CanNotBeListed        folder listing under public/
//	IncorrectItemName     invalid path part
//	NoIfMatch             If-Match failed
//	IfNoneMatch           If-None-Match failed
//	ContentNotChanged     Put with identical content and content type
//	DoesNotWorkForFolders Put/Delete on a folder path
//	NoContentInside       folder children needed but not loaded
//	BackendFailure        I/O or (de)serialization failure, Cause wrapped
//
// Use KindOf for exhaustive switches and errors.Is with the Err* sentinels
// for single checks.
//
// # Usage Examples
//
//	ds := memory.NewDataSource()
//
//	res, err := ds.Put(storage.ParsePath("notes/todo"), "", nil,
//	    &storage.Document{Content: []byte("milk"), ContentType: "text/plain"})
//	if err != nil {
//	    return err
//	}
//
//	item, err := ds.Get(storage.ParsePath("notes/"), "", nil, true)
//	switch storage.KindOf(err) {
//	case 0:
//	    listing := item.(*storage.Folder)
//	case storage.NotFound:
//	    ...
//	}
//
//	_, err = ds.Delete(storage.ParsePath("notes/todo"), res.Etag)
//
// # Testing
//
// storagetest.Run is the behavior suite shared by every backend.
//
//	go test ./internal/storage/...
package storage
