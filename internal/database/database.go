package database

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/dreamware/remotestore/internal/storage"
	"github.com/dreamware/remotestore/internal/storage/kv"
)

// Database serializes every operation on one DataSource.
//
// A single mutex is held for the full duration of each Get, Put and Delete,
// readers included. Etag propagation therefore looks atomic to every caller:
// nobody can observe a document's new etag next to a stale ancestor etag.
type Database struct {
	Backend string             // Name of the backend, for reporting
	source  storage.DataSource // Serialized by mu
	store   kv.Store           // Record store of the kv backend, nil otherwise
	stats   OperationStats     // Updated atomically
	mu      sync.Mutex
}

var _ storage.DataSource = (*Database)(nil)

// OperationStats tracks operation counts
type OperationStats struct {
	Gets     uint64 `json:"gets"`     // Number of get operations
	Puts     uint64 `json:"puts"`     // Number of put operations
	Deletes  uint64 `json:"deletes"`  // Number of delete operations
	Failures uint64 `json:"failures"` // Operations that returned an error
}

// Info contains metadata about the database
type Info struct {
	Backend string         `json:"backend"`
	Ops     OperationStats `json:"operations"`
	Store   *kv.StoreStats `json:"store,omitempty"`
}

// New wraps source. backend names it in Info.
func New(backend string, source storage.DataSource) *Database {
	return &Database{
		Backend: backend,
		source:  source,
	}
}

// Get implements storage.DataSource.
func (d *Database) Get(p storage.ItemPath, ifMatch storage.Etag, ifNoneMatch []storage.Etag, withContent bool) (storage.Item, error) {
	atomic.AddUint64(&d.stats.Gets, 1)

	d.mu.Lock()
	defer d.mu.Unlock()

	item, err := d.source.Get(p, ifMatch, ifNoneMatch, withContent)
	d.observe("get", p, err)
	return item, err
}

// Put implements storage.DataSource.
func (d *Database) Put(p storage.ItemPath, ifMatch storage.Etag, ifNoneMatch []storage.Etag, doc *storage.Document) (storage.PutResult, error) {
	atomic.AddUint64(&d.stats.Puts, 1)

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.source.Put(p, ifMatch, ifNoneMatch, doc)
	d.observe("put", p, err)
	return res, err
}

// Delete implements storage.DataSource.
func (d *Database) Delete(p storage.ItemPath, ifMatch storage.Etag) (storage.Etag, error) {
	atomic.AddUint64(&d.stats.Deletes, 1)

	d.mu.Lock()
	defer d.mu.Unlock()

	etag, err := d.source.Delete(p, ifMatch)
	d.observe("delete", p, err)
	return etag, err
}

func (d *Database) observe(op string, p storage.ItemPath, err error) {
	if err == nil {
		return
	}
	atomic.AddUint64(&d.stats.Failures, 1)
	if errors.Is(err, storage.ErrBackendFailure) {
		glog.Errorf("[db]%s %q: %v", op, p, err)
		return
	}
	glog.V(1).Infof("[db]%s %q: %v", op, p, err)
}

// Stats returns current operation statistics
func (d *Database) Stats() OperationStats {
	return OperationStats{
		Gets:     atomic.LoadUint64(&d.stats.Gets),
		Puts:     atomic.LoadUint64(&d.stats.Puts),
		Deletes:  atomic.LoadUint64(&d.stats.Deletes),
		Failures: atomic.LoadUint64(&d.stats.Failures),
	}
}

// Info returns metadata about the database
func (d *Database) Info() Info {
	info := Info{
		Backend: d.Backend,
		Ops:     d.Stats(),
	}
	if d.store != nil {
		stats := d.store.Stats()
		info.Store = &stats
	}
	return info
}
