// Package database puts a storage.DataSource behind the single lock the
// server shares between all requests.
//
// # Overview
//
// The storage engine is synchronous and unsynchronized. A Database owns one
// DataSource and one sync.Mutex; every Get, Put and Delete takes the lock
// for its whole duration. There is no reader/writer split: the recursive
// folder listing of a Get and the etag propagation walk of a Put or Delete
// both need a consistent tree, and a single exclusive lock gives that for
// free.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│              DATABASE               │
//	├─────────────────────────────────────┤
//	│  mu       sync.Mutex                │
//	│  source   storage.DataSource        │
//	│  stats    gets/puts/deletes/fails   │
//	└─────────────────────────────────────┘
//
// # Backends
//
// Open builds one of:
//   - memory: the in-memory tree, empty at startup
//   - folder: the on-disk tree under a data directory
//   - kv:     the flat key-value layout over an in-memory store
//
// # Statistics
//
// Operation counters are updated atomically before the lock is taken, so
// Stats never blocks behind a slow operation.
//
// # Throughput
//
// The folder backend performs blocking file I/O while the lock is held.
// Requests queue behind each other; correctness is unaffected.
package database
