package database

import (
	"fmt"

	"github.com/dreamware/remotestore/internal/storage"
	"github.com/dreamware/remotestore/internal/storage/folder"
	"github.com/dreamware/remotestore/internal/storage/kv"
	"github.com/dreamware/remotestore/internal/storage/memory"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFolder = "folder"
	BackendKV     = "kv"
)

// Backends lists every name Open accepts.
var Backends = []string{BackendMemory, BackendFolder, BackendKV}

// Open builds the named backend and wraps it in a Database.
// dir is only used by the folder backend.
func Open(backend, dir string) (*Database, error) {
	var (
		source storage.DataSource
		store  kv.Store
		err    error
	)
	switch backend {
	case BackendMemory:
		source = memory.NewDataSource()
	case BackendFolder:
		if dir == "" {
			return nil, fmt.Errorf("backend %q needs a data directory", backend)
		}
		source, err = folder.NewDataSource(dir)
	case BackendKV:
		store = kv.NewMemoryStore()
		var b *kv.Backend
		if b, err = kv.New(store); err == nil {
			source = storage.NewEngine(b)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", backend, err)
	}
	db := New(backend, source)
	db.store = store
	return db, nil
}
