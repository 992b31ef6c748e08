// Package store provides the flat key-value persistence behind the credential lifecycle.
//
// Three drivers satisfy [Store]: [Bolt] (a single bbolt file, the default), [SQLite] (the kv table created by
// the shared migrations) and [Memory] (process lifetime only, used by tests and the "memory" driver).
//
// Values are opaque strings. Callers own key naming.
package store

import (
	"fmt"

	"github.com/desertthunder/spotui/internal/shared"
)

// Store is a string key-value store. Get reports whether the key was present.
// Delete ignores keys that don't exist.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Bolt)(nil)
	_ Store = (*SQLite)(nil)
)

// Open returns the driver named in config.
func Open(storage shared.StorageConfig, database shared.DatabaseConfig) (Store, error) {
	switch storage.Driver {
	case "memory":
		return NewMemory(), nil
	case "bolt":
		return OpenBolt(storage.Path)
	case "sqlite":
		return OpenSQLite(storage.Path, database.MaxOpenConns, database.MaxIdleConns)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", shared.ErrInvalidConfig, storage.Driver)
	}
}
