package state

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Open returns the DB for backend. dataDir is used by the embedded stores,
// databaseURL by postgres.
func Open(ctx context.Context, backend, dataDir, databaseURL string) (DB, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryDB(), nil
	case BackendPebble:
		return NewPebbleDB(filepath.Join(dataDir, "pebble"))
	case BackendBadger:
		return NewBadgerDB(filepath.Join(dataDir, "badger"))
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires a database url")
		}
		return NewPostgresDB(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
