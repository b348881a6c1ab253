// Package slot provides single-value storage backends for persisted UI state.
//
// A slot holds exactly one string under one fixed key. The page-state cache
// writes its whole encoded envelope into a slot and reads it back on start;
// nothing else reads or writes that key.
//
// Backends:
//   - File: <dir>/<key>.state, written atomically under a gofrs/flock lock so
//     two client processes never interleave writes.
//   - SQLite: one row of a kv table in a modernc.org/sqlite database.
//   - Memory: process-local, used by tests and as a fallback.
package slot

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Slot is a single string value under one key.
type Slot interface {
	Read() (string, bool, error)
	Write(value string) error
	Remove() error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the slot for key on the named backend, rooted at dir.
func Open(backend, dir, key string) (Slot, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("slot key is empty")
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFile(dir, key)
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "state.db"), key)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
