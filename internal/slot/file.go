package slot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// File stores the value in <dir>/<key>.state.
type File struct {
	mu       sync.Mutex
	path     string
	lockPath string
	lock     *flock.Flock
}

// NewFile creates dir if needed and returns the file slot for key.
func NewFile(dir, key string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(dir, key+".state")
	lockPath := path + ".lock"
	return &File{
		path:     path,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Path returns the file holding the value.
func (f *File) Path() string {
	return f.path
}

// Read returns the stored value; a missing file is not an error.
func (f *File) Read() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read state file: %w", err)
	}
	return string(data), true, nil
}

// Write replaces the value via a temp file and rename.
func (f *File) Write(value string) error {
	return f.locked(func() error {
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
			return fmt.Errorf("write temp state file: %w", err)
		}
		if err := os.Rename(tmp, f.path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename state file: %w", err)
		}
		return nil
	})
}

// Remove deletes the value. Removing a missing value is a no-op.
func (f *File) Remove() error {
	return f.locked(func() error {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove state file: %w", err)
		}
		return nil
	})
}

// Close releases nothing; the lock is only held during writes.
func (f *File) Close() error {
	return nil
}

func (f *File) locked(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}
