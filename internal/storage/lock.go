package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// StateDir holds murmur's own files inside a collection. Scan skips it.
const StateDir = ".murmur"

const lockRetry = 50 * time.Millisecond

// Lock takes the collection's write lock, shared by every murmur process
// writing into this root. It blocks until the lock is free or ctx ends.
func (f *FS) Lock(ctx context.Context) (unlock func() error, err error) {
	dir := filepath.Join(f.root, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create state dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, "write.lock"))
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("storage: acquire write lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("storage: write lock busy: %s", fl.Path())
	}
	return fl.Unlock, nil
}
