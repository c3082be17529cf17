// Package lockfile provides mutual exclusion over named resources using
// exclusive-create lock files with stale-lock eviction. The lock is
// cooperative and assumes single-node storage; it is not a fencing token.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v5"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrAlreadyLocked = errors.New("resource already locked")
	ErrLockTimeout   = errors.New("could not acquire lock")
)

const (
	DefaultStaleAfter      = 5 * time.Second
	defaultMaxTries        = uint(10)
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxInterval     = time.Second
)

type Manager struct {
	dir        string
	staleAfter time.Duration

	// Retry tuning, overridable before first use.
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func New(dir string, staleAfter time.Duration) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Manager{
		dir:             dir,
		staleAfter:      staleAfter,
		MaxTries:        defaultMaxTries,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}
}

func (m *Manager) path(resource string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.lock", resource))
}

// Acquire takes the lock for resource, retrying with jittered exponential
// backoff while it is held elsewhere. A lock file older than the staleness
// threshold is evicted on the assumption that its holder crashed. Returns
// ErrLockTimeout once retries are exhausted.
func (m *Manager) Acquire(ctx context.Context, resource string) error {
	if err := os.MkdirAll(m.dir, os.ModePerm); err != nil {
		return err
	}

	lockPath := m.path(resource)
	operation := func() (struct{}, error) {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return struct{}{}, f.Close()
		}
		if !os.IsExist(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > m.staleAfter {
			// Holder assumed crashed; evict and let the next attempt race
			// for the fresh lock.
			_ = os.Remove(lockPath)
		}
		return struct{}{}, ErrAlreadyLocked
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.InitialInterval
	bo.MaxInterval = m.MaxInterval

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(m.MaxTries))
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, resource)
		}
		return err
	}
	return nil
}

// Release removes the lock file. Releasing an already-released lock is a
// no-op so it is safe to call from defer on every path.
func (m *Manager) Release(resource string) error {
	err := os.Remove(m.path(resource))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
