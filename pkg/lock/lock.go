// Package lock guards batch runs against concurrent execution over the
// same cohort. The local backend covers a single host; the Redis backend
// extends the same contract across hosts sharing one cache directory.
package lock

import (
	"context"
	"sync"
	"time"
)

// Service is a TTL-bounded advisory lock.
type Service interface {
	// TryLock acquires key for ttl; false means another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// Local implements Service in-process.
type Local struct {
	mu    sync.Mutex
	holds map[string]time.Time // key -> expiry
}

// NewLocal creates an in-process lock service.
func NewLocal() *Local {
	return &Local{holds: make(map[string]time.Time)}
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.holds[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.holds[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *Local) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holds, key)
	return nil
}

func (l *Local) Close() error { return nil }
