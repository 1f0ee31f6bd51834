// Package revocation tracks revoked token IDs until their natural
// expiry. The redis-backed list is shared across instances; the
// in-memory list is per-process and only suitable for dev and tests.
package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/harborlight-org/tokend/internal/core"
)

var _ core.RevocationList = (*InMemoryList)(nil)

type InMemoryList struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti -> retain-until
}

func NewInMemoryList() *InMemoryList {
	return &InMemoryList{
		entries: make(map[string]time.Time),
	}
}

func (l *InMemoryList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[jti] = time.Now().Add(ttl)
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	until, ok := l.entries[jti]
	if !ok {
		return false, nil
	}
	// entries past their retain-until would have expired on their own
	return time.Now().Before(until), nil
}

// Compact drops entries whose tokens have expired anyway. Run
// periodically by the task manager.
func (l *InMemoryList) Compact(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var dropped int64
	for jti, until := range l.entries {
		if now.After(until) {
			delete(l.entries, jti)
			dropped++
		}
	}
	return dropped, nil
}
