package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harborlight-org/tokend/internal/core"
)

var _ core.TokenStore = (*InMemoryTokenStore)(nil)

// InMemoryTokenStore keeps issued-token metadata per process. It backs
// the admin "active tokens" view and jti-based revocation.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]core.TokenMetadata // jti -> metadata
	order  []string                      // insertion order for stable listings
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		tokens: make(map[string]core.TokenMetadata),
	}
}

func (s *InMemoryTokenStore) Save(_ context.Context, meta core.TokenMetadata) error {
	if meta.ID == "" {
		return fmt.Errorf("token metadata missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[meta.ID]; !exists {
		s.order = append(s.order, meta.ID)
	}
	s.tokens[meta.ID] = meta
	return nil
}

func (s *InMemoryTokenStore) ListActive(_ context.Context) ([]core.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]core.TokenMetadata, 0)
	now := time.Now()

	for _, jti := range s.order {
		t, ok := s.tokens[jti]
		if !ok {
			continue
		}
		if t.ExpiresAt.After(now) && !t.Revoked {
			active = append(active, t)
		}
	}
	return active, nil
}

func (s *InMemoryTokenStore) FindByID(_ context.Context, jti string) (*core.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[jti]
	if !ok {
		return nil, fmt.Errorf("token %q not found", jti)
	}
	return &t, nil
}

func (s *InMemoryTokenStore) SetRevoked(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[jti]
	if !ok {
		return fmt.Errorf("token %q not found", jti)
	}
	t.Revoked = true
	s.tokens[jti] = t
	return nil
}

func (s *InMemoryTokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var kept []string
	var deleted int64

	for _, jti := range s.order {
		t, ok := s.tokens[jti]
		if !ok {
			continue
		}
		if t.ExpiresAt.After(now) {
			kept = append(kept, jti)
		} else {
			delete(s.tokens, jti)
			deleted++
		}
	}

	s.order = kept
	return deleted, nil
}
