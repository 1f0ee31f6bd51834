package store

import (
	"context"
	"testing"
	"time"

	"github.com/harborlight-org/tokend/internal/core"
)

func meta(jti string, expiresIn time.Duration) core.TokenMetadata {
	return core.TokenMetadata{
		ID:        jti,
		Subject:   "user-123",
		Scope:     core.ScopeAPI,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(expiresIn),
	}
}

func TestInMemoryTokenStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryTokenStore()

	if err := s.Save(ctx, meta("jti-1", time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, meta("jti-2", -time.Hour)); err != nil {
		t.Fatal(err)
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "jti-1" {
		t.Errorf("ListActive = %+v, want only jti-1", active)
	}

	found, err := s.FindByID(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if found.Subject != "user-123" {
		t.Errorf("subject = %q", found.Subject)
	}

	if err := s.SetRevoked(ctx, "jti-1"); err != nil {
		t.Fatal(err)
	}
	active, err = s.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("revoked token still listed active: %+v", active)
	}

	deleted, err := s.DeleteExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired = %d, want 1", deleted)
	}
	if _, err := s.FindByID(ctx, "jti-2"); err == nil {
		t.Error("expired token still findable after sweep")
	}
}

func TestInMemoryTokenStoreRejectsEmptyID(t *testing.T) {
	if err := NewInMemoryTokenStore().Save(context.Background(), core.TokenMetadata{}); err == nil {
		t.Error("expected error for metadata without id")
	}
}
