package revocation

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryListRevoke(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryList()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Error("unknown jti reported revoked")
	}

	if err := list.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatal(err)
	}
	revoked, err = list.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Error("revoked jti not reported revoked")
	}
}

func TestInMemoryListExpiry(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryList()

	// negative ttl: the token already expired, the entry is moot
	if err := list.Revoke(ctx, "jti-old", -time.Minute); err != nil {
		t.Fatal(err)
	}
	revoked, err := list.IsRevoked(ctx, "jti-old")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Error("entry past its retain-until still reported revoked")
	}

	dropped, err := list.Compact(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Errorf("Compact dropped %d entries, want 1", dropped)
	}
}
