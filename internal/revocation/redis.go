package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborlight-org/tokend/internal/core"
)

const keyPrefix = "tokend:revoked:"

var _ core.RevocationList = (*RedisList)(nil)

// RedisList stores revoked token IDs in redis with a TTL equal to the
// token's remaining lifetime, so the list never outgrows the set of
// tokens that could still be presented.
type RedisList struct {
	client *redis.Client
}

func NewRedisList(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

func (l *RedisList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to track
		return nil
	}
	if err := l.client.Set(ctx, keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("writing revocation entry: %w", err)
	}
	return nil
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("reading revocation entry: %w", err)
	}
	return n > 0, nil
}
