package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyGuard claims request keys with SETNX so a replayed submission is
// rejected instead of charged twice.
// Key format: idem:<account_id>:<idempotency_key>
type IdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyGuard wraps the given Redis client. A zero ttl uses 24h.
func NewIdempotencyGuard(client *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = idempotencyTTL
	}
	return &IdempotencyGuard{client: client, ttl: ttl}
}

// Claim returns false when the key is already held.
func (g *IdempotencyGuard) Claim(ctx context.Context, accountID, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, idempotencyKey(accountID, key), time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Release frees a key so the client may retry a request that failed entirely.
func (g *IdempotencyGuard) Release(ctx context.Context, accountID, key string) error {
	if err := g.client.Del(ctx, idempotencyKey(accountID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func idempotencyKey(accountID, key string) string {
	return fmt.Sprintf("idem:%s:%s", accountID, key)
}
