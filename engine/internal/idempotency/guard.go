package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "clearline:batch:"

// Guard suppresses duplicate batch submissions. A batch ID is claimed with
// SETNX and held for a TTL; a second submission inside the window is
// rejected before any pipeline work runs. Release frees the claim when a
// run fails so the producer can retry.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuard(redisURL string, ttl time.Duration) (*Guard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{client: client, ttl: ttl}, nil
}

// NewGuardWithClient is used by tests to wire an existing client.
func NewGuardWithClient(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{client: client, ttl: ttl}
}

// Claim returns true when the caller is first to see this batch ID.
func (g *Guard) Claim(ctx context.Context, batchID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+batchID, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim batch %s: %w", batchID, err)
	}
	return ok, nil
}

// Release drops the claim so a failed batch can be resubmitted.
func (g *Guard) Release(ctx context.Context, batchID string) error {
	if err := g.client.Del(ctx, keyPrefix+batchID).Err(); err != nil {
		return fmt.Errorf("failed to release batch %s: %w", batchID, err)
	}
	return nil
}

func (g *Guard) Close() error {
	return g.client.Close()
}
