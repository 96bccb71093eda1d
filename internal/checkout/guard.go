package checkout

import (
	"context"
	"errors"
	"time"

	redisclient "github.com/foodsearch/storefront/pkg/redis"
)

// submitLockTTL bounds how long a crashed process can hold the submit lock.
const submitLockTTL = 2 * time.Minute

// RedisSubmitGuard serializes order submissions through a redis lock slot,
// so the one-submission-at-a-time rule survives process restarts.
type RedisSubmitGuard struct {
	client *redisclient.Client
}

// NewRedisSubmitGuard wires the guard onto the shared redis client.
func NewRedisSubmitGuard(client *redisclient.Client) (*RedisSubmitGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisSubmitGuard{client: client}, nil
}

// Acquire claims the lock for the given attempt token. False means another
// submission already holds it.
func (g *RedisSubmitGuard) Acquire(ctx context.Context, attemptID string) (bool, error) {
	return g.client.SetNX(ctx, g.client.SubmitLockKey(), attemptID, submitLockTTL)
}

// Release frees the lock once the attempt's outcome is committed.
func (g *RedisSubmitGuard) Release(ctx context.Context, attemptID string) error {
	return g.client.Del(ctx, g.client.SubmitLockKey())
}
