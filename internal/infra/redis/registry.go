package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultReservationTTL bounds how long a crashed holder can block a target.
const DefaultReservationTTL = 2 * time.Minute

// releaseScript deletes the key only while it still names the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Registry holds one pending action per target across service instances.
type Registry struct {
	client *Client
	ttl    time.Duration
}

func NewRegistry(client *Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &Registry{client: client, ttl: ttl}
}

// Reserve attempts to claim target for actionID.
func (r *Registry) Reserve(ctx context.Context, target, actionID string) (bool, error) {
	ok, err := r.client.rdb.SetNX(ctx, r.client.pendingKey(target), actionID, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Release frees target if actionID still holds it.
func (r *Registry) Release(ctx context.Context, target, actionID string) error {
	if err := releaseScript.Run(ctx, r.client.rdb, []string{r.client.pendingKey(target)}, actionID).Err(); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}

// Holder returns the action holding target, empty when free.
func (r *Registry) Holder(ctx context.Context, target string) (string, error) {
	val, err := r.client.rdb.Get(ctx, r.client.pendingKey(target)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}
