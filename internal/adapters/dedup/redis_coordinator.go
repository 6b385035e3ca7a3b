// Package dedup implements ports.DedupCoordinator over Redis: a claim lock
// that flags duplicate in-flight queries for observability. It does not
// coalesce the underlying work — every caller, winner or not, still
// performs its own upstream walk.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockTTL bounds how long a claimed (name, qtype) pair stays locked if the
// owning worker dies before calling Unlock. It is not an answer TTL — the
// coordinator never stores a response, only a claim.
const lockTTL = 5 * time.Second

// RedisCoordinator implements ports.DedupCoordinator. It is a claim
// mechanism only: a SETNX-backed mutex per (name, qtype), never a place
// where a resolved answer is written back for later reads.
type RedisCoordinator struct {
	client *redis.Client
}

// NewRedisCoordinator connects to a single Redis instance at addr.
func NewRedisCoordinator(addr, password string, db int) *RedisCoordinator {
	return &RedisCoordinator{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func lockKey(name, qtype string) string {
	return "resolverd:inflight:" + qtype + ":" + name
}

// Lock claims (name, qtype) for lockTTL. ok is false, err nil when another
// worker already owns the claim.
func (c *RedisCoordinator) Lock(ctx context.Context, name, qtype string) (bool, error) {
	ok, err := c.client.SetNX(ctx, lockKey(name, qtype), "1", lockTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Unlock releases a claim taken by Lock. Safe to call even if the lock
// already expired.
func (c *RedisCoordinator) Unlock(ctx context.Context, name, qtype string) error {
	return c.client.Del(ctx, lockKey(name, qtype)).Err()
}

func (c *RedisCoordinator) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCoordinator) Close() error {
	return c.client.Close()
}
