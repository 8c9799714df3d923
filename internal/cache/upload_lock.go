package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UploadLockCache guarantees at most one in-flight network attempt per
// entity. A periodic sweep and an immediate trigger racing on the same
// entity cannot both acquire the lock.
type UploadLockCache interface {
	Acquire(ctx context.Context, entityID string) (bool, error)
	Release(ctx context.Context, entityID string) error
}

type uploadLockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUploadLockCache creates a new upload lock cache
func NewUploadLockCache(client *redis.Client) UploadLockCache {
	return &uploadLockCache{
		client: client,
		ttl:    2 * time.Minute, // Safety net if a holder dies mid-attempt
	}
}

func (c *uploadLockCache) key(entityID string) string {
	return fmt.Sprintf("upload:lock:%s", entityID)
}

func (c *uploadLockCache) Acquire(ctx context.Context, entityID string) (bool, error) {
	return c.client.SetNX(ctx, c.key(entityID), 1, c.ttl).Result()
}

func (c *uploadLockCache) Release(ctx context.Context, entityID string) error {
	return c.client.Del(ctx, c.key(entityID)).Err()
}
