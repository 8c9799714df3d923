package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache mirrors the live cursor of each interview session so a
// restarted process can resume where the interviewer left off.
type SessionCache interface {
	SetCursor(ctx context.Context, surveyID string, index int) error
	GetCursor(ctx context.Context, surveyID string) (int, bool, error)
	Delete(ctx context.Context, surveyID string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a new session cache
func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    24 * time.Hour, // Abandoned sessions expire after 24h
	}
}

func (c *sessionCache) key(surveyID string) string {
	return fmt.Sprintf("session:%s:cursor", surveyID)
}

func (c *sessionCache) SetCursor(ctx context.Context, surveyID string, index int) error {
	return c.client.Set(ctx, c.key(surveyID), index, c.ttl).Err()
}

func (c *sessionCache) GetCursor(ctx context.Context, surveyID string) (int, bool, error) {
	val, err := c.client.Get(ctx, c.key(surveyID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	index, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return index, true, nil
}

func (c *sessionCache) Delete(ctx context.Context, surveyID string) error {
	return c.client.Del(ctx, c.key(surveyID)).Err()
}
