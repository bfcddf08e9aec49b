package notifications

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "unread:"

// UnreadCache caches per-user unread counts in redis with a short TTL. A
// miss or redis error falls through to the database; the cache is never
// authoritative.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUnreadCache(client *redis.Client, ttl time.Duration) *UnreadCache {
	return &UnreadCache{client: client, ttl: ttl}
}

func (c *UnreadCache) Get(ctx context.Context, userID string) (int, bool) {
	val, err := c.client.Get(ctx, unreadKeyPrefix+userID).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (c *UnreadCache) Set(ctx context.Context, userID string, count int) {
	c.client.Set(ctx, unreadKeyPrefix+userID, strconv.Itoa(count), c.ttl)
}

func (c *UnreadCache) Invalidate(ctx context.Context, userID string) {
	c.client.Del(ctx, unreadKeyPrefix+userID)
}

// InvalidateAll drops every cached unread count. Used after a role or
// global broadcast, where any user's count may have changed.
func (c *UnreadCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, unreadKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
