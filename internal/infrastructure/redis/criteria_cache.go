package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// CachedStore decorates a domain.Store with a read-through cache for saved
// criteria. Every other method is delegated untouched.
//   - read path: Redis -> store fallback -> Redis set
//   - write path: store -> Redis set (best effort)
type CachedStore struct {
	domain.Store
	rdb     *goredis.Client
	ttl     time.Duration
	keyPref string
}

// noSnapshot marks a user known to have no saved criteria.
const noSnapshot = "null"

func NewCachedStore(inner domain.Store, client *Client, ttl time.Duration) *CachedStore {
	var rdb *goredis.Client
	if client != nil {
		rdb = client.rdb
	}
	return &CachedStore{Store: inner, rdb: rdb, ttl: ttl, keyPref: key("criteria") + ":"}
}

func (c *CachedStore) key(userID string) string {
	return c.keyPref + userID
}

func (c *CachedStore) LoadCriteria(ctx context.Context, userID string) (*domain.FilterCriteria, error) {
	if c.rdb != nil {
		if s, err := c.rdb.Get(ctx, c.key(userID)).Result(); err == nil {
			if s == noSnapshot {
				return nil, nil
			}
			var cached domain.FilterCriteria
			if json.Unmarshal([]byte(s), &cached) == nil {
				return &cached, nil
			}
		}
	}

	crit, err := c.Store.LoadCriteria(ctx, userID)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		val := noSnapshot
		if crit != nil {
			if raw, err := json.Marshal(crit); err == nil {
				val = string(raw)
			}
		}
		_ = c.rdb.Set(ctx, c.key(userID), val, c.ttl).Err()
	}
	return crit, nil
}

func (c *CachedStore) SaveCriteria(ctx context.Context, userID string, crit domain.FilterCriteria) error {
	if err := c.Store.SaveCriteria(ctx, userID, crit); err != nil {
		return err
	}
	if c.rdb != nil {
		if raw, err := json.Marshal(crit); err == nil {
			if err := c.rdb.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
				// SET failed; drop the entry so the next read goes to the store
				_ = c.rdb.Del(ctx, c.key(userID)).Err()
			}
		}
	}
	return nil
}
