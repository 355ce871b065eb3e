package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	versionKey      = keyspace + ":discovery:version"
	snapshotKeyPref = keyspace + ":discovery:events:v"
)

// DiscoveryCache stores active-event snapshots under the version they were
// read at. Writers bump the version after commit, which orphans every older
// snapshot; orphans expire by TTL.
type DiscoveryCache struct {
	rdb *goredis.Client
}

var _ domain.DiscoveryCache = (*DiscoveryCache)(nil)

func NewDiscoveryCache(c *Client) *DiscoveryCache {
	return &DiscoveryCache{rdb: c.rdb}
}

func snapshotKey(version int64) string {
	return snapshotKeyPref + strconv.FormatInt(version, 10)
}

// Version returns 0 when no write has happened yet.
func (c *DiscoveryCache) Version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.Transient("discovery cache version", err)
	}
	return v, nil
}

func (c *DiscoveryCache) BumpVersion(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return domain.Transient("discovery cache bump", err)
	}
	return nil
}

func (c *DiscoveryCache) GetEvents(ctx context.Context, version int64) ([]domain.Event, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(version)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, domain.Transient("discovery cache get", err)
	}
	var events []domain.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		// a corrupt snapshot is treated as absent and overwritten on refill
		return nil, domain.ErrCacheMiss
	}
	return events, nil
}

func (c *DiscoveryCache) SetEvents(ctx context.Context, version int64, events []domain.Event, ttl time.Duration) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, snapshotKey(version), raw, ttl).Err(); err != nil {
		return domain.Transient("discovery cache set", err)
	}
	return nil
}
