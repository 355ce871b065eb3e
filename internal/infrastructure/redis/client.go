// Package redis holds the optional shared state of jam-service: the discovery
// snapshot cache, the criteria read-through cache and the per-IP limiter.
// Every key lives under the "jam:" namespace.
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const keyspace = "jam"

// key joins parts under the service keyspace, e.g. key("criteria", id).
func key(parts ...string) string {
	return keyspace + ":" + strings.Join(parts, ":")
}

type Client struct {
	rdb *goredis.Client
}

// New builds a lazily connecting client. Command timeouts are short because
// every caller treats redis as optional and falls back to the store.
func New(addr, password string, db int) *Client {
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		}),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := c.rdb.Ping(ctx).Err()
	metrics.SetDependencyHealth("redis", err == nil)
	return err
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
