package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts requests per key in a fixed window:
// INCR key; PEXPIRE on the first hit. Both run in one script.
type FixedWindowLimiter struct {
	rdb *goredis.Client
}

var _ domain.RateLimiter = (*FixedWindowLimiter)(nil)

func NewFixedWindowLimiter(c *Client) *FixedWindowLimiter {
	if c == nil {
		return &FixedWindowLimiter{}
	}
	return &FixedWindowLimiter{rdb: c.rdb}
}

var fixedWindowScript = goredis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// AllowRequest fails open: a redis outage never blocks traffic, the error is
// returned for the caller to log.
func (l *FixedWindowLimiter) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || l.rdb == nil {
		return true, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	count, err := fixedWindowScript.Run(ctx, l.rdb, []string{key("ratelimit", ip)}, window.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("ratelimit redis eval: %w", err)
	}
	return count <= int64(limit), nil
}
