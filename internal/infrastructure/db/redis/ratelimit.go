package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// WindowCounter counts hits per key in fixed windows.
// Key format: ratelimit:<key>:<window_start_unix>
type WindowCounter struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

func NewWindowCounter(client *redis.Client, window time.Duration) *WindowCounter {
	return &WindowCounter{client: client, window: window, now: time.Now}
}

// Hit records one request for key and returns the count in the current
// window together with the time the window resets.
func (c *WindowCounter) Hit(ctx context.Context, key string) (int64, time.Time, error) {
	start := c.now().Truncate(c.window)
	reset := start.Add(c.window)
	k := c.key(key, start)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, c.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, reset, oops.In("rate_limit").With("key", key).Wrapf(err, "count hit")
	}
	return incr.Val(), reset, nil
}

func (c *WindowCounter) key(key string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())
}
