// Package redis holds the Redis connection and the request rate counter.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const defaultTimeout = 5 * time.Second

type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect creates a client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.In("redis").With("addr", cfg.Addr).Wrapf(err, "ping")
	}

	return client, nil
}

// Pinger adapts a client to the readiness probe.
type Pinger struct {
	Client *redis.Client
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
