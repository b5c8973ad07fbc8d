// Package mongo holds the MongoDB adapters: connection setup and the
// account store.
package mongo

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultTimeout = 10 * time.Second
	appName        = "natours"
)

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect dials MongoDB, pings the primary and returns the client together
// with the configured database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, oops.In("mongo").With("database", cfg.Database).Wrapf(err, "connect")
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, oops.In("mongo").With("database", cfg.Database).Wrapf(err, "ping")
	}

	return client, client.Database(cfg.Database), nil
}

// Pinger adapts a client to the readiness probe.
type Pinger struct {
	Client *mongo.Client
}

func (p Pinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Client.Ping(ctx, readpref.Primary())
}
