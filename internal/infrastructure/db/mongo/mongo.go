// Package mongo implements the credential and revocation stores on MongoDB.
package mongo

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 5
)

// Config captures the settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	Attempts uint64
}

// Connect establishes a MongoDB client and returns it with the selected
// database. The ping is retried with exponential backoff while the server
// elects a primary.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, nil, oops.Code("MONGO_CONFIG_INVALID").Wrap(err)
	}

	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, oops.Code("MONGO_CONNECT_FAILED").With("attempts", attempts).Wrap(err)
	}

	return client, client.Database(cfg.Database), nil
}
