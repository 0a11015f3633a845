package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// MongoConfig configures ConnectMongo.
type MongoConfig struct {
	URL            string
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

func (c MongoConfig) withDefaults() MongoConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
	return c
}

// ConnectMongo connects and pings, retrying up to RetryAttempts times.
func ConnectMongo(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*mongo.Client, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			if err = client.Ping(ctx, readpref.Primary()); err == nil {
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err
		logger.Warn("MongoDB connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == cfg.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrFailedToConnect, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("%w: mongo: %v", ErrFailedToConnect, lastErr)
}

// MongoHealthcheck pings the primary.
func MongoHealthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("%w: mongo: %v", ErrHealthcheckFailed, err)
		}
		return nil
	}
}
