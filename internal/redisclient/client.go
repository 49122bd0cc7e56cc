package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb       *redis.Client
	statusTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, statusTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, statusTTL: statusTTL}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func statusKey(checkoutRequestID string) string {
	return fmt.Sprintf("payment_status:%s", checkoutRequestID)
}

// GetPaymentStatus returns the cached status for a checkout request ID.
// An empty string means cache miss.
func (c *Client) GetPaymentStatus(ctx context.Context, checkoutRequestID string) (string, error) {
	status, err := c.rdb.Get(ctx, statusKey(checkoutRequestID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// SetPaymentStatus caches the status for a checkout request ID with the
// configured TTL. Called after every successful status mutation so the
// polling endpoint reads fresh values without touching Postgres.
func (c *Client) SetPaymentStatus(ctx context.Context, checkoutRequestID, status string) error {
	return c.rdb.Set(ctx, statusKey(checkoutRequestID), status, c.statusTTL).Err()
}

// InvalidatePaymentStatus drops the cached status for a checkout request ID
func (c *Client) InvalidatePaymentStatus(ctx context.Context, checkoutRequestID string) error {
	return c.rdb.Del(ctx, statusKey(checkoutRequestID)).Err()
}
