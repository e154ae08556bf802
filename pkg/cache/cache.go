package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryPrefix = "wabarelay:delivery:"

type Cache struct {
	client *redis.Client
}

func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

// Claim records a webhook delivery id. It returns false when the id was
// already claimed within ttl.
func (c *Cache) Claim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, deliveryPrefix+deliveryID, 1, ttl).Result()
}

// Release forgets a claim so a redelivery is processed again.
func (c *Cache) Release(ctx context.Context, deliveryID string) error {
	return c.client.Del(ctx, deliveryPrefix+deliveryID).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
