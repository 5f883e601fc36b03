package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

const (
	catalogKey = "catalog:active"
	catalogTTL = 5 * time.Minute
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCatalog returns the cached active catalog, or (nil, nil) on a miss
func (c *Client) GetCatalog(ctx context.Context) ([]models.Product, error) {
	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog cache read failed: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog cache decode failed: %w", err)
	}
	return products, nil
}

// SetCatalog caches the active catalog with a short TTL
func (c *Client) SetCatalog(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("catalog cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, catalogKey, data, catalogTTL).Err()
}

// InvalidateCatalog drops the cached catalog. Called after every catalog
// mutation so readers never see a stale listing past the mutation.
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	return c.rdb.Del(ctx, catalogKey).Err()
}
