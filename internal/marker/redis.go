package marker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "planner:marker:"

// Redis stores markers as expiring keys. A zero ttl keeps them forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return NewRedis(client, ttl), nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, redisPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Set(ctx context.Context, key string) error {
	return r.client.Set(ctx, redisPrefix+key, "true", r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
