package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a polled key never appeared.
var ErrCacheMiss = errors.New("cache miss")

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		// Close the client if ping fails
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	fmt.Println("Successfully connected to Redis!")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	fmt.Println("Redis connection closed.")
	return nil
}

// TakeJSON polls key up to attempts times, interval apart, and decodes the
// first value found into dest. The key is deleted once read.
func TakeJSON(ctx context.Context, rdb *redis.Client, key string, attempts int, interval time.Duration, dest interface{}) error {
	for i := 0; i < attempts; i++ {
		raw, err := rdb.Get(ctx, key).Result()
		if err == nil {
			rdb.Del(ctx, key)
			if err := json.Unmarshal([]byte(raw), dest); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%s: %w", key, ErrCacheMiss)
}
