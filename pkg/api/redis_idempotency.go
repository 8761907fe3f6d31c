package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore provides durable idempotency enforcement backed by
// Redis, surviving process restarts and shared across replicas.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store.
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return "idempotency:" + key
}

// Check returns a cached response if the idempotency key was seen before.
// TTL expiry is delegated to Redis.
func (s *RedisIdempotencyStore) Check(key string) (*cachedResponse, bool) {
	raw, err := s.client.Get(context.Background(), redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

// Set stores an idempotency key and its response with the configured TTL.
func (s *RedisIdempotencyStore) Set(key string, statusCode int, headers http.Header, body []byte) {
	raw, err := json.Marshal(&cachedResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		CachedAt:   time.Now(),
	})
	if err != nil {
		slog.Error("idempotency: marshal cached response", "key", key, "error", err)
		return
	}
	// Best-effort enrichment; a write failure only loses replay, not safety.
	if err := s.client.Set(context.Background(), redisKey(key), raw, s.ttl).Err(); err != nil {
		slog.Error("idempotency: failed to set key", "key", key, "error", err)
	}
}
