// Package cache implements the TTL key-value store used for history
// responses: an in-memory variant with lazy eviction, and a Redis-backed
// variant for multi-instance deployments.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a string-keyed TTL store. Get reports absence both for a
// missing key and an expired one.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Memory is an in-process TTL cache guarded by a mutex, with lazy eviction
// on Get.
type Memory struct {
	mu    sync.Mutex
	store map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	expireAt time.Time
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{store: make(map[string]memoryEntry)}
}

// Get unmarshals the cached value for key into dest, returning false if the
// key is absent or has expired.
func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	entry, ok := m.store[key]
	if ok && time.Now().After(entry.expireAt) {
		delete(m.store, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dest); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with the given TTL, serialized as JSON.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.store[key] = memoryEntry{value: payload, expireAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

var _ Cache = (*Memory)(nil)

// Redis is a network-backed TTL cache, values serialized as compact JSON.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to url and pings it, surfacing a connection failure as
// a fatal configuration error immediately rather than at first use — the
// same "bubble misconfiguration to startup" contract as the Python
// gateway's redis driver-missing RuntimeError.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis unreachable: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get unmarshals the cached value for key into dest, returning false if
// absent or expired (Redis expires keys itself via SETEX).
func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: redis get %q: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with the given TTL via SETEX.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if err := r.client.SetEx(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis setex %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (r *Redis) Close() error { return r.client.Close() }

var _ Cache = (*Redis)(nil)
