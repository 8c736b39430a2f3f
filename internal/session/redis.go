package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tmphost/internal/core"
)

const (
	sessionKeyPrefix  = "tmphost:session:"
	overrideKeyPrefix = "tmphost:override:"

	// DefaultRedisTTL expires idle sessions so abandoned
	// accumulations do not pile up across deployments.
	DefaultRedisTTL = 24 * time.Hour
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the connection URL (e.g. "redis://localhost:6379/0").
	URL string
	// TTL is the idle expiry for session records (defaults to 24h).
	TTL time.Duration
}

// RedisStore implements Store on Redis, for deployments running more
// than one bot instance behind the same content store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed session store.
func NewRedis(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}

	slog.Info("redis session store connected", "ttl", ttl)

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get returns the session for an identity, zero-valued if none.
func (s *RedisStore) Get(ctx context.Context, id core.Identity) (State, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+string(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse session from redis: %w", err)
	}
	return st, nil
}

// Set replaces the session for an identity.
func (s *RedisStore) Set(ctx context.Context, id core.Identity, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+string(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

// SetOverride records a single-use extension override.
func (s *RedisStore) SetOverride(ctx context.Context, id core.Identity, ext string) error {
	if err := s.client.Set(ctx, overrideKeyPrefix+string(id), ext, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set override in redis: %w", err)
	}
	return nil
}

// ConsumeOverride returns and clears the pending override. GETDEL
// keeps read-and-clear atomic across instances.
func (s *RedisStore) ConsumeOverride(ctx context.Context, id core.Identity) (string, bool, error) {
	ext, err := s.client.GetDel(ctx, overrideKeyPrefix+string(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to consume override from redis: %w", err)
	}
	return ext, true, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
