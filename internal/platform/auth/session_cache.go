package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedSession is the session state kept in the cache. Only active
// sessions of active users are cached.
type CachedSession struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCache fronts the session table for per-request authentication.
type SessionCache interface {
	Get(ctx context.Context, token string) (*CachedSession, bool)
	Set(ctx context.Context, token string, s *CachedSession)
	Delete(ctx context.Context, token string)
}

// NopSessionCache never hits. Used when REDIS_URL is not configured.
type NopSessionCache struct{}

func (NopSessionCache) Get(context.Context, string) (*CachedSession, bool) { return nil, false }
func (NopSessionCache) Set(context.Context, string, *CachedSession)        {}
func (NopSessionCache) Delete(context.Context, string)                     {}

// RedisSessionCache stores sessions under "session:<token>". Errors are
// logged and treated as misses so Redis outages fall back to the database.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisSessionCache connects to redisURL and verifies it with a PING.
func NewRedisSessionCache(ctx context.Context, redisURL string, ttl time.Duration, logger zerolog.Logger) (*RedisSessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSessionCache{client: client, ttl: ttl, logger: logger, now: time.Now}, nil
}

func sessionKey(token string) string { return "session:" + token }

func (r *RedisSessionCache) Get(ctx context.Context, token string) (*CachedSession, bool) {
	raw, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Msg("session cache get failed")
		}
		return nil, false
	}
	var s CachedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.Warn().Err(err).Msg("session cache entry corrupt")
		return nil, false
	}
	if !s.ExpiresAt.After(r.now()) {
		return nil, false
	}
	return &s, true
}

// Set caches s for the configured TTL, but never past the session's expiry.
func (r *RedisSessionCache) Set(ctx context.Context, token string, s *CachedSession) {
	ttl := r.ttl
	if remaining := s.ExpiresAt.Sub(r.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, sessionKey(token), raw, ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("session cache set failed")
	}
}

func (r *RedisSessionCache) Delete(ctx context.Context, token string) {
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("session cache delete failed")
	}
}

func (r *RedisSessionCache) Close() error {
	return r.client.Close()
}
