// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a Store that has no entry for a key.
var ErrCacheMiss = stderrors.New("cache miss")

// Store is the key-value backend of Cached.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to the redis URL and pings it.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error { return s.rdb.Close() }

const cachePrefix = "sabia:search:"

// Cached memoizes a Searcher. Cache failures are logged and bypassed; they
// never fail a search.
type Cached struct {
	next   Searcher
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with store.
func NewCached(next Searcher, store Store, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

// Search implements Searcher.
func (c *Cached) Search(ctx context.Context, query string) ([]Result, error) {
	key := c.key(query)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var results []Result
		if jerr := json.Unmarshal([]byte(raw), &results); jerr == nil {
			return results, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt search cache entry", slog.String("key", key))
	case !stderrors.Is(err, ErrCacheMiss):
		c.logger.WarnContext(ctx, "search cache read failed", slog.String("error", err.Error()))
	}

	results, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(results); jerr == nil {
		if serr := c.store.Set(ctx, key, string(data), c.ttl); serr != nil {
			c.logger.WarnContext(ctx, "search cache write failed", slog.String("error", serr.Error()))
		}
	}
	return results, nil
}

func (c *Cached) key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return cachePrefix + strings.ToLower(c.next.Name()) + ":" + hex.EncodeToString(sum[:])
}
