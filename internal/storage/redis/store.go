package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

const scanCount = 256

// Store implements storage.Store over a go-redis client.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

var _ storage.Store = (*Store)(nil)

// NewClient creates a Redis client from a URL (e.g., "redis://localhost:6379/0")
// and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Open connects to redisURL and returns a store namespaced by prefix.
func Open(ctx context.Context, redisURL, prefix string) (*Store, error) {
	rdb, err := NewClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return New(rdb, prefix), nil
}

// New wraps an existing client. The store takes ownership of rdb.
func New(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Load scans every key under the prefix.
func (s *Store) Load(ctx context.Context) (map[string][]byte, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}

	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		out[strings.TrimPrefix(keys[i], s.prefix)] = []byte(str)
	}
	return out, nil
}

// Apply writes the batch inside MULTI/EXEC.
func (s *Store) Apply(ctx context.Context, b storage.Batch) error {
	if b.Empty() {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(b.Deletes) > 0 {
			keys := make([]string, len(b.Deletes))
			for i, k := range b.Deletes {
				keys[i] = s.prefix + k
			}
			pipe.Del(ctx, keys...)
		}
		for k, v := range b.Puts {
			pipe.Set(ctx, s.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
