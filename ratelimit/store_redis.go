package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the key's counter and starts its window TTL on
// first hit, atomically.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStore is a CounterStore backed by Redis, for gateways running as
// multiple processes. Window expiry uses native key TTLs, so counters
// need no janitor.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key namespace. Default: "gateway:ratelimit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "gateway:ratelimit",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Hit implements CounterStore.
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := hitScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("gateway/ratelimit: redis hit: %w", err)
	}
	return n, nil
}
