package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the marker only while it still carries the caller's
// token, so a holder whose marker expired cannot clear its successor's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds one in-flight marker per key with SETNX. The TTL bounds
// a marker left behind by a crashed process.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: "inflight:", ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *RedisGuard) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, g.rdb, []string{g.prefix + key}, token).Err()
}

// MemoryGuard is the single-process variant used when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]string)}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[key] = token
	return token, true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	if g.held[key] == token {
		delete(g.held, key)
	}
	g.mu.Unlock()
	return nil
}
