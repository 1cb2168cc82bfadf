package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rwa-lending-gateway/internal/domain/origination"
)

const maxFeedLen = 50

// RedisFeed stores notifications newest-first in a capped list that
// expires ttl after the last push.
type RedisFeed struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisFeed(rdb *redis.Client, ttl time.Duration) *RedisFeed {
	return &RedisFeed{rdb: rdb, ttl: ttl}
}

func feedKey(account string) string { return "notifications:" + account }

func (f *RedisFeed) Push(ctx context.Context, account string, n origination.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := feedKey(account)
	pipe := f.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxFeedLen-1)
	pipe.Expire(ctx, key, f.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (f *RedisFeed) Recent(ctx context.Context, account string, limit int) ([]origination.Notification, error) {
	if limit <= 0 || limit > maxFeedLen {
		limit = maxFeedLen
	}
	raw, err := f.rdb.LRange(ctx, feedKey(account), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]origination.Notification, 0, len(raw))
	for _, s := range raw {
		var n origination.Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MemoryFeed keeps the same newest-first window in process, without expiry.
type MemoryFeed struct {
	mu    sync.RWMutex
	items map[string][]origination.Notification
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{items: make(map[string][]origination.Notification)}
}

func (f *MemoryFeed) Push(_ context.Context, account string, n origination.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append([]origination.Notification{n}, f.items[account]...)
	if len(list) > maxFeedLen {
		list = list[:maxFeedLen]
	}
	f.items[account] = list
	return nil
}

func (f *MemoryFeed) Recent(_ context.Context, account string, limit int) ([]origination.Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	list := f.items[account]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]origination.Notification, limit)
	copy(out, list[:limit])
	return out, nil
}
