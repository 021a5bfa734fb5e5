// Package cache keeps short-lived copies of reputation aggregates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/goodfinds-backend/internal/model"
)

// ReputationCache stores aggregates keyed by user. review_count only grows, so it doubles as the
// entry version: Set never replaces an entry with one that has fewer reviews.
type ReputationCache interface {
	Get(ctx context.Context, uid string) (*model.UserReputation, bool, error)
	Set(ctx context.Context, rep *model.UserReputation) error
	Delete(ctx context.Context, uid string) error
}

type redisReputationCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisReputationCache(rdb redis.UniversalClient, ttl time.Duration) ReputationCache {
	return &redisReputationCache{rdb: rdb, ttl: ttl}
}

func reputationKey(uid string) string {
	return "reputation:" + uid
}

// setIfNewer writes ARGV[1] unless the stored entry already has at least ARGV[2] reviews.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, v = pcall(cjson.decode, cur)
  if ok and type(v) == 'table' and tonumber(v['ReviewCount']) ~= nil and tonumber(v['ReviewCount']) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

func (c *redisReputationCache) Get(ctx context.Context, uid string) (*model.UserReputation, bool, error) {
	val, err := c.rdb.Get(ctx, reputationKey(uid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rep model.UserReputation
	if err := json.Unmarshal([]byte(val), &rep); err != nil {
		return nil, false, err
	}
	return &rep, true, nil
}

func (c *redisReputationCache) Set(ctx context.Context, rep *model.UserReputation) error {
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.rdb,
		[]string{reputationKey(rep.UserUID)},
		string(b), rep.ReviewCount, c.ttl.Milliseconds(),
	).Err()
}

func (c *redisReputationCache) Delete(ctx context.Context, uid string) error {
	return c.rdb.Del(ctx, reputationKey(uid)).Err()
}

type memoryEntry struct {
	rep     model.UserReputation
	expires time.Time
}

// MemoryReputationCache serves a single API instance when Redis is not configured.
type MemoryReputationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryReputationCache(ttl time.Duration) *MemoryReputationCache {
	return &MemoryReputationCache{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryReputationCache) Get(_ context.Context, uid string) (*model.UserReputation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uid]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, uid)
		return nil, false, nil
	}
	rep := e.rep
	return &rep, true, nil
}

func (c *MemoryReputationCache) Set(_ context.Context, rep *model.UserReputation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.entries[rep.UserUID]; ok && now.Before(e.expires) && e.rep.ReviewCount >= rep.ReviewCount {
		return nil
	}
	c.entries[rep.UserUID] = memoryEntry{rep: *rep, expires: now.Add(c.ttl)}
	return nil
}

func (c *MemoryReputationCache) Delete(_ context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
	return nil
}

type noopReputationCache struct{}

// NewNoopReputationCache disables caching.
func NewNoopReputationCache() ReputationCache {
	return noopReputationCache{}
}

func (noopReputationCache) Get(context.Context, string) (*model.UserReputation, bool, error) {
	return nil, false, nil
}
func (noopReputationCache) Set(context.Context, *model.UserReputation) error { return nil }
func (noopReputationCache) Delete(context.Context, string) error             { return nil }
