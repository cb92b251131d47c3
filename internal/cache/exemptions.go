package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"discord-guardian-bot/internal/redis"
)

// ExemptionSet is one guild's allowlist, immutable after load
type ExemptionSet struct {
	Users    map[string]struct{} `json:"users"`
	Roles    map[string]struct{} `json:"roles"`
	Channels map[string]struct{} `json:"channels"`
}

// Loader fetches a guild's allowlist from durable storage on a cache
// miss
type Loader func(guildID string) (*ExemptionSet, error)

// ExemptionCache answers allowlist lookups with an L1 (ristretto) and
// L2 (redis) layer over the database, singleflighted so a burst of
// events for one guild triggers one load
type ExemptionCache struct {
	l1     *ristretto.Cache
	l2     *redis.Client
	loader Loader
	group  singleflight.Group
	ttl    time.Duration

	l1Hits   atomic.Uint64
	l1Misses atomic.Uint64
}

// New creates the cache. redisClient may be nil to run L1-only.
func New(redisClient *redis.Client, loader Loader) (*ExemptionCache, error) {
	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     5 << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &ExemptionCache{
		l1:     l1,
		l2:     redisClient,
		loader: loader,
		ttl:    5 * time.Minute,
	}, nil
}

func cacheKey(guildID string) string {
	return "guard:exempt:" + guildID
}

// Get returns the guild's exemption set, loading through the layers
// on miss. A load failure yields an empty set so detection proceeds
// rather than silently exempting everyone.
func (c *ExemptionCache) Get(guildID string) *ExemptionSet {
	key := cacheKey(guildID)

	if val, found := c.l1.Get(key); found {
		c.l1Hits.Add(1)
		return val.(*ExemptionSet)
	}
	c.l1Misses.Add(1)

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if set := c.fromRedis(key); set != nil {
			return set, nil
		}

		set, err := c.loader(guildID)
		if err != nil {
			return nil, err
		}
		if set == nil {
			set = emptySet()
		}
		c.store(key, set)
		return set, nil
	})
	if err != nil {
		return emptySet()
	}
	return val.(*ExemptionSet)
}

func (c *ExemptionCache) fromRedis(key string) *ExemptionSet {
	if c.l2 == nil {
		return nil
	}
	payload, err := c.l2.Raw().Get(redisCtx(), key).Bytes()
	if err != nil {
		return nil
	}
	set := &ExemptionSet{}
	if err := json.Unmarshal(payload, set); err != nil {
		return nil
	}
	c.l1.SetWithTTL(key, set, 1, c.ttl)
	return set
}

func (c *ExemptionCache) store(key string, set *ExemptionSet) {
	c.l1.SetWithTTL(key, set, 1, c.ttl)
	if c.l2 != nil {
		if payload, err := json.Marshal(set); err == nil {
			c.l2.Raw().Set(redisCtx(), key, payload, c.ttl)
		}
	}
}

// Invalidate drops a guild's cached set after a config update
func (c *ExemptionCache) Invalidate(guildID string) {
	key := cacheKey(guildID)
	c.l1.Del(key)
	if c.l2 != nil {
		c.l2.Raw().Del(redisCtx(), key)
	}
}

// HitRate reports the L1 hit ratio for diagnostics
func (c *ExemptionCache) HitRate() float64 {
	total := c.l1Hits.Load() + c.l1Misses.Load()
	if total == 0 {
		return 0
	}
	return float64(c.l1Hits.Load()) / float64(total)
}

// Close shuts down the L1 layer
func (c *ExemptionCache) Close() {
	c.l1.Close()
}

func redisCtx() context.Context {
	return context.Background()
}

func emptySet() *ExemptionSet {
	return &ExemptionSet{
		Users:    map[string]struct{}{},
		Roles:    map[string]struct{}{},
		Channels: map[string]struct{}{},
	}
}
