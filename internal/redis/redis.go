package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Network  string `json:"network"` // "tcp" or "unix" for socket path
}

// Client wraps the redis connection used for advisory hot counters;
// everything stored here can be lost without affecting enforcement
type Client struct {
	client *redis.Client
}

var ctx = context.Background()

// New connects with a pool sized for counter bursts
func New(cfg Config) (*Client, error) {
	network := "tcp"
	if cfg.Network != "" {
		network = cfg.Network
	}
	// Addr that looks like a socket path means unix
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Network:      network,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{client: rdb}, nil
}

// Close shuts down the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// Raw exposes the underlying client for the cache L2 layer
func (c *Client) Raw() *redis.Client {
	return c.client
}

// --- Stats sink ------------------------------------------------------

const statsTTL = 24 * time.Hour

func violKey(guildID, violationType string) string {
	return "guard:viol:" + guildID + ":" + violationType
}

func actionKey(guildID, action string) string {
	return "guard:action:" + guildID + ":" + action
}

func strikesKey(guildID string) string {
	return "guard:strikes:" + guildID
}

// IncrViolation bumps a guild's 24h counter for one violation type.
// Fire-and-forget: errors are swallowed, the counters are advisory.
func (c *Client) IncrViolation(guildID, violationType string) {
	key := violKey(guildID, violationType)
	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, statsTTL)
	go pipe.Exec(ctx)
}

// IncrAction bumps a guild's 24h counter for one action kind
func (c *Client) IncrAction(guildID, action string) {
	key := actionKey(guildID, action)
	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, statsTTL)
	go pipe.Exec(ctx)
}

// RecordStrikes updates the per-guild offender leaderboard
func (c *Client) RecordStrikes(guildID, userID string, total int) {
	key := strikesKey(guildID)
	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(total), Member: userID})
	pipe.Expire(ctx, key, statsTTL)
	go pipe.Exec(ctx)
}

// ViolationCounts returns the guild's 24h counters by violation type.
// SCAN rather than KEYS: the dashboard must not stall the server that
// also backs the hot path.
func (c *Client) ViolationCounts(guildID string) (map[string]int64, error) {
	prefix := "guard:viol:" + guildID + ":"

	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stats scan: %w", err)
	}
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("stats mget: %w", err)
	}
	return parseCounts(prefix, keys, vals), nil
}

// parseCounts pairs SCAN keys with their MGET values; a key expired
// between the two commands comes back nil and is skipped
func parseCounts(prefix string, keys []string, vals []interface{}) map[string]int64 {
	counts := make(map[string]int64, len(keys))
	for i, key := range keys {
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		var n int64
		fmt.Sscanf(s, "%d", &n)
		counts[key[len(prefix):]] = n
	}
	return counts
}

// TopOffenders returns up to n user ids by strike score, descending
func (c *Client) TopOffenders(guildID string, n int64) ([]string, error) {
	members, err := c.client.ZRevRange(ctx, strikesKey(guildID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("offenders range: %w", err)
	}
	return members, nil
}
