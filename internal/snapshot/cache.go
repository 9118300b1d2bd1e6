// Package snapshot implements the read-side cache the control gateway's
// GET /environment serves from (§4.13): an in-memory copy rebuilt at most
// once per tick, optionally mirrored to Redis so a second visualization
// backend can subscribe instead of polling HTTP. Grounded on the teacher's
// internal/portfolio/manager.go dual-cache pattern (in-memory map behind
// sync.RWMutex, mirrored to Redis).
package snapshot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetops/lpgdispatch/internal/environment"
)

// Channel is the Redis pub/sub channel snapshots are mirrored to.
const Channel = "lpgdispatch:snapshot"

// Cache holds the latest built Snapshot plus an optional Redis mirror.
type Cache struct {
	mu       sync.RWMutex
	latest   environment.Snapshot
	builtAt  time.Time
	haveOne  bool
	builtTick int64

	redis *redis.Client
}

// NewCache builds a Cache. redisURL empty disables the Redis mirror
// entirely (§4.9: optional integrations default to disabled).
func NewCache(redisURL string) (*Cache, error) {
	c := &Cache{}
	if redisURL == "" {
		return c, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c.redis = redis.NewClient(opt)
	return c, nil
}

// Store replaces the cached snapshot for the given tick number and, if
// Redis is configured, publishes it on Channel. Safe to call at most once
// per tick; repeated polls within the tick should call Latest instead.
func (c *Cache) Store(ctx context.Context, tick int64, snap environment.Snapshot) {
	c.mu.Lock()
	c.latest = snap
	c.builtAt = time.Now()
	c.builtTick = tick
	c.haveOne = true
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(snapshotView(snap))
	if err != nil {
		return
	}
	c.redis.Publish(ctx, Channel, payload)
}

// Latest returns the most recently stored snapshot and the tick it was
// built for.
func (c *Cache) Latest() (environment.Snapshot, int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.builtTick, c.haveOne
}

// Close releases the Redis connection, if any.
func (c *Cache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// snapshotView strips the Snapshot down to something JSON-stable; the
// gateway's own view type (§4.11) builds the full GET /environment
// projection, this is just what gets mirrored over the pub/sub channel.
func snapshotView(snap environment.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"now":           snap.Now,
		"vehicle_count": len(snap.Vehicles),
		"order_count":   len(snap.Orders),
	}
}
