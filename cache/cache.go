// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the two-tier listing cache: a map in memory in
// front of a durable store, with TTL freshness and stale-while-revalidate
// refresh. Consumers never see I/O errors from this package; everything on
// the read path degrades to a staler answer or a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/store"
)

var ErrNegativeTTL = errors.New("cache TTL cannot be negative")

const (
	defaultTTL     = time.Hour
	refreshTimeout = 30 * time.Second

	// durableKeyPrefix namespaces cache entries inside the shared durable
	// store so prefix invalidation cannot touch registry or ticket keys.
	durableKeyPrefix = "cache/"
)

// Freshness describes how much a returned value can be trusted.
type Freshness int

const (
	// Miss means there is no usable value for the key.
	Miss Freshness = iota

	// Fresh means the value is younger than the TTL.
	Fresh

	// Stale means the value outlived the TTL but is still usable as a
	// degraded answer; a background refresh has been scheduled.
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "miss"
}

// RefreshFunc produces a fresh serialized value for a key. It is invoked
// in the background on stale access, at most once in flight per key.
type RefreshFunc func(ctx context.Context, key string) ([]byte, error)

// Config contains the knobs for a Tiered cache.
type Config struct {
	// TTL is the freshness window. Entries older than TTL but younger
	// than twice the TTL are served stale; anything older is a miss.
	// (Optional) Defaults to 1 hour.
	TTL time.Duration

	// Refresh re-fetches a key when a stale entry is served.
	// (Optional) Without it, stale entries are served without refresh.
	Refresh RefreshFunc

	// Durable is the second tier. (Optional) Without it the cache is
	// memory-only.
	Durable store.S

	// Logger to be used by the cache.
	// (Optional) By default sallust's default logger is used.
	Logger *zap.Logger

	// Now is the clock. (Optional) Defaults to time.Now; tests override it.
	Now func() time.Time

	// Measures records lookup and refresh outcomes. (Optional)
	Measures *Measures
}

// envelope is the serialized form of one entry on the durable tier.
type envelope struct {
	Value     []byte    `json:"value"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Tiered is the two-tier cache. Safe for concurrent use.
type Tiered struct {
	lock     sync.Mutex
	entries  map[string]envelope
	inflight map[string]struct{}

	ttl      time.Duration
	refresh  RefreshFunc
	durable  store.S
	logger   *zap.Logger
	now      func() time.Time
	measures *Measures
}

// New builds a Tiered cache from config.
func New(config Config) (*Tiered, error) {
	if config.TTL < 0 {
		return nil, ErrNegativeTTL
	}
	if config.TTL == 0 {
		config.TTL = defaultTTL
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Tiered{
		entries:  map[string]envelope{},
		inflight: map[string]struct{}{},
		ttl:      config.TTL,
		refresh:  config.Refresh,
		durable:  config.Durable,
		logger:   config.Logger,
		now:      config.Now,
		measures: config.Measures,
	}, nil
}

// Get returns the cached value for key and how fresh it is. The memory
// tier is consulted first, then the durable tier (promoting on hit). A
// stale hit schedules a single background refresh for the key.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, Freshness) {
	c.lock.Lock()
	entry, ok := c.entries[key]
	c.lock.Unlock()

	if !ok {
		entry, ok = c.loadDurable(key)
		if !ok {
			c.measures.countLookup(Miss)
			return nil, Miss
		}
		c.lock.Lock()
		c.entries[key] = entry
		c.lock.Unlock()
	}

	age := c.now().Sub(entry.FetchedAt)
	switch {
	case age < c.ttl:
		c.measures.countLookup(Fresh)
		return entry.Value, Fresh
	case age < 2*c.ttl:
		c.scheduleRefresh(key)
		c.measures.countLookup(Stale)
		return entry.Value, Stale
	default:
		c.Invalidate(ctx, key)
		c.measures.countLookup(Miss)
		return nil, Miss
	}
}

// Put stores value under key in both tiers. The memory tier is updated
// synchronously; the durable write is best-effort and never fails the Put.
func (c *Tiered) Put(ctx context.Context, key string, value []byte) {
	entry := envelope{Value: value, FetchedAt: c.now()}
	c.lock.Lock()
	c.entries[key] = entry
	c.lock.Unlock()

	if c.durable == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to serialize cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.durable.Put(durableKeyPrefix+key, data); err != nil {
		c.logger.Warn("durable cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes key from both tiers immediately.
func (c *Tiered) Invalidate(ctx context.Context, key string) {
	c.lock.Lock()
	delete(c.entries, key)
	c.lock.Unlock()

	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(durableKeyPrefix + key); err != nil {
		c.logger.Warn("durable cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateAll removes every key sharing the given prefix from both
// tiers. An empty prefix clears the whole cache.
func (c *Tiered) InvalidateAll(ctx context.Context, prefix string) {
	c.lock.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.lock.Unlock()

	if c.durable == nil {
		return
	}
	if err := c.durable.DeletePrefix(durableKeyPrefix + prefix); err != nil {
		c.logger.Warn("durable cache prefix delete failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

// loadDurable reads and deserializes one entry from the durable tier. Any
// failure, including a corrupt payload, is a miss; corrupt payloads are
// deleted so they are not re-read.
func (c *Tiered) loadDurable(key string) (envelope, bool) {
	if c.durable == nil {
		return envelope{}, false
	}
	data, err := c.durable.Get(durableKeyPrefix + key)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			c.logger.Warn("durable cache read failed", zap.String("key", key), zap.Error(err))
		}
		return envelope{}, false
	}
	var entry envelope
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		if err := c.durable.Delete(durableKeyPrefix + key); err != nil {
			c.logger.Warn("durable cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return envelope{}, false
	}
	return entry, true
}

// scheduleRefresh starts a background refresh for key unless one is
// already in flight. This is the single-flight guarantee: N concurrent
// stale reads of the same key produce one outbound request.
func (c *Tiered) scheduleRefresh(key string) {
	if c.refresh == nil {
		return
	}

	c.lock.Lock()
	if _, busy := c.inflight[key]; busy {
		c.lock.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.lock.Unlock()

	go func() {
		defer func() {
			c.lock.Lock()
			delete(c.inflight, key)
			c.lock.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		value, err := c.refresh(ctx, key)
		if err != nil {
			c.measures.countRefresh(false)
			c.logger.Warn("background cache refresh failed", zap.String("key", key), zap.Error(err))
			return
		}
		c.Put(ctx, key, value)
		c.measures.countRefresh(true)
	}()
}
