package certificate

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheTTL     = time.Minute
	DefaultCacheMaxSize = 1024

	wildcard = "all"
)

// Key identifies a cached lookup. An empty dimension is the "all" wildcard, used by list lookups.
type Key struct {
	LearnerID string
	CourseID  string
}

func KeyFor(learnerID, courseID string) Key {
	return Key{LearnerID: learnerID, CourseID: courseID}
}

func (k Key) String() string {
	return "certificates_" + orWildcard(k.LearnerID) + "_" + orWildcard(k.CourseID)
}

// related returns the key and every wildcard key whose result set may contain it.
func (k Key) related() []Key {
	return []Key{
		k,
		{LearnerID: k.LearnerID},
		{CourseID: k.CourseID},
		{},
	}
}

func orWildcard(s string) string {
	if s == "" {
		return wildcard
	}
	return s
}

// Cache is a time-boxed store of certificate lookups. It is a latency optimization only.
type Cache interface {
	Get(ctx context.Context, key Key) ([]Certificate, bool)
	Put(ctx context.Context, key Key, certs ...Certificate)
	Invalidate(ctx context.Context, keys ...Key)
}

type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultCacheTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultCacheMaxSize
	}
	return c
}

// DatedCache is a Cache that keeps the insertion time of its entries.
// An entry expires a fixed duration after its first insertion, also when it is copied between caches.
type DatedCache interface {
	Cache
	GetDated(ctx context.Context, key Key) ([]Certificate, time.Time, bool)
	PutDated(ctx context.Context, key Key, storedAt time.Time, certs ...Certificate)
}

type memoryEntry struct {
	certs    []Certificate
	storedAt time.Time
}

// MemoryCache is a process-local Cache, bounded in size and entry lifetime.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	ttl time.Duration
}

var _ DatedCache = (*MemoryCache)(nil) // interface compliance check

func NewMemoryCache(conf CacheConfig) *MemoryCache {
	conf = conf.withDefaults()
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryEntry](conf.MaxSize, nil, conf.TTL),
		ttl: conf.TTL,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key Key) ([]Certificate, bool) {
	certs, _, ok := c.GetDated(ctx, key)
	return certs, ok
}

func (c *MemoryCache) GetDated(_ context.Context, key Key) ([]Certificate, time.Time, bool) {
	entry, ok := c.lru.Get(key.String())
	if !ok {
		return nil, time.Time{}, false
	}
	if !time.Now().Before(entry.storedAt.Add(c.ttl)) {
		c.lru.Remove(key.String())
		return nil, time.Time{}, false
	}
	return append([]Certificate(nil), entry.certs...), entry.storedAt, true
}

func (c *MemoryCache) Put(ctx context.Context, key Key, certs ...Certificate) {
	c.PutDated(ctx, key, time.Now(), certs...)
}

func (c *MemoryCache) PutDated(_ context.Context, key Key, storedAt time.Time, certs ...Certificate) {
	if !time.Now().Before(storedAt.Add(c.ttl)) {
		return
	}
	c.lru.Add(key.String(), memoryEntry{certs: append([]Certificate(nil), certs...), storedAt: storedAt})
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...Key) {
	for _, k := range keys {
		c.lru.Remove(k.String())
	}
}

func (c *MemoryCache) Len() int { return c.lru.Len() }

// TieredCache reads through its layers in order and backfills the faster ones on a hit.
// Backfilled entries keep their insertion time when both layers are DatedCaches.
type TieredCache struct {
	layers []Cache
}

var _ Cache = (*TieredCache)(nil) // interface compliance check

func NewTieredCache(layers ...Cache) *TieredCache {
	return &TieredCache{layers: layers}
}

func (c *TieredCache) Get(ctx context.Context, key Key) ([]Certificate, bool) {
	for i, layer := range c.layers {
		var (
			certs    []Certificate
			storedAt time.Time
			ok       bool
		)
		if dated, isDated := layer.(DatedCache); isDated {
			certs, storedAt, ok = dated.GetDated(ctx, key)
		} else {
			certs, ok = layer.Get(ctx, key)
		}
		if !ok {
			continue
		}
		for _, faster := range c.layers[:i] {
			if dated, isDated := faster.(DatedCache); isDated && !storedAt.IsZero() {
				dated.PutDated(ctx, key, storedAt, certs...)
			} else {
				faster.Put(ctx, key, certs...)
			}
		}
		return certs, true
	}
	return nil, false
}

func (c *TieredCache) Put(ctx context.Context, key Key, certs ...Certificate) {
	storedAt := time.Now()
	for _, layer := range c.layers {
		if dated, isDated := layer.(DatedCache); isDated {
			dated.PutDated(ctx, key, storedAt, certs...)
		} else {
			layer.Put(ctx, key, certs...)
		}
	}
}

func (c *TieredCache) Invalidate(ctx context.Context, keys ...Key) {
	for _, layer := range c.layers {
		layer.Invalidate(ctx, keys...)
	}
}
