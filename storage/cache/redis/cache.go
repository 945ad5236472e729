// Package rediscache shares certificate lookups between processes.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
)

const keyPrefix = "oneeduca:"

// Cache is a certificate.Cache backed by redis. Redis failures are logged and read as misses.
type Cache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger core.Logger
}

var _ certificate.DatedCache = (*Cache)(nil) // interface compliance check

type entry struct {
	StoredAt time.Time                 `json:"stored_at"`
	Certs    []certificate.Certificate `json:"certs"`
}

func NewClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

func New(rdb redis.UniversalClient, ttl time.Duration, logger core.Logger) *Cache {
	if ttl <= 0 {
		ttl = certificate.DefaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Ping checks that the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return errors.Wrap(c.rdb.Ping(ctx).Err(), "pinging redis")
}

func (c *Cache) Get(ctx context.Context, key certificate.Key) ([]certificate.Certificate, bool) {
	certs, _, ok := c.GetDated(ctx, key)
	return certs, ok
}

func (c *Cache) GetDated(ctx context.Context, key certificate.Key) ([]certificate.Certificate, time.Time, bool) {
	data, err := c.rdb.Get(ctx, keyPrefix+key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("reading certificate cache", "error", err, "key", key.String())
		}
		return nil, time.Time{}, false
	}
	var e entry
	if err = json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("decoding certificate cache entry", "error", err, "key", key.String())
		return nil, time.Time{}, false
	}
	if e.Certs == nil {
		e.Certs = []certificate.Certificate{}
	}
	return e.Certs, e.StoredAt, true
}

func (c *Cache) Put(ctx context.Context, key certificate.Key, certs ...certificate.Certificate) {
	c.PutDated(ctx, key, time.Now(), certs...)
}

// PutDated stores the entry until ttl after storedAt; already expired entries are dropped.
func (c *Cache) PutDated(ctx context.Context, key certificate.Key, storedAt time.Time, certs ...certificate.Certificate) {
	remaining := time.Until(storedAt.Add(c.ttl))
	if remaining <= 0 {
		return
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	data, err := json.Marshal(entry{StoredAt: storedAt.UTC(), Certs: certs})
	if err != nil {
		c.logger.Warn("encoding certificate cache entry", "error", err, "key", key.String())
		return
	}
	if err = c.rdb.Set(ctx, keyPrefix+key.String(), data, remaining).Err(); err != nil {
		c.logger.Warn("writing certificate cache", "error", err, "key", key.String())
	}
}

func (c *Cache) Invalidate(ctx context.Context, keys ...certificate.Key) {
	if len(keys) == 0 {
		return
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, keyPrefix+k.String())
	}
	if err := c.rdb.Del(ctx, names...).Err(); err != nil {
		c.logger.Warn("invalidating certificate cache", "error", err)
	}
}
