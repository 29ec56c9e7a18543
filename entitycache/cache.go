package entitycache

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/record"
	"golang.org/x/sync/errgroup"
)

const (
	Prefix = "ecache"

	DefaultIDField       = "id"
	DefaultActivityField = "isActive"

	registrySegment = "entityKeys"
)

// EntityKey is ecache:<entity>:<id>.
func EntityKey(entity, id string) string {
	return cache.Key(Prefix, entity, id)
}

// IndexKey is ecache:<entity>-by-<field>:<value>.
func IndexKey(entity, field, value string) string {
	return cache.Key(Prefix, entity+"-by-"+field, value)
}

// RegistryKey is ecache:entityKeys:<entity>:<id>, the set of index keys
// that list id.
func RegistryKey(entity, id string) string {
	return cache.Key(Prefix, registrySegment, entity, id)
}

type settings struct {
	idField       string
	activityField string
	indexFields   []string
	ttl           time.Duration
	logger        *slog.Logger
}

type Option func(*settings)

// WithIDField sets the json name of the identifier field.
func WithIDField(field string) Option {
	return func(s *settings) { s.idField = field }
}

// WithActivityField sets the json name of the soft-delete flag. An entity
// whose flag is false is never cached.
func WithActivityField(field string) Option {
	return func(s *settings) { s.activityField = field }
}

// WithIndexFields lists the fields that get a secondary index set.
func WithIndexFields(fields ...string) Option {
	return func(s *settings) { s.indexFields = append([]string(nil), fields...) }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Cache stores single entities by id with secondary index sets. Every
// failure is logged and treated as a miss.
type Cache[T any] struct {
	svc    *cache.Service
	entity string
	settings
}

// New returns the point cache for entity.
func New[T any](svc *cache.Service, entity string, opts ...Option) *Cache[T] {
	s := settings{
		idField:       DefaultIDField,
		activityField: DefaultActivityField,
		logger:        svc.Logger(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.With(slog.String("entity", entity))
	return &Cache[T]{svc: svc, entity: entity, settings: s}
}

func (c *Cache[T]) Entity() string { return c.entity }

// SaveEntityToCache replaces the cached state of v. Inactive entities only
// have their prior state removed.
func (c *Cache[T]) SaveEntityToCache(ctx context.Context, v T) {
	fields, err := record.ToMap(v)
	if err != nil {
		c.logger.Warn("cannot cache entity", slog.String("error", err.Error()))
		return
	}
	id := record.String(fields[c.idField])
	if id == "" {
		c.logger.Warn("cannot cache entity without id", slog.String("id_field", c.idField))
		return
	}

	c.DelEntityFromCache(ctx, id)

	flag, present := fields[c.activityField]
	if !record.Truthy(flag, present) {
		return
	}

	key := EntityKey(c.entity, id)
	if err := c.svc.Save(ctx, key, v, c.ttl); err != nil {
		cache.LogError(c.logger, "entity cache write failed", err, slog.String("key", key))
		return
	}

	store := c.svc.Store()
	var indexKeys []string
	for _, field := range c.indexFields {
		value, ok := fields[field]
		if !ok || value == nil {
			continue
		}
		s := record.Token(value)
		if s == "" {
			continue
		}
		indexKey := IndexKey(c.entity, field, s)
		if err := store.SAdd(ctx, indexKey, id); err != nil {
			cache.LogError(c.logger, "entity index write failed", cache.Unavailable(err, "sadd", nil), slog.String("key", indexKey))
			continue
		}
		indexKeys = append(indexKeys, indexKey)
	}

	if len(indexKeys) > 0 {
		registry := RegistryKey(c.entity, id)
		if err := store.SAdd(ctx, registry, indexKeys...); err != nil {
			cache.LogError(c.logger, "entity registry write failed", cache.Unavailable(err, "sadd", nil), slog.String("key", registry))
		}
	}
}

// DelEntityFromCache removes the entity and its memberships in every index
// set recorded for it. Index removals run concurrently.
func (c *Cache[T]) DelEntityFromCache(ctx context.Context, id string) {
	key := EntityKey(c.entity, id)
	if err := c.svc.Delete(ctx, key); err != nil {
		cache.LogError(c.logger, "entity cache delete failed", err, slog.String("key", key))
	}

	store := c.svc.Store()
	registry := RegistryKey(c.entity, id)
	indexKeys, err := store.SMembers(ctx, registry)
	if err != nil {
		cache.LogError(c.logger, "entity registry read failed", cache.Unavailable(err, "smembers", nil), slog.String("key", registry))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, indexKey := range indexKeys {
		indexKey := indexKey
		g.Go(func() error {
			if err := store.SRem(gctx, indexKey, id); err != nil {
				return cache.Unavailable(err, "srem", map[string]any{"key": indexKey})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cache.LogError(c.logger, "entity index cleanup failed", err, slog.String("id", id))
	}

	if err := c.svc.Delete(ctx, registry); err != nil {
		cache.LogError(c.logger, "entity registry delete failed", err, slog.String("key", registry))
	}
}

// Clear drops every entry, index set and registry of the entity. Use it
// after bulk writes whose ids are unknown.
func (c *Cache[T]) Clear(ctx context.Context) int {
	prefixes := []string{
		EntityKey(c.entity, ""),
		cache.Key(Prefix, c.entity+"-by-"),
		RegistryKey(c.entity, ""),
	}
	removed := 0
	for _, prefix := range prefixes {
		n, err := c.svc.DeleteByPrefix(ctx, prefix)
		removed += n
		if err != nil {
			cache.LogError(c.logger, "entity cache clear failed", err, slog.String("prefix", prefix))
		}
	}
	return removed
}

// GetEntityFromCache returns the cached entity. Missing or empty entries
// report false.
func (c *Cache[T]) GetEntityFromCache(ctx context.Context, id string) (T, bool) {
	var out T
	key := EntityKey(c.entity, id)
	ok, err := c.svc.Load(ctx, key, &out)
	if err != nil {
		cache.LogError(c.logger, "entity cache read failed", err, slog.String("key", key))
		var zero T
		return zero, false
	}
	return out, ok
}

// SelectEntityFromCache returns the cached entities listed in every index
// set named by pairs. Ids whose entry was evicted in the meantime are
// dropped.
func (c *Cache[T]) SelectEntityFromCache(ctx context.Context, pairs map[string]any) []T {
	if len(pairs) == 0 {
		return nil
	}

	fields := make([]string, 0, len(pairs))
	for field := range pairs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	keys := make([]string, len(fields))
	for i, field := range fields {
		keys[i] = IndexKey(c.entity, field, record.Token(pairs[field]))
	}

	ids, err := c.svc.Store().SInter(ctx, keys...)
	if err != nil {
		cache.LogError(c.logger, "entity index read failed", cache.Unavailable(err, "sinter", nil), slog.Any("keys", keys))
		return nil
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.GetEntityFromCache(ctx, id); ok {
			out = append(out, v)
		}
	}
	return out
}
