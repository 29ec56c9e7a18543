package querycache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/record"
)

// Cache caches list query results of one entity type and invalidates them
// by cluster signature.
type Cache struct {
	svc      *cache.Service
	entity   string
	spec     ClusterSpec
	volatile []string
	ttl      time.Duration
	logger   *slog.Logger
}

type Option func(*Cache)

// WithVolatileFields replaces the fields stripped from extra params.
func WithVolatileFields(fields ...string) Option {
	return func(c *Cache) { c.volatile = fields }
}

// WithTTL sets the TTL of result entries. Zero uses the service default.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns the query result cache of entity partitioned by spec.
func New(svc *cache.Service, entity string, spec ClusterSpec, opts ...Option) *Cache {
	c := &Cache{
		svc:      svc,
		entity:   entity,
		spec:     append(ClusterSpec(nil), spec...),
		volatile: DefaultVolatileFields,
		logger:   svc.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("entity", entity))
	return c
}

func (c *Cache) Entity() string { return c.entity }

func (c *Cache) Spec() ClusterSpec { return c.spec }

// Key builds the cache key of a list query.
func (c *Cache) Key(where, extra map[string]any) string {
	return BuildCacheKey(c.entity, c.spec, where, extra, c.volatile...)
}

// Read decodes the entry at key into dest. Failures are logged and read
// as a miss.
func (c *Cache) Read(ctx context.Context, key string, dest any) bool {
	ok, err := c.svc.Load(ctx, key, dest)
	if err != nil {
		cache.LogError(c.logger, "query cache read failed", err, slog.String("key", key))
		return false
	}
	return ok
}

// Write stores value at key. A ttl <= 0 uses the cache TTL. Failures are
// logged.
func (c *Cache) Write(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.svc.Save(ctx, key, value, ttl); err != nil {
		cache.LogError(c.logger, "query cache write failed", err, slog.String("key", key))
	}
}

// InvalidateCache purges every entry that could hold any of records: for
// each record the 2^N signature prefixes built from its cluster values are
// deleted. Pass both the old and new state of a mutated entity. Returns the
// number of keys removed.
func (c *Cache) InvalidateCache(ctx context.Context, records ...any) int {
	seen := map[string]struct{}{}
	removed := 0

	for _, rec := range records {
		fields, err := record.ToMap(rec)
		if err != nil {
			c.logger.Warn("cannot read cluster values, invalidating all", slog.String("error", err.Error()))
			return removed + c.InvalidateAll(ctx)
		}

		for _, prefix := range Prefixes(c.entity, c.spec, fields) {
			if _, dup := seen[prefix]; dup {
				continue
			}
			seen[prefix] = struct{}{}

			n, err := c.svc.DeleteByPrefix(ctx, prefix)
			removed += n
			if err != nil {
				cache.LogError(c.logger, "query cache invalidation failed", err, slog.String("prefix", prefix))
			}
		}
	}

	c.logger.Debug("query cache invalidated", slog.Int("removed", removed), slog.Int("prefixes", len(seen)))
	return removed
}

// InvalidateAll deletes every entry of the entity. Use it when the affected
// cluster values are unknown, such as after a bulk update.
func (c *Cache) InvalidateAll(ctx context.Context) int {
	prefix := EntityPrefix(c.entity)
	n, err := c.svc.DeleteByPrefix(ctx, prefix)
	if err != nil {
		cache.LogError(c.logger, "query cache invalidation failed", err, slog.String("prefix", prefix))
	}
	return n
}

// GetOrFetch serves a list query from the cache, running fetch on a miss.
func GetOrFetch[T any](ctx context.Context, c *Cache, where, extra map[string]any, fetch cache.FetchFn[T]) (T, error) {
	return cache.GetOrFetch(ctx, c.svc, c.Key(where, extra), c.ttl, fetch)
}
