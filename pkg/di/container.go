package di

import (
	"context"
	"errors"
	"log/slog"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/entitycache"
	"github.com/goliatone/go-query-cache/internal/searchinfra"
	"github.com/goliatone/go-query-cache/internal/storeinfra"
	"github.com/goliatone/go-query-cache/pkg/config"
	"github.com/goliatone/go-query-cache/pkg/logging"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/repositorycache"
	"github.com/goliatone/go-query-cache/searchindex"
	"github.com/uptrace/bun"
)

// Container provides dependency injection for the cache components.
// It owns the cache service and the optional relational, document and
// search clients, and builds the caches and decorators on top of them.
type Container struct {
	config       *config.Config
	logger       *slog.Logger
	cacheService *cache.Service
	store        cache.Store
	relational   *bun.DB
	document     *storeinfra.DocumentStore
	search       searchindex.Client
	owned        []func(context.Context) error
}

type Option func(*Container)

// WithLogger replaces the logger built from the logging section.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithStore uses store instead of the backend selected by the cache
// section. The container takes ownership of it.
func WithStore(store cache.Store) Option {
	return func(c *Container) { c.store = store }
}

// WithRelationalDB uses db instead of opening the relational section. The
// caller keeps ownership of it.
func WithRelationalDB(db *bun.DB) Option {
	return func(c *Container) { c.relational = db }
}

// WithSearchClient uses client instead of connecting the search section.
func WithSearchClient(client searchindex.Client) Option {
	return func(c *Container) { c.search = client }
}

// NewContainer validates cfg and builds every enabled component. On
// failure the components built so far are closed.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg, logger: logging.New(cfg.Logging)}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.build(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults builds a container over the in-process store
// with every optional backend disabled.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(context.Background(), config.Default())
}

func (c *Container) build(ctx context.Context) error {
	if c.store != nil {
		c.cacheService = cache.NewService(c.store,
			cache.WithCodec(cache.CodecByName(c.config.Cache.Codec)),
			cache.WithDefaultTTL(c.config.Cache.TTL),
			cache.WithLogger(c.logger),
		)
	} else {
		svc, err := cache.New(c.config.Cache, c.logger)
		if err != nil {
			return err
		}
		c.cacheService = svc
	}
	c.owned = append(c.owned, func(context.Context) error { return c.cacheService.Close() })

	if c.relational == nil && c.config.RelationalEnabled() {
		db, err := storeinfra.OpenRelational(ctx, c.config.Relational)
		if err != nil {
			return err
		}
		c.relational = db
		c.owned = append(c.owned, func(context.Context) error { return db.Close() })
	}

	if c.config.DocumentEnabled() {
		store, err := storeinfra.ConnectDocument(ctx, c.config.Document)
		if err != nil {
			return err
		}
		c.document = store
		c.owned = append(c.owned, store.Close)
	}

	if c.search == nil && c.config.SearchEnabled() {
		client, err := searchinfra.NewElasticClient(c.config.Search.Config)
		if err != nil {
			return err
		}
		c.search = client
	}
	return nil
}

func (c *Container) Config() *config.Config { return c.config }

func (c *Container) Logger() *slog.Logger { return c.logger }

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() *cache.Service { return c.cacheService }

// RelationalDB is nil unless the relational section is enabled.
func (c *Container) RelationalDB() *bun.DB { return c.relational }

// DocumentStore is nil unless the document section is enabled.
func (c *Container) DocumentStore() *storeinfra.DocumentStore { return c.document }

// SearchClient is nil unless the search section is enabled.
func (c *Container) SearchClient() searchindex.Client { return c.search }

// NewQueryCache returns the query result cache of entity.
func (c *Container) NewQueryCache(entity string, spec ...string) *querycache.Cache {
	return querycache.New(c.cacheService, entity, querycache.ClusterSpec(spec), querycache.WithLogger(c.logger))
}

// NewSynchronizer returns a synchronizer for index with the page cache on
// the container's cache service, or nil when search is disabled.
func (c *Container) NewSynchronizer(index string, opts ...searchindex.Option) *searchindex.Synchronizer {
	if c.search == nil {
		return nil
	}
	base := []searchindex.Option{
		searchindex.WithPageCache(c.cacheService),
		searchindex.WithPageTTL(c.config.Search.PageTTL),
		searchindex.WithRetry(c.config.Search.MaxAttempts, c.config.Search.RetryWait),
		searchindex.WithLogger(c.logger),
	}
	return searchindex.New(c.search, index, append(base, opts...)...)
}

// Close releases the components the container opened, newest first.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.owned) - 1; i >= 0; i-- {
		if err := c.owned[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.owned = nil
	return errors.Join(errs...)
}

// NewEntityCache returns the entity point cache of entity.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
func NewEntityCache[T any](container *Container, entity string, opts ...entitycache.Option) *entitycache.Cache[T] {
	opts = append([]entitycache.Option{entitycache.WithLogger(container.logger)}, opts...)
	return entitycache.New[T](container.cacheService, entity, opts...)
}

// NewCachedRepository creates a new cached repository that wraps the provided base repository.
// When search is enabled and no index was configured through opts, writes are mirrored to the
// plural of the entity name, after WithEntityName is applied.
//
// Example: NewCachedRepository[User](container, baseUserRepository, repositorycache.WithClusterSpec("team_id"))
func NewCachedRepository[T any](container *Container, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	head := []repositorycache.Option{repositorycache.WithLogger(container.logger)}
	if container.search != nil {
		entity := repositorycache.ResolveEntityName[T](opts...)
		head = append(head, repositorycache.WithSearchIndex(container.NewSynchronizer(repositorycache.IndexName(entity)), ""))
	}
	return repositorycache.New[T](base, container.cacheService, append(head, opts...)...)
}
