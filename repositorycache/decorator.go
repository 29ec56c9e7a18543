package repositorycache

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/entitycache"
	"github.com/goliatone/go-query-cache/internal/record"
	"github.com/goliatone/go-query-cache/query/relational"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/searchindex"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult wraps the tuple result from List operations for caching
type listResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

type settings struct {
	entity        string
	cluster       querycache.ClusterSpec
	indexFields   []string
	idField       string
	activityField string
	uniqueField   string
	sync          *searchindex.Synchronizer
	logger        *slog.Logger
}

type Option func(*settings)

// WithEntityName overrides the name used in cache keys. It defaults to the
// snake cased type name.
func WithEntityName(name string) Option {
	return func(s *settings) { s.entity = name }
}

// WithClusterSpec sets the fields partitioning the query result cache.
func WithClusterSpec(fields ...string) Option {
	return func(s *settings) { s.cluster = querycache.ClusterSpec(fields) }
}

// WithIndexFields sets the fields indexed by the entity point cache.
func WithIndexFields(fields ...string) Option {
	return func(s *settings) { s.indexFields = fields }
}

func WithIDField(field string) Option {
	return func(s *settings) { s.idField = field }
}

func WithActivityField(field string) Option {
	return func(s *settings) { s.activityField = field }
}

// WithSearchIndex mirrors every write into the synchronizer's index.
// uniqueField may be empty.
func WithSearchIndex(sync *searchindex.Synchronizer, uniqueField string) Option {
	return func(s *settings) {
		s.sync = sync
		s.uniqueField = uniqueField
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// CachedRepository decorates a base repository with the entity point
// cache, the query result cache and optionally a search index.
//
// GetByID is served from the point cache. ListWhere and CountWhere take
// filter objects, compile them to SQL and cache the results by cluster
// signature. Criteria based reads pass through since their keys cannot be
// derived. Every successful write updates the point cache, invalidates the
// affected list queries and syncs the search index.
type CachedRepository[T any] struct {
	base     repository.Repository[T]
	entities *entitycache.Cache[T]
	queries  *querycache.Cache
	settings
}

// New creates a new CachedRepository that wraps the base repository with caching
func New[T any](base repository.Repository[T], svc *cache.Service, opts ...Option) *CachedRepository[T] {
	s := resolve[T](svc.Logger(), opts)

	return &CachedRepository[T]{
		base: base,
		entities: entitycache.New[T](svc, s.entity,
			entitycache.WithIDField(s.idField),
			entitycache.WithActivityField(s.activityField),
			entitycache.WithIndexFields(s.indexFields...),
			entitycache.WithLogger(s.logger),
		),
		queries:  querycache.New(svc, s.entity, s.cluster, querycache.WithLogger(s.logger)),
		settings: s,
	}
}

func resolve[T any](logger *slog.Logger, opts []Option) settings {
	s := settings{
		entity:        EntityName[T](),
		idField:       entitycache.DefaultIDField,
		activityField: entitycache.DefaultActivityField,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ResolveEntityName returns the entity name a repository of T built with
// opts uses: the WithEntityName value, or the snake cased type name.
func ResolveEntityName[T any](opts ...Option) string {
	return resolve[T](nil, opts).entity
}

func (c *CachedRepository[T]) Entity() string { return c.entity }

func (c *CachedRepository[T]) Entities() *entitycache.Cache[T] { return c.entities }

func (c *CachedRepository[T]) Queries() *querycache.Cache { return c.queries }

// Get retrieves a single record using the provided criteria
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.Get(ctx, criteria...)
}

// GetByID retrieves a record by ID. Calls without criteria go through the
// entity point cache.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		return c.base.GetByID(ctx, id, criteria...)
	}
	if !cacheBypassed(ctx) {
		if v, ok := c.entities.GetEntityFromCache(ctx, id); ok {
			return v, nil
		}
	}
	v, err := c.base.GetByID(ctx, id)
	if err == nil {
		c.entities.SaveEntityToCache(ctx, v)
	}
	return v, err
}

// List retrieves multiple records using the provided criteria
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.List(ctx, criteria...)
}

// Count returns the number of records matching the criteria
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.Count(ctx, criteria...)
}

// GetByIdentifier retrieves a record by identifier with optional criteria
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifier(ctx, identifier, criteria...)
}

// ListWhere lists the records matching where, a filter object. extra holds
// paging parameters (limit, offset, order) and any other value that should
// partition the cache. Compile errors are returned unchanged.
func (c *CachedRepository[T]) ListWhere(ctx context.Context, where, extra map[string]any) ([]T, int, error) {
	clause, err := relational.Compile(where)
	if err != nil {
		return nil, 0, err
	}
	criteria := append([]repository.SelectCriteria{clause.Criteria()}, pageCriteria(extra)...)

	fetch := func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	}

	res, err := readThrough(ctx, c.queries, where, queryParams("list", where, extra), fetch)
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// CountWhere counts the records matching where.
func (c *CachedRepository[T]) CountWhere(ctx context.Context, where map[string]any) (int, error) {
	clause, err := relational.Compile(where)
	if err != nil {
		return 0, err
	}
	return readThrough(ctx, c.queries, where, queryParams("count", where, nil), func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, clause.Criteria())
	})
}

// FindCached returns the cached records whose index fields equal pairs. It
// never reaches the base repository.
func (c *CachedRepository[T]) FindCached(ctx context.Context, pairs map[string]any) []T {
	return c.entities.SelectEntityFromCache(ctx, pairs)
}

// Search reads one page from the search index. Without an index it returns
// an empty page.
func (c *CachedRepository[T]) Search(ctx context.Context, req searchindex.PageRequest) (searchindex.Page, error) {
	if c.sync == nil {
		return searchindex.EmptyPage(), nil
	}
	return c.sync.GetDataByPage(ctx, req)
}

func readThrough[R any](ctx context.Context, qc *querycache.Cache, where, extra map[string]any, fetch cache.FetchFn[R]) (R, error) {
	if !cacheBypassed(ctx) {
		return querycache.GetOrFetch(ctx, qc, where, extra, fetch)
	}
	v, err := fetch(ctx)
	if err == nil {
		qc.Write(ctx, qc.Key(where, extra), v, 0)
	}
	return v, err
}

// Create creates a new record
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, nil, result)
	}
	return result, err
}

// CreateTx creates a new record within a transaction
func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, nil, result)
	}
	return result, err
}

// CreateMany creates multiple records
func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		c.afterBulkCreate(ctx, result)
	}
	return result, err
}

// CreateManyTx creates multiple records within a transaction
func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterBulkCreate(ctx, result)
	}
	return result, err
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		c.afterWrite(ctx, nil, result)
	}
	return result, err
}

// GetOrCreateTx gets a record or creates it if it doesn't exist within a transaction
func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := c.base.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		c.afterWrite(ctx, nil, result)
	}
	return result, err
}

// Update updates a record
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.prior(ctx, record, c.base.GetByID)
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, prior, result)
	}
	return result, err
}

// UpdateTx updates a record within a transaction
func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.prior(ctx, record, txGetter(c.base, tx))
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, prior, result)
	}
	return result, err
}

// UpdateMany updates multiple records
func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.afterBulkUpdate(ctx, result)
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction
func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterBulkUpdate(ctx, result)
	}
	return result, err
}

// Upsert inserts or updates a record
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.prior(ctx, record, c.base.GetByID)
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, prior, result)
	}
	return result, err
}

// UpsertTx inserts or updates a record within a transaction
func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.prior(ctx, record, txGetter(c.base, tx))
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, prior, result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.afterBulkUpdate(ctx, result)
	}
	return result, err
}

// UpsertManyTx inserts or updates multiple records within a transaction
func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterBulkUpdate(ctx, result)
	}
	return result, err
}

// Delete deletes a record
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// DeleteTx deletes a record within a transaction
func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// DeleteMany deletes multiple records based on criteria
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.afterCriteriaWrite(ctx)
	}
	return err
}

// DeleteManyTx deletes multiple records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.afterCriteriaWrite(ctx)
	}
	return err
}

// DeleteWhere deletes records based on criteria
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.afterCriteriaWrite(ctx)
	}
	return err
}

// DeleteWhereTx deletes records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.afterCriteriaWrite(ctx)
	}
	return err
}

// ForceDelete force deletes a record (bypassing soft delete)
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// ForceDeleteTx force deletes a record within a transaction (bypassing soft delete)
func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// GetTx retrieves a single record using the provided criteria within a transaction
func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx retrieves a record by ID with optional criteria within a transaction
func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx retrieves multiple records using the provided criteria within a transaction
func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx returns the number of records matching the criteria within a transaction
func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx retrieves a record by identifier with optional criteria within a transaction
func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query and returns the results
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction and returns the results
func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

type getter[T any] func(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)

func txGetter[T any](base repository.Repository[T], tx bun.IDB) getter[T] {
	return func(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
		return base.GetByIDTx(ctx, tx, id, criteria...)
	}
}

// prior returns the stored state of record before a mutation so the list
// queries matching its old cluster values can be invalidated. The point
// cache is tried first. Without cluster dimensions there is nothing to
// look up.
func (c *CachedRepository[T]) prior(ctx context.Context, rec T, get getter[T]) any {
	if len(c.cluster) == 0 {
		return nil
	}
	id := c.idOf(rec)
	if id == "" {
		return nil
	}
	if v, ok := c.entities.GetEntityFromCache(ctx, id); ok {
		return v
	}
	v, err := get(ctx, id)
	if err != nil {
		return nil
	}
	return v
}

func (c *CachedRepository[T]) idOf(rec T) string {
	fields, err := record.ToMap(rec)
	if err != nil {
		return ""
	}
	return record.String(fields[c.idField])
}

// afterWrite runs once the base repository committed result.
func (c *CachedRepository[T]) afterWrite(ctx context.Context, prior any, result T) {
	c.entities.SaveEntityToCache(ctx, result)

	states := []any{result}
	if prior != nil {
		states = append([]any{prior}, states...)
	}
	c.queries.InvalidateCache(ctx, states...)

	c.syncIndex(ctx, result)
}

func (c *CachedRepository[T]) afterBulkCreate(ctx context.Context, results []T) {
	for _, result := range results {
		c.afterWrite(ctx, nil, result)
	}
}

// afterBulkUpdate drops the whole query cache since the old cluster values
// of the records are unknown.
func (c *CachedRepository[T]) afterBulkUpdate(ctx context.Context, results []T) {
	for _, result := range results {
		c.entities.SaveEntityToCache(ctx, result)
		c.syncIndex(ctx, result)
	}
	c.queries.InvalidateAll(ctx)
}

func (c *CachedRepository[T]) afterDelete(ctx context.Context, rec T) {
	id := c.idOf(rec)
	if id != "" {
		c.entities.DelEntityFromCache(ctx, id)
	}
	c.queries.InvalidateCache(ctx, rec)
	if c.sync != nil && id != "" {
		c.sync.DeleteData(ctx, id)
	}
}

// afterCriteriaWrite handles writes whose affected records are unknown.
func (c *CachedRepository[T]) afterCriteriaWrite(ctx context.Context) {
	c.entities.Clear(ctx)
	c.queries.InvalidateAll(ctx)
	if c.sync != nil {
		c.sync.InvalidatePageCache(ctx)
		c.logger.Warn("criteria delete not mirrored to search index", slog.String("entity", c.entity))
	}
}

// syncIndex writes active records to the index and removes inactive ones.
func (c *CachedRepository[T]) syncIndex(ctx context.Context, rec T) {
	if c.sync == nil {
		return
	}
	doc, err := record.ToMap(rec)
	if err != nil {
		c.logger.Warn("cannot index record", slog.String("entity", c.entity), slog.String("error", err.Error()))
		return
	}
	if c.idField != "id" {
		doc["id"] = doc[c.idField]
	}

	flag, present := doc[c.activityField]
	if !record.Truthy(flag, present) {
		c.sync.DeleteData(ctx, record.String(doc["id"]))
		return
	}
	c.sync.IndexData(ctx, doc, c.uniqueField)
}
