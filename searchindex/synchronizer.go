package searchindex

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/record"
	"github.com/goliatone/go-query-cache/query"
	"github.com/goliatone/go-query-cache/query/search"
	"github.com/goliatone/go-query-cache/querycache"
)

const (
	DefaultMaxAttempts = 25
	DefaultRetryWait   = 50 * time.Millisecond
	DefaultPageTTL     = 5 * time.Minute

	idField            = "id"
	uniqueCleanupLimit = 100
)

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// IndexResult reports the id written and whether the document was new.
type IndexResult struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// Synchronizer mirrors entity writes into one search index and keeps its
// page cache and the entity's query result cache coherent.
//
// Only compile errors are returned. Every index or cache failure is logged
// and the operation degrades to nil, an empty page or zero.
type Synchronizer struct {
	client      Client
	index       string
	pages       *cache.Service
	queries     *querycache.Cache
	pageTTL     time.Duration
	maxAttempts int
	retryWait   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

type Option func(*Synchronizer)

// WithPageCache enables the page cache on svc.
func WithPageCache(svc *cache.Service) Option {
	return func(s *Synchronizer) { s.pages = svc }
}

// WithQueryCache invalidates qc on every index write.
func WithQueryCache(qc *querycache.Cache) Option {
	return func(s *Synchronizer) { s.queries = qc }
}

func WithPageTTL(ttl time.Duration) Option {
	return func(s *Synchronizer) {
		if ttl > 0 {
			s.pageTTL = ttl
		}
	}
}

// WithRetry sets the attempt budget and the wait between attempts of
// UpdateIndex.
func WithRetry(attempts int, wait time.Duration) Option {
	return func(s *Synchronizer) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if wait >= 0 {
			s.retryWait = wait
		}
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(s *Synchronizer) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a synchronizer writing to index through client.
func New(client Client, index string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client:      client,
		index:       index,
		pageTTL:     DefaultPageTTL,
		maxAttempts: DefaultMaxAttempts,
		retryWait:   DefaultRetryWait,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("index", index))
	return s
}

func (s *Synchronizer) Index() string { return s.index }

// IndexData upserts doc with a synchronous refresh. When uniqueField is
// set, other documents sharing its value are deleted first. Returns nil
// when the write failed.
func (s *Synchronizer) IndexData(ctx context.Context, doc Document, uniqueField string) *IndexResult {
	id := record.String(doc[idField])
	if id == "" {
		s.logger.Warn("cannot index document without id")
		return nil
	}

	if uniqueField != "" {
		if value, ok := doc[uniqueField]; ok && value != nil {
			s.deleteDuplicates(ctx, id, uniqueField, value)
		}
	}

	created, err := s.client.Index(ctx, s.index, id, doc, true)
	if err != nil {
		s.logError("index write failed", err, slog.String("id", id))
		return nil
	}

	s.InvalidatePageCache(ctx)
	if s.queries != nil {
		s.queries.InvalidateCache(ctx, doc)
	}

	return &IndexResult{ID: id, Created: created}
}

// deleteDuplicates removes documents with field = value and an id other
// than id.
func (s *Synchronizer) deleteDuplicates(ctx context.Context, id, field string, value any) {
	expr := query.Logical{Op: query.And, Children: []query.Expr{
		query.Compare{Op: query.OpEq, Field: field, Value: value},
		query.Compare{Op: query.OpNe, Field: idField, Value: id},
	}}
	q := query.Emit[search.Query](expr, search.New(), false)

	res, err := s.client.Search(ctx, s.index, SearchRequest{Query: q, Size: uniqueCleanupLimit})
	if err != nil {
		s.logError("unique cleanup search failed", err, slog.String("field", field))
		return
	}

	for _, hit := range res.Hits {
		dupID := hit.ID
		if dupID == "" {
			dupID = record.String(hit.Source[idField])
		}
		if dupID == "" || dupID == id {
			continue
		}
		if _, err := s.client.Delete(ctx, s.index, dupID, true); err != nil {
			s.logError("unique cleanup delete failed", err, slog.String("id", dupID))
			continue
		}
		if s.queries != nil && hit.Source != nil {
			s.queries.InvalidateCache(ctx, hit.Source)
		}
		s.logger.Debug("removed duplicate document", slog.String("id", dupID), slog.String("field", field))
	}
}

// DeleteData removes the document and returns its prior state, or nil when
// it did not exist or the index failed.
func (s *Synchronizer) DeleteData(ctx context.Context, id string) Document {
	prior, found, err := s.client.Get(ctx, s.index, id)
	if err != nil {
		s.logError("index read failed", err, slog.String("id", id))
		return nil
	}

	if _, err := s.client.Delete(ctx, s.index, id, true); err != nil {
		s.logError("index delete failed", err, slog.String("id", id))
		return nil
	}

	s.InvalidatePageCache(ctx)
	if !found {
		return nil
	}
	if s.queries != nil {
		s.queries.InvalidateCache(ctx, prior)
	}
	return prior
}

// UpdateIndex runs script against every document matching filter. Version
// conflicts are retried after a fixed wait until the attempt budget is
// spent, then the last result is returned and the failure logged.
func (s *Synchronizer) UpdateIndex(ctx context.Context, filter any, script string, params map[string]any) (*UpdateResult, error) {
	q, err := search.Compile(filter)
	if err != nil {
		return nil, err
	}

	req := UpdateByQueryRequest{Query: q, Script: script, Params: params, Refresh: true}

	var (
		last    *UpdateResult
		lastErr error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.client.UpdateByQuery(ctx, s.index, req)
		conflict := errors.Is(err, ErrVersionConflict) || (err == nil && res.VersionConflicts > 0)

		if err != nil && !conflict {
			s.logError("scripted update failed", err, slog.Any("query", q), slog.String("script", script))
			return nil, nil
		}

		last, lastErr = &res, err
		if !conflict {
			s.afterBulkWrite(ctx)
			return last, nil
		}

		if attempt == s.maxAttempts {
			break
		}
		s.logger.Debug("scripted update conflicted, retrying", slog.Int("attempt", attempt))
		if err := s.sleep(ctx, s.retryWait); err != nil {
			s.logError("scripted update cancelled", err, slog.Int("attempt", attempt))
			return last, nil
		}
	}

	cache.LogError(s.logger, "scripted update abandoned",
		conflictExhausted(s.index, s.maxAttempts, q, script, lastErr))
	s.afterBulkWrite(ctx)
	return last, nil
}

func (s *Synchronizer) afterBulkWrite(ctx context.Context) {
	s.InvalidatePageCache(ctx)
	if s.queries != nil {
		s.queries.InvalidateAll(ctx)
	}
}

// GetDataByPage returns one page of documents matching req.Filter. When
// req.Cached is set the page is served from and stored in the page cache.
func (s *Synchronizer) GetDataByPage(ctx context.Context, req PageRequest) (Page, error) {
	q, err := search.Compile(req.Filter)
	if err != nil {
		return EmptyPage(), err
	}

	size := req.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	from := req.From
	if from < 0 {
		from = 0
	}

	cached := req.Cached && s.pages != nil
	key := PageKey(s.index, q, from, size, req.Sort)

	if cached {
		var page Page
		ok, err := s.pages.Load(ctx, key, &page)
		if err != nil {
			cache.LogError(s.logger, "page cache read failed", err, slog.String("key", key))
		}
		if ok {
			return page, nil
		}
	}

	res, err := s.client.Search(ctx, s.index, SearchRequest{Query: q, From: from, Size: size, Sort: req.Sort})
	if err != nil {
		s.logError("index search failed", err)
		return EmptyPage(), nil
	}
	page := newPage(res, size)

	if cached {
		if err := s.pages.Save(ctx, key, page, s.pageTTL); err != nil {
			cache.LogError(s.logger, "page cache write failed", err, slog.String("key", key))
		}
	}
	return page, nil
}

// GetDataByID returns the document or nil.
func (s *Synchronizer) GetDataByID(ctx context.Context, id string) Document {
	doc, found, err := s.client.Get(ctx, s.index, id)
	if err != nil {
		s.logError("index read failed", err, slog.String("id", id))
		return nil
	}
	if !found {
		return nil
	}
	return doc
}

// CountData counts documents matching filter.
func (s *Synchronizer) CountData(ctx context.Context, filter any) (int64, error) {
	q, err := search.Compile(filter)
	if err != nil {
		return 0, err
	}
	n, err := s.client.Count(ctx, s.index, q)
	if err != nil {
		s.logError("index count failed", err)
		return 0, nil
	}
	return n, nil
}

// InvalidatePageCache drops every cached page of the index.
func (s *Synchronizer) InvalidatePageCache(ctx context.Context) int {
	if s.pages == nil {
		return 0
	}
	prefix := PageCachePrefix(s.index)
	n, err := s.pages.DeleteByPrefix(ctx, prefix)
	if err != nil {
		cache.LogError(s.logger, "page cache invalidation failed", err, slog.String("prefix", prefix))
	}
	return n
}

func (s *Synchronizer) logError(msg string, err error, args ...any) {
	cache.LogError(s.logger, msg, cache.Unavailable(err, msg, nil), args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
