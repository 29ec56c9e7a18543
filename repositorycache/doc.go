// Package repositorycache decorates go-repository-bun repositories with
// the entity point cache, the query result cache and an optional search
// index mirror.
//
// # Basic Usage
//
//	svc, err := cache.New(cache.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//
//	reviews := repositorycache.New[Review](base, svc,
//		repositorycache.WithClusterSpec("book_id"),
//		repositorycache.WithIndexFields("book_id", "user_id"),
//	)
//
//	review, err := reviews.GetByID(ctx, "r1")
//	page, total, err := reviews.ListWhere(ctx,
//		map[string]any{"book_id": "B1", "rating": map[string]any{"gte": 3}},
//		map[string]any{"limit": 20, "order": "created_at DESC"},
//	)
//
// # Reads
//
// GetByID without criteria is served from the entity point cache
// (ecache:<entity>:<id>). ListWhere and CountWhere take filter objects,
// compile them with the relational backend and cache the result under
// qcache:<entity>:<signature>:<hash>. FindCached answers equality lookups
// on index fields from the point cache alone. Criteria based reads, Tx
// reads and Raw pass through, since no key can be derived from a closure.
//
// A context built with WithoutCache skips cache lookups. Fresh results are
// still written back.
//
// # Writes
//
// Every successful write refreshes the point cache entry of the record and
// invalidates the list queries whose cluster signature matches the record
// before or after the change. Records whose activity field is false are
// removed from the point cache and from the search index. Bulk updates and
// criteria deletes cannot tell which clusters changed and drop every list
// query of the entity.
//
// Cache failures never fail a repository call. They are logged and the
// read falls back to the base repository.
//
// # Compatibility
//
// CachedRepository[T] implements repository.Repository[T] and can replace
// the base repository wherever it is used.
package repositorycache
