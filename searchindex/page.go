package searchindex

import (
	"github.com/goliatone/go-query-cache/cache"
)

const (
	// PagePrefix starts every page cache key.
	PagePrefix = "elasticCache"

	DefaultPageSize = 10
)

// PageRequest asks for one page of documents matching Filter, a filter
// object in the query compiler grammar.
type PageRequest struct {
	From   int
	Size   int
	Filter any
	Sort   []any
	Cached bool
}

// Page is the paged result envelope.
type Page struct {
	Items         []Document `json:"items"`
	TotalRowCount int64      `json:"totalRowCount"`
	PageCount     int64      `json:"pageCount"`
}

// EmptyPage is returned when the index cannot be read.
func EmptyPage() Page {
	return Page{Items: []Document{}}
}

// PageKey is elasticCache:<index>:<sha1 of query, from and size>. The sort
// is part of the hash only when present.
func PageKey(index string, query map[string]any, from, size int, sort []any) string {
	parts := map[string]any{
		"query": query,
		"from":  from,
		"size":  size,
	}
	if len(sort) > 0 {
		parts["sort"] = sort
	}
	return cache.Key(PagePrefix, index, cache.Fingerprint(parts))
}

// PageCachePrefix is the prefix shared by every page of index.
func PageCachePrefix(index string) string {
	return cache.Key(PagePrefix, index) + cache.KeySeparator
}

func newPage(res SearchResult, size int) Page {
	items := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		items = append(items, hit.Source)
	}
	return Page{
		Items:         items,
		TotalRowCount: res.Total,
		PageCount:     pageCount(res.Total, size),
	}
}

func pageCount(total int64, size int) int64 {
	if total <= 0 || size <= 0 {
		return 0
	}
	s := int64(size)
	return (total + s - 1) / s
}
