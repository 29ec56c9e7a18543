package searchindex

import (
	"context"
	"errors"
)

// Document is the JSON source of an index document. It carries its id
// under the "id" key.
type Document = map[string]any

// ErrVersionConflict is returned by a Client when a scripted update raced
// with a concurrent writer.
var ErrVersionConflict = errors.New("searchindex: version conflict")

// Hit is one search result.
type Hit struct {
	ID     string
	Source Document
}

type SearchRequest struct {
	Query map[string]any
	From  int
	Size  int
	Sort  []any
}

type SearchResult struct {
	Hits  []Hit
	Total int64
}

type UpdateByQueryRequest struct {
	Query   map[string]any
	Script  string
	Params  map[string]any
	Refresh bool
}

// UpdateResult reports the outcome of a scripted update.
type UpdateResult struct {
	Total            int64 `json:"total"`
	Updated          int64 `json:"updated"`
	Noops            int64 `json:"noops"`
	VersionConflicts int64 `json:"version_conflicts"`
}

// Client is the subset of a search engine the Synchronizer needs. A nil
// query matches every document.
type Client interface {
	Search(ctx context.Context, index string, req SearchRequest) (SearchResult, error)
	Get(ctx context.Context, index, id string) (Document, bool, error)
	// Index upserts doc and reports whether it was created.
	Index(ctx context.Context, index, id string, doc Document, refresh bool) (bool, error)
	// Delete reports whether the document existed.
	Delete(ctx context.Context, index, id string, refresh bool) (bool, error)
	UpdateByQuery(ctx context.Context, index string, req UpdateByQueryRequest) (UpdateResult, error)
	Count(ctx context.Context, index string, query map[string]any) (int64, error)
}
