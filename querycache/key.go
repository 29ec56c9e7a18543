package querycache

import (
	"strings"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/record"
	"github.com/goliatone/go-query-cache/query"
)

const (
	// Prefix starts every query result key.
	Prefix = "qcache"
	// AllToken stands for a cluster dimension the query did not pin down.
	AllToken = "all"
	// signatureHead starts every cluster signature.
	signatureHead = "c"
)

// DefaultVolatileFields are stripped from extra params before hashing.
var DefaultVolatileFields = []string{"requestId"}

// ClusterSpec is the ordered list of fields that partition the cached
// list queries of one entity type.
type ClusterSpec []string

// BuildCacheKey returns qcache:<entity>:<signature>:<sha1hex>. The hash
// covers extra with the volatile fields removed; when volatile is empty
// DefaultVolatileFields apply.
func BuildCacheKey(entity string, spec ClusterSpec, where, extra map[string]any, volatile ...string) string {
	if len(volatile) == 0 {
		volatile = DefaultVolatileFields
	}
	return cache.Key(Prefix, entity, Signature(spec, where), cache.Fingerprint(stripVolatile(extra, volatile)))
}

// Signature encodes the cluster tokens of where: c, or c:<tok1>:<tok2>...
func Signature(spec ClusterSpec, where map[string]any) string {
	parts := make([]string, 0, len(spec)+1)
	parts = append(parts, signatureHead)
	for _, field := range spec {
		parts = append(parts, clusterToken(where, field))
	}
	return cache.Key(parts...)
}

// clusterToken finds field at the top level of where, then inside the
// children of a top level and. Only equality pins a dimension; any other
// operator, a list or a null leaves it at AllToken.
func clusterToken(where map[string]any, field string) string {
	value, ok := where[field]
	if !ok {
		value, ok = lookupInAnd(where, field)
	}
	if !ok {
		return AllToken
	}

	if op, isOp := value.(map[string]any); isOp {
		if len(op) != 1 {
			return AllToken
		}
		literal, hasEq := op[string(query.OpEq)]
		if !hasEq {
			return AllToken
		}
		value = literal
	}

	switch value.(type) {
	case nil, []any, []string, map[string]any:
		return AllToken
	}
	if value == query.NullLiteral {
		return AllToken
	}
	return record.Token(value)
}

func lookupInAnd(where map[string]any, field string) (any, bool) {
	var children []map[string]any
	switch list := where[string(query.And)].(type) {
	case []any:
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				children = append(children, m)
			}
		}
	case []map[string]any:
		children = list
	}

	for _, child := range children {
		if value, ok := child[field]; ok {
			return value, true
		}
	}
	return nil, false
}

func stripVolatile(extra map[string]any, volatile []string) map[string]any {
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for _, field := range volatile {
		delete(out, field)
	}
	return out
}

// Prefixes enumerates the 2^N key prefixes that can hold results matching
// rec: each dimension independently takes the record's value or AllToken.
// A dimension the record lacks only takes AllToken. Every prefix ends with
// the key separator so "books" never matches "bookshelf".
func Prefixes(entity string, spec ClusterSpec, rec map[string]any) []string {
	sigs := []string{signatureHead}
	for _, field := range spec {
		tokens := []string{AllToken}
		if v, ok := rec[field]; ok && v != nil {
			if s := record.Token(v); s != AllToken {
				tokens = append([]string{s}, tokens...)
			}
		}

		next := make([]string, 0, len(sigs)*len(tokens))
		for _, sig := range sigs {
			for _, tok := range tokens {
				next = append(next, sig+cache.KeySeparator+tok)
			}
		}
		sigs = next
	}

	out := make([]string, len(sigs))
	for i, sig := range sigs {
		out[i] = cache.Key(Prefix, entity, sig) + cache.KeySeparator
	}
	return out
}

// EntityPrefix matches every query result key of entity.
func EntityPrefix(entity string) string {
	return cache.Key(Prefix, entity) + cache.KeySeparator
}

// ParseKey splits a query result key into its entity, cluster signature
// and hash.
func ParseKey(key string) (entity, signature, hash string, ok bool) {
	if !strings.HasPrefix(key, Prefix+cache.KeySeparator) {
		return "", "", "", false
	}
	rest := strings.TrimPrefix(key, Prefix+cache.KeySeparator)
	first := strings.Index(rest, cache.KeySeparator)
	last := strings.LastIndex(rest, cache.KeySeparator)
	if first < 0 || last <= first {
		return "", "", "", false
	}
	return rest[:first], rest[first+1 : last], rest[last+1:], true
}
