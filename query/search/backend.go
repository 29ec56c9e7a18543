// Package search emits Elasticsearch query DSL from filter expressions.
package search

import (
	"strings"

	"github.com/goliatone/go-query-cache/query"
)

// Query is a node of the search query DSL.
type Query = map[string]any

// Backend renders expressions as search query DSL. A nil Query matches
// every document.
type Backend struct{}

var _ query.Backend[Query] = Backend{}

// New returns the search backend.
func New() Backend {
	return Backend{}
}

// Compile compiles a filter object to search query DSL.
func Compile(q any) (Query, error) {
	return query.Compile[Query](q, Backend{})
}

// CompileNegated compiles a filter object in negated context.
func CompileNegated(q any) (Query, error) {
	return query.CompileNegated[Query](q, Backend{})
}

func (Backend) Operators() query.OpSet { return query.CommonOps() }

func (Backend) Empty() Query { return nil }

func (Backend) Compare(c query.Compare) Query {
	switch c.Op {
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		return Query{"range": Query{c.Field: Query{string(c.Op): c.Value}}}
	}
	return Query{"term": Query{c.Field: c.Value}}
}

func (Backend) Set(s query.SetMembership) Query {
	return Query{"terms": Query{s.Field: s.Values}}
}

func (Backend) Pattern(p query.Pattern) Query {
	switch p.Op {
	case query.OpStarts:
		return Query{"prefix": Query{p.Field: Query{"value": p.Value}}}
	case query.OpEnds:
		return wildcard(p.Field, "*"+escapeWildcard(p.Value), false)
	case query.OpContains:
		return wildcard(p.Field, "*"+escapeWildcard(p.Value)+"*", false)
	case query.OpIlike:
		return wildcard(p.Field, likeToWildcard(p.Value), true)
	}
	return wildcard(p.Field, likeToWildcard(p.Value), false)
}

func (Backend) Range(r query.RangeCheck) Query {
	return Query{"range": Query{r.Field: Query{"gte": r.Lo, "lte": r.Hi}}}
}

func (Backend) Null(n query.NullCheck) Query {
	exists := Query{"exists": Query{"field": n.Field}}
	switch n.Op {
	case query.OpIsNull, query.OpNexists:
		return Query{"bool": Query{"must_not": exists}}
	}
	return exists
}

func (Backend) Logical(op query.LogicalOp, children []Query) Query {
	switch op {
	case query.Or:
		return Query{"bool": Query{"should": children, "minimum_should_match": 1}}
	case query.Nor:
		return Query{"bool": Query{"must_not": children}}
	}
	return Query{"bool": Query{"must": children}}
}

func (Backend) Negate(n Query) Query {
	return Query{"bool": Query{"must_not": n}}
}

func wildcard(field, pattern string, caseInsensitive bool) Query {
	body := Query{"value": pattern}
	if caseInsensitive {
		body["case_insensitive"] = true
	}
	return Query{"wildcard": Query{field: body}}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// likeToWildcard converts a SQL LIKE pattern into a wildcard pattern.
func likeToWildcard(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		case '*', '?', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
