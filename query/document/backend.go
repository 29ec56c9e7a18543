// Package document emits MongoDB filters from filter expressions.
package document

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-query-cache/query"
	"go.mongodb.org/mongo-driver/bson"
)

// IDField is the native identifier field of the document store.
const IDField = "_id"

// Filter is a MongoDB filter document.
type Filter = bson.M

// Backend renders expressions as MongoDB filters.
type Backend struct{}

var (
	_ query.Backend[Filter] = Backend{}
	_ query.Preparer        = Backend{}
)

// New returns the document backend.
func New() Backend {
	return Backend{}
}

// Compile compiles a filter object to a MongoDB filter.
func Compile(q any) (Filter, error) {
	return query.Compile[Filter](q, Backend{})
}

// CompileNegated compiles a filter object in negated context.
func CompileNegated(q any) (Filter, error) {
	return query.CompileNegated[Filter](q, Backend{})
}

func (Backend) Operators() query.OpSet {
	return query.CommonOps().With(query.OpExists, query.OpNexists)
}

// Prepare rewrites the id field to the store identifier.
func (Backend) Prepare(q any) any {
	return RewriteID(q)
}

func (Backend) Empty() Filter { return Filter{} }

func (Backend) Compare(c query.Compare) Filter {
	if c.Op == query.OpEq {
		return Filter{c.Field: c.Value}
	}
	return Filter{c.Field: bson.M{"$" + string(c.Op): c.Value}}
}

func (Backend) Set(s query.SetMembership) Filter {
	return Filter{s.Field: bson.M{"$in": bson.A(s.Values)}}
}

func (Backend) Pattern(p query.Pattern) Filter {
	var pattern string
	switch p.Op {
	case query.OpStarts:
		pattern = "^" + regexp.QuoteMeta(p.Value)
	case query.OpEnds:
		pattern = regexp.QuoteMeta(p.Value) + "$"
	case query.OpContains:
		pattern = regexp.QuoteMeta(p.Value)
	default:
		pattern = likeToRegex(p.Value)
	}

	cond := bson.M{"$regex": pattern}
	if p.Op == query.OpIlike {
		cond["$options"] = "i"
	}
	return Filter{p.Field: cond}
}

func (Backend) Range(r query.RangeCheck) Filter {
	return Filter{r.Field: bson.M{"$gte": r.Lo, "$lte": r.Hi}}
}

func (Backend) Null(n query.NullCheck) Filter {
	switch n.Op {
	case query.OpIsNull:
		return Filter{n.Field: nil}
	case query.OpNotNull:
		return Filter{n.Field: bson.M{"$ne": nil}}
	case query.OpNexists:
		return Filter{n.Field: bson.M{"$exists": false}}
	}
	return Filter{n.Field: bson.M{"$exists": true}}
}

func (Backend) Logical(op query.LogicalOp, children []Filter) Filter {
	list := make(bson.A, 0, len(children))
	for _, child := range children {
		list = append(list, child)
	}
	return Filter{"$" + string(op): list}
}

func (Backend) Negate(n Filter) Filter {
	return Filter{"$nor": bson.A{n}}
}

// RewriteID renames every "id" key to the store identifier, recursively
// through nested maps and lists. Other keys are left untouched.
func RewriteID(q any) any {
	switch v := q.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[renameID(key)] = RewriteID(value)
		}
		return out
	case bson.M:
		out := make(bson.M, len(v))
		for key, value := range v {
			out[renameID(key)] = RewriteID(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RewriteID(item)
		}
		return out
	case bson.A:
		out := make(bson.A, len(v))
		for i, item := range v {
			out[i] = RewriteID(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RewriteID(item)
		}
		return out
	}
	return q
}

func renameID(key string) string {
	if key == "id" {
		return IDField
	}
	return key
}

// likeToRegex converts a SQL LIKE pattern into an anchored regular expression.
func likeToRegex(s string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range s {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}
