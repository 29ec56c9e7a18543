// Package relational emits bun WHERE clauses from filter expressions.
package relational

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-query-cache/query"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

// Clause is a WHERE fragment using bun "?" placeholders. Field names are
// passed as bun.Ident arguments so the dialect quotes them.
type Clause struct {
	Query string
	Args  []any
}

// IsEmpty reports whether the clause matches every row.
func (c Clause) IsEmpty() bool {
	return c.Query == ""
}

// Apply adds the clause to a select query.
func (c Clause) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if c.IsEmpty() {
		return q
	}
	return q.Where(c.Query, c.Args...)
}

// Criteria adapts the clause to a repository select criteria.
func (c Clause) Criteria() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return c.Apply(q)
	}
}

// Format renders the clause with its arguments inlined for dialect.
func (c Clause) Format(dialect schema.Dialect) string {
	if c.IsEmpty() {
		return ""
	}
	return schema.NewFormatter(dialect).FormatQuery(c.Query, c.Args...)
}

// Backend renders expressions as bun WHERE clauses.
type Backend struct{}

var _ query.Backend[Clause] = Backend{}

// New returns the relational backend.
func New() Backend {
	return Backend{}
}

// Compile compiles a filter object to a WHERE clause.
func Compile(q any) (Clause, error) {
	return query.Compile[Clause](q, Backend{})
}

// CompileNegated compiles a filter object in negated context.
func CompileNegated(q any) (Clause, error) {
	return query.CompileNegated[Clause](q, Backend{})
}

var comparators = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func (Backend) Operators() query.OpSet { return query.CommonOps() }

func (Backend) Empty() Clause { return Clause{} }

func (Backend) Compare(c query.Compare) Clause {
	sign, ok := comparators[c.Op]
	if !ok {
		sign = "="
	}
	return Clause{Query: "? " + sign + " ?", Args: []any{bun.Ident(c.Field), c.Value}}
}

func (Backend) Set(s query.SetMembership) Clause {
	if s.Op == query.OpOverlap {
		return Clause{Query: "? && ?", Args: []any{bun.Ident(s.Field), pgdialect.Array(s.Values)}}
	}
	if len(s.Values) == 0 {
		return Clause{Query: "1 = 0"}
	}
	return Clause{Query: "? IN (?)", Args: []any{bun.Ident(s.Field), bun.In(s.Values)}}
}

func (Backend) Pattern(p query.Pattern) Clause {
	field := bun.Ident(p.Field)
	switch p.Op {
	case query.OpIlike:
		return Clause{Query: "LOWER(?) LIKE LOWER(?)", Args: []any{field, p.Value}}
	case query.OpStarts:
		return likeEscaped(field, escapeLike(p.Value)+"%")
	case query.OpEnds:
		return likeEscaped(field, "%"+escapeLike(p.Value))
	case query.OpContains:
		return likeEscaped(field, "%"+escapeLike(p.Value)+"%")
	}
	return Clause{Query: "? LIKE ?", Args: []any{field, p.Value}}
}

func (Backend) Range(r query.RangeCheck) Clause {
	return Clause{Query: "? BETWEEN ? AND ?", Args: []any{bun.Ident(r.Field), r.Lo, r.Hi}}
}

func (Backend) Null(n query.NullCheck) Clause {
	switch n.Op {
	case query.OpIsNull, query.OpNexists:
		return Clause{Query: "? IS NULL", Args: []any{bun.Ident(n.Field)}}
	}
	return Clause{Query: "? IS NOT NULL", Args: []any{bun.Ident(n.Field)}}
}

func (Backend) Logical(op query.LogicalOp, children []Clause) Clause {
	sep := " AND "
	if op == query.Or || op == query.Nor {
		sep = " OR "
	}

	parts := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		parts = append(parts, child.Query)
		args = append(args, child.Args...)
	}

	out := Clause{Query: "(" + strings.Join(parts, sep) + ")", Args: args}
	if op == query.Nor {
		out.Query = "NOT " + out.Query
	}
	return out
}

func (Backend) Negate(n Clause) Clause {
	return Clause{Query: "NOT (" + n.Query + ")", Args: n.Args}
}

func likeEscaped(field bun.Ident, pattern string) Clause {
	return Clause{Query: `? LIKE ? ESCAPE '\'`, Args: []any{field, pattern}}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
