package query

// Expr is a node of the parsed filter tree.
//
// Expr is sealed: only the node types of this package implement it, so
// backends can switch over them exhaustively.
type Expr interface {
	exprNode()
}

// Compare is a scalar comparison: eq, ne, gt, gte, lt, lte.
type Compare struct {
	Op    Op
	Field string
	Value any
}

// SetMembership tests a field against a list: in, nin, overlap, noverlap.
type SetMembership struct {
	Op     Op
	Field  string
	Values []any
}

// Pattern is a string match: like, ilike, starts, ends, contains and their negations.
type Pattern struct {
	Op    Op
	Field string
	Value string
}

// RangeCheck is an inclusive two sided range: between, nbetween.
type RangeCheck struct {
	Op    Op
	Field string
	Lo    any
	Hi    any
}

// NullCheck tests presence: isnull, notnull, exists, nexists.
type NullCheck struct {
	Op    Op
	Field string
}

// Logical combines children with and, or, not or nor.
// A not node has exactly one child.
type Logical struct {
	Op       LogicalOp
	Children []Expr
}

func (Compare) exprNode()       {}
func (SetMembership) exprNode() {}
func (Pattern) exprNode()       {}
func (RangeCheck) exprNode()    {}
func (NullCheck) exprNode()     {}
func (Logical) exprNode()       {}
