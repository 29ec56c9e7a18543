package query

// Backend emits the native query of one store from expression nodes.
//
// Leaf methods only ever receive positive operators (eq, gt, gte, lt, lte,
// in, overlap, like, ilike, starts, ends, contains, between) plus the four
// null checks; negative operators reach the backend as Negate around the
// positive form. Logical receives and, or and nor.
type Backend[N any] interface {
	Operators() OpSet
	Empty() N
	Compare(c Compare) N
	Set(s SetMembership) N
	Pattern(p Pattern) N
	Range(r RangeCheck) N
	Null(n NullCheck) N
	Logical(op LogicalOp, children []N) N
	Negate(n N) N
}

// Preparer is implemented by backends that rewrite the raw filter object
// before parsing.
type Preparer interface {
	Prepare(q any) any
}

// Compile parses q and emits it for backend b.
func Compile[N any](q any, b Backend[N]) (N, error) {
	return compile(q, b, false)
}

// CompileNegated compiles q in negated context.
func CompileNegated[N any](q any, b Backend[N]) (N, error) {
	return compile(q, b, true)
}

func compile[N any](q any, b Backend[N], negate bool) (N, error) {
	if p, ok := any(b).(Preparer); ok {
		q = p.Prepare(q)
	}

	expr, err := Parse(q, b.Operators())
	if err != nil {
		var zero N
		return zero, err
	}
	return Emit(expr, b, negate), nil
}

// Emit renders a parsed expression for backend b.
func Emit[N any](expr Expr, b Backend[N], negate bool) N {
	switch e := expr.(type) {
	case nil:
		return b.Empty()

	case Logical:
		if e.Op == Not {
			return Emit(conjunction(e.Children), b, !negate)
		}
		children := make([]N, 0, len(e.Children))
		for _, child := range e.Children {
			children = append(children, Emit(child, b, false))
		}
		return wrap(b, b.Logical(e.Op, children), negate)

	case NullCheck:
		if negate {
			e.Op = e.Op.Inverse()
		}
		return b.Null(e)

	case Compare:
		op, neg := e.Op.Positive()
		e.Op = op
		return wrap(b, b.Compare(e), negate != neg)

	case SetMembership:
		op, neg := e.Op.Positive()
		e.Op = op
		return wrap(b, b.Set(e), negate != neg)

	case Pattern:
		op, neg := e.Op.Positive()
		e.Op = op
		return wrap(b, b.Pattern(e), negate != neg)

	case RangeCheck:
		op, neg := e.Op.Positive()
		e.Op = op
		return wrap(b, b.Range(e), negate != neg)
	}

	return b.Empty()
}

func wrap[N any](b Backend[N], n N, negate bool) N {
	if negate {
		return b.Negate(n)
	}
	return n
}
