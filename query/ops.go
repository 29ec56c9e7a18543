package query

import "strings"

// Op names a leaf operator of the filter vocabulary.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"

	OpIn        Op = "in"
	OpNin       Op = "nin"
	OpOverlap   Op = "overlap"
	OpNoverlap  Op = "noverlap"
	OpLike      Op = "like"
	OpNlike     Op = "nlike"
	OpIlike     Op = "ilike"
	OpNilike    Op = "nilike"
	OpStarts    Op = "starts"
	OpNstarts   Op = "nstarts"
	OpEnds      Op = "ends"
	OpNends     Op = "nends"
	OpContains  Op = "contains"
	OpNcontains Op = "ncontains"

	OpIsNull  Op = "isnull"
	OpNotNull Op = "notnull"
	OpExists  Op = "exists"
	OpNexists Op = "nexists"

	OpBetween  Op = "between"
	OpNbetween Op = "nbetween"
)

// LogicalOp names a compound operator.
type LogicalOp string

const (
	And LogicalOp = "and"
	Or  LogicalOp = "or"
	Not LogicalOp = "not"
	Nor LogicalOp = "nor"
)

// IsLogical reports whether key is a logical operator marker.
func IsLogical(key string) bool {
	switch LogicalOp(key) {
	case And, Or, Not, Nor:
		return true
	}
	return false
}

type opKind int

const (
	kindUnknown opKind = iota
	kindCompare
	kindSet
	kindPattern
	kindRange
	kindNull
)

var kinds = map[Op]opKind{
	OpEq: kindCompare, OpNe: kindCompare, OpGt: kindCompare,
	OpGte: kindCompare, OpLt: kindCompare, OpLte: kindCompare,

	OpIn: kindSet, OpNin: kindSet, OpOverlap: kindSet, OpNoverlap: kindSet,

	OpLike: kindPattern, OpNlike: kindPattern, OpIlike: kindPattern, OpNilike: kindPattern,
	OpStarts: kindPattern, OpNstarts: kindPattern, OpEnds: kindPattern, OpNends: kindPattern,
	OpContains: kindPattern, OpNcontains: kindPattern,

	OpIsNull: kindNull, OpNotNull: kindNull, OpExists: kindNull, OpNexists: kindNull,

	OpBetween: kindRange, OpNbetween: kindRange,
}

// negatives maps each negative operator to the positive form it negates.
var negatives = map[Op]Op{
	OpNe:        OpEq,
	OpNin:       OpIn,
	OpNoverlap:  OpOverlap,
	OpNlike:     OpLike,
	OpNilike:    OpIlike,
	OpNstarts:   OpStarts,
	OpNends:     OpEnds,
	OpNcontains: OpContains,
	OpNbetween:  OpBetween,
}

var aliases = map[string]Op{
	"neq":       OpNe,
	"notin":     OpNin,
	"notlike":   OpNlike,
	"notilike":  OpNilike,
	"isnotnull": OpNotNull,
}

// Positive returns the positive form of op and whether op was negative.
func (op Op) Positive() (Op, bool) {
	if pos, ok := negatives[op]; ok {
		return pos, true
	}
	return op, false
}

// Inverse returns the complementary null check operator.
func (op Op) Inverse() Op {
	switch op {
	case OpIsNull:
		return OpNotNull
	case OpNotNull:
		return OpIsNull
	case OpExists:
		return OpNexists
	case OpNexists:
		return OpExists
	}
	return op
}

func normalizeOp(name string) Op {
	name = strings.ToLower(strings.TrimSpace(name))
	if op, ok := aliases[name]; ok {
		return op
	}
	return Op(name)
}

// OpSet is the set of leaf operators a backend registers.
type OpSet map[Op]struct{}

// Ops builds an OpSet from ops.
func Ops(ops ...Op) OpSet {
	set := make(OpSet, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// Has reports whether op is registered.
func (s OpSet) Has(op Op) bool {
	_, ok := s[op]
	return ok
}

// With returns a copy of s extended with ops.
func (s OpSet) With(ops ...Op) OpSet {
	out := make(OpSet, len(s)+len(ops))
	for op := range s {
		out[op] = struct{}{}
	}
	for _, op := range ops {
		out[op] = struct{}{}
	}
	return out
}

// CommonOps returns the operators shared by every backend.
func CommonOps() OpSet {
	return Ops(
		OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
		OpIn, OpNin, OpOverlap, OpNoverlap,
		OpLike, OpNlike, OpIlike, OpNilike,
		OpStarts, OpNstarts, OpEnds, OpNends, OpContains, OpNcontains,
		OpIsNull, OpNotNull,
		OpBetween, OpNbetween,
	)
}
