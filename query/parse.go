package query

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// NullLiteral is the string literal compared against to test for absence.
const NullLiteral = "null"

// Parse turns a generic nested filter object into an expression tree.
//
// ops lists the leaf operators the target backend registers; operators
// outside the set fall back to equality. A nil or empty filter returns a
// nil Expr, which matches everything.
func Parse(q any, ops OpSet) (Expr, error) {
	if ops == nil {
		ops = CommonOps()
	}
	p := parser{ops: ops}
	return p.parse(q, "")
}

type parser struct {
	ops OpSet
}

func (p parser) parse(q any, path string) (Expr, error) {
	if q == nil {
		return nil, nil
	}
	if m, ok := asMap(q); ok {
		return p.parseObject(m, path)
	}
	if list, ok := asList(q); ok {
		return p.parseList(And, list, path)
	}
	return nil, compileError(path, "filter must be an object or a list, got %T", q)
}

func (p parser) parseObject(m map[string]any, path string) (Expr, error) {
	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		for key, value := range m {
			return p.parsePair(key, value, join(path, key))
		}
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	children := make([]Expr, 0, len(keys))
	for _, key := range keys {
		child, err := p.parsePair(key, m[key], join(path, key))
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return conjunction(children), nil
}

func (p parser) parsePair(key string, value any, path string) (Expr, error) {
	if IsLogical(key) {
		return p.parseLogical(LogicalOp(key), value, path)
	}
	return p.parseField(key, value, path)
}

func (p parser) parseLogical(op LogicalOp, value any, path string) (Expr, error) {
	if op == Not {
		var (
			child Expr
			err   error
		)
		switch {
		case isMap(value):
			child, err = p.parse(value, path)
		case isList(value):
			list, _ := asList(value)
			child, err = p.parseList(And, list, path)
		default:
			return nil, compileError(path, "not expects a sub-query, got %T", value)
		}
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, compileError(path, "not expects a non-empty sub-query")
		}
		return Logical{Op: Not, Children: []Expr{child}}, nil
	}

	list, ok := asList(value)
	if !ok {
		return nil, compileError(path, "%s expects a list of sub-queries, got %T", op, value)
	}
	return p.parseList(op, list, path)
}

func (p parser) parseList(op LogicalOp, list []any, path string) (Expr, error) {
	children := make([]Expr, 0, len(list))
	for i, item := range list {
		itemPath := path + "[" + strconv.Itoa(i) + "]"
		if !isMap(item) && !isList(item) {
			return nil, compileError(itemPath, "%s children must be sub-queries, got %T", op, item)
		}
		child, err := p.parse(item, itemPath)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}

	if len(children) == 0 {
		return nil, nil
	}
	if op == And {
		return conjunction(children), nil
	}
	return Logical{Op: op, Children: children}, nil
}

func (p parser) parseField(field string, value any, path string) (Expr, error) {
	if field == "" {
		return nil, compileError(path, "empty field name")
	}

	if value == nil {
		return NullCheck{Op: OpIsNull, Field: field}, nil
	}

	if m, ok := asMap(value); ok {
		if len(m) != 1 {
			return nil, compileError(path, "operator object for %q must have exactly one key, got %d", field, len(m))
		}
		for name, operand := range m {
			return p.leaf(field, normalizeOp(name), operand, join(path, name))
		}
	}

	if list, ok := asList(value); ok {
		return SetMembership{Op: OpIn, Field: field, Values: list}, nil
	}

	return compare(OpEq, field, value), nil
}

func (p parser) leaf(field string, op Op, operand any, path string) (Expr, error) {
	if !p.ops.Has(op) {
		return compare(OpEq, field, operand), nil
	}

	switch kinds[op] {
	case kindCompare:
		return compare(op, field, operand), nil

	case kindSet:
		values, ok := asList(operand)
		if !ok {
			values = []any{operand}
		}
		return SetMembership{Op: op, Field: field, Values: values}, nil

	case kindPattern:
		s, ok := operand.(string)
		if !ok {
			s = fmt.Sprint(operand)
		}
		return Pattern{Op: op, Field: field, Value: s}, nil

	case kindRange:
		bounds, ok := asList(operand)
		if !ok || len(bounds) != 2 {
			return nil, compileError(path, "%s on %q expects [low, high]", op, field)
		}
		return RangeCheck{Op: op, Field: field, Lo: bounds[0], Hi: bounds[1]}, nil

	case kindNull:
		if b, ok := operand.(bool); ok && !b {
			op = op.Inverse()
		}
		return NullCheck{Op: op, Field: field}, nil
	}

	return compare(OpEq, field, operand), nil
}

// compare builds a comparison, turning equality against null into a null check.
func compare(op Op, field string, value any) Expr {
	if op == OpEq || op == OpNe {
		if value == nil || value == NullLiteral {
			if op == OpEq {
				return NullCheck{Op: OpIsNull, Field: field}
			}
			return NullCheck{Op: OpNotNull, Field: field}
		}
	}
	return Compare{Op: op, Field: field, Value: value}
}

func conjunction(children []Expr) Expr {
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return Logical{Op: And, Children: children}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func isMap(v any) bool {
	_, ok := asMap(v)
	return ok
}

func isList(v any) bool {
	_, ok := asList(v)
	return ok
}

// asMap accepts map[string]any and any named map type with string keys,
// such as bson.M.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList accepts []any and any other slice or array except byte slices.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []any:
		return l, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
