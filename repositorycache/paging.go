package repositorycache

import (
	"strconv"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const (
	opKey    = "op"
	whereKey = "where"
)

// queryParams copies extra and adds the read operation and the full filter,
// so list and count results never share a key and neither do filters that
// differ only outside the cluster fields.
func queryParams(op string, where, extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		out[k] = v
	}
	out[opKey] = op
	if len(where) > 0 {
		out[whereKey] = where
	}
	return out
}

// pageCriteria turns the limit, offset and order entries of extra into
// select criteria.
func pageCriteria(extra map[string]any) []repository.SelectCriteria {
	var out []repository.SelectCriteria

	if n, ok := toInt(extra["limit"]); ok && n > 0 {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Limit(n) })
	}
	if n, ok := toInt(extra["offset"]); ok && n > 0 {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Offset(n) })
	}

	var orders []string
	switch o := extra["order"].(type) {
	case string:
		orders = []string{o}
	case []string:
		orders = o
	case []any:
		for _, v := range o {
			if s, ok := v.(string); ok {
				orders = append(orders, s)
			}
		}
	}
	if len(orders) > 0 {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order(orders...) })
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
