// Package record converts entities to field maps so the caches and the
// index synchronizer can read ids, activity flags and index fields from any
// struct without reflection on each call site.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ToMap returns the fields of v keyed by their json names. Maps are returned
// as a shallow copy. Numbers decode as json.Number so 64-bit ids survive.
func ToMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, fmt.Errorf("record: nil value")
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("record: encode %T: %w", v, err)
	}
	var out map[string]any
	if err := decode(data, &out); err != nil {
		return nil, fmt.Errorf("record: %T is not an object: %w", v, err)
	}
	return out, nil
}

func decode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// Token renders a field value for a cache key segment through its JSON
// form, the same projection ToMap applies to records. A time.Time becomes
// its RFC 3339 text and an int64 keeps every digit, whether the value came
// from a filter literal or from an entity.
func Token(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return String(v)
	}
	var out any
	if err := decode(data, &out); err != nil {
		return String(v)
	}
	return String(out)
}

// String renders a field value as used in cache keys. Whole floats print
// without a fraction so ids decoded from JSON keep their natural form.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Truthy reports whether a flag value counts as set. Missing flags are
// treated as set so entities without the field stay cacheable.
func Truthy(v any, present bool) bool {
	if !present {
		return true
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		return err == nil && b
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return true
}
