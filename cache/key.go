package cache

import (
	"crypto/sha1"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	hex "github.com/tmthrgd/go-hex"
)

// KeySeparator joins cache key segments.
const KeySeparator = ":"

// Key joins segments into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// Fingerprint is the lowercase hex sha1 of the canonical form of v.
func Fingerprint(v any) string {
	sum := sha1.Sum([]byte(Canonical(v)))
	return hex.EncodeToString(sum[:])
}

// Canonical renders v deterministically: map keys are sorted, numbers
// print without a type so 3 and 3.0 agree, strings are quoted. Functions
// and channels carry no stable identity and render as their kind.
func Canonical(v any) string {
	var b strings.Builder
	writeCanonical(&b, reflect.ValueOf(v))
	return b.String()
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func writeCanonical(b *strings.Builder, rv reflect.Value) {
	if !rv.IsValid() {
		b.WriteString("null")
		return
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
	}

	if rv.CanInterface() && (rv.Type().Implements(jsonMarshalerType) || rv.Type().Implements(textMarshalerType)) {
		if data, err := json.Marshal(rv.Interface()); err == nil {
			b.Write(data)
			return
		}
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		writeCanonical(b, rv.Elem())

	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))

	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))

	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'f', -1, 64))

	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b.WriteString("0x")
			b.WriteString(hex.EncodeToString(rv.Bytes()))
			return
		}
		writeList(b, rv)

	case reflect.Array:
		writeList(b, rv)

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		writeMap(b, rv)

	case reflect.Struct:
		writeStruct(b, rv)

	default:
		// func, chan, complex, unsafe pointer
		b.WriteString(rv.Kind().String())
	}
}

func writeList(b *strings.Builder, rv reflect.Value) {
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonical(b, rv.Index(i))
	}
	b.WriteByte(']')
}

func writeMap(b *strings.Builder, rv reflect.Value) {
	type pair struct {
		key   string
		value reflect.Value
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb strings.Builder
		writeCanonical(&kb, iter.Key())
		pairs = append(pairs, pair{key: kb.String(), value: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		b.WriteByte(':')
		writeCanonical(b, p.value)
	}
	b.WriteByte('}')
}

func writeStruct(b *strings.Builder, rv reflect.Value) {
	rt := rv.Type()
	b.WriteString(rt.Name())
	b.WriteByte('{')
	first := true
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(b, "%s:", field.Name)
		writeCanonical(b, rv.Field(i))
	}
	b.WriteByte('}')
}
