package sqlstmt

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// canonicalKey returns a string that is equal for two values exactly when
// they are structurally equal: same type and same content at every level.
//
// Every node is encoded as a [type, payload] pair, so values of different
// types never share a key however deeply they are nested. Normalization
// before comparison:
//   - time.Time is compared as an instant (UTC, monotonic reading dropped)
//   - driver.Valuer values are compared by the value they produce
//   - pointers are compared by what they point to
//   - structs are compared by their exported fields
//   - map keys are compared in sorted order
//
// Values that cannot be normalized (funcs, channels, Valuers that fail)
// report ok=false and are never deduplicated.
func canonicalKey(v any) (key string, ok bool) {
	norm, ok := normalize(reflect.ValueOf(v), 0)
	if !ok {
		return "", false
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%T:%s", v, data), true
}

// maxDepth bounds recursion through self-referencing pointers.
const maxDepth = 32

var timeType = reflect.TypeOf(time.Time{})

// typeTag names t unambiguously: package path for named types, the type
// literal otherwise.
func typeTag(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func tagged(rv reflect.Value, payload any) []any {
	return []any{typeTag(rv.Type()), payload}
}

func normalize(rv reflect.Value, depth int) (any, bool) {
	if depth > maxDepth {
		return nil, false
	}
	if !rv.IsValid() {
		return nil, true
	}

	if rv.Type() == timeType {
		t := rv.Interface().(time.Time)
		return tagged(rv, t.UTC().Round(0).Format(time.RFC3339Nano)), true
	}

	if rv.CanInterface() {
		if valuer, isValuer := rv.Interface().(driver.Valuer); isValuer {
			if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
				return nil, true
			}
			dv, err := valuer.Value()
			if err != nil {
				return nil, false
			}
			inner, ok := normalize(reflect.ValueOf(dv), depth+1)
			if !ok {
				return nil, false
			}
			return tagged(rv, inner), true
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return normalize(rv.Elem(), depth+1)

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return tagged(rv, rv.Bytes()), true
		}
		return normalizeList(rv, depth)

	case reflect.Array:
		return normalizeList(rv, depth)

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, ok := normalize(iter.Value(), depth+1)
			if !ok {
				return nil, false
			}
			k := iter.Key()
			if k.Kind() == reflect.Interface && !k.IsNil() {
				k = k.Elem()
			}
			out[fmt.Sprintf("%s:%v", typeTag(k.Type()), k.Interface())] = elem
		}
		return tagged(rv, out), true

	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			elem, ok := normalize(rv.Field(i), depth+1)
			if !ok {
				return nil, false
			}
			out[f.Name] = elem
		}
		return tagged(rv, out), true

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false

	case reflect.Float32, reflect.Float64:
		// JSON cannot encode NaN or Inf.
		return tagged(rv, strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits())), true

	case reflect.Complex64, reflect.Complex128:
		return tagged(rv, fmt.Sprintf("%v", rv.Complex())), true

	default:
		if !rv.CanInterface() {
			return nil, false
		}
		return tagged(rv, rv.Interface()), true
	}
}

func normalizeList(rv reflect.Value, depth int) (any, bool) {
	out := make([]any, rv.Len())
	for i := range out {
		elem, ok := normalize(rv.Index(i), depth+1)
		if !ok {
			return nil, false
		}
		out[i] = elem
	}
	return tagged(rv, out), true
}
