package rowdecode

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/typedpg/internal/dberr"
)

// Struct returns a schema that decodes rows into the struct type T.
//
// Mapping rules:
//   - a field binds to the column named by its `db:"name"` tag, otherwise to
//     the column matching its name case-insensitively with underscores
//     ignored (UserID matches "user_id", "userId" and "userid")
//   - `db:"-"` skips a field; `db:"name,optional"` allows the column to be
//     absent
//   - embedded structs without a tag are flattened
//   - extra columns are ignored
//
// Validation is strict: a missing column, a NULL for a non-nullable field,
// or a value that does not convert without loss is a failure. Pointer
// fields, interface fields and sql.Scanner fields accept NULL.
//
// Struct panics if T is not a struct type.
func Struct[T any]() Schema[T] {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		panic(fmt.Sprintf("rowdecode: Struct requires a struct type, got %s", rt))
	}
	return structSchema[T]{rt: rt, idx: indexFor(rt)}
}

type structSchema[T any] struct {
	rt  reflect.Type
	idx *structIndex
}

func (s structSchema[T]) Name() string { return s.rt.String() }

func (s structSchema[T]) Decode(row Row) (T, []dberr.FieldError) {
	var out T
	root := reflect.ValueOf(&out).Elem()

	byKey := make(map[string]string, len(row))
	for col := range row {
		byKey[normalizeName(col)] = col
	}

	var failures []dberr.FieldError
	for _, f := range s.idx.fields {
		col, present := byKey[f.key]
		if !present {
			if !f.optional {
				failures = append(failures, dberr.FieldError{Path: f.column, Message: "missing column"})
			}
			continue
		}
		dst := root.FieldByIndex(f.path)
		if msg := assign(dst, row[col]); msg != "" {
			failures = append(failures, dberr.FieldError{Path: col, Message: msg})
		}
	}
	if len(failures) > 0 {
		return out, failures
	}
	return out, nil
}

// structIndex is the per-type field list, built once and cached.
type structIndex struct {
	fields []indexedField
}

type indexedField struct {
	column   string // declared column name, for error paths
	key      string // normalized column name used for lookup
	path     []int
	optional bool
}

var structIndexCache sync.Map // reflect.Type -> *structIndex

func indexFor(rt reflect.Type) *structIndex {
	if v, ok := structIndexCache.Load(rt); ok {
		return v.(*structIndex)
	}
	idx := buildStructIndex(rt)
	actual, _ := structIndexCache.LoadOrStore(rt, idx)
	return actual.(*structIndex)
}

func buildStructIndex(rt reflect.Type) *structIndex {
	idx := &structIndex{}
	seen := make(map[string]struct{})

	var walk func(t reflect.Type, base []int)
	walk = func(t reflect.Type, base []int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() && !sf.Anonymous {
				continue
			}
			tag := sf.Tag.Get("db")
			if tag == "-" {
				continue
			}
			name, optional := parseTag(tag)
			path := append(append([]int(nil), base...), i)

			if sf.Anonymous && tag == "" && sf.Type.Kind() == reflect.Struct {
				walk(sf.Type, path)
				continue
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			key := normalizeName(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			idx.fields = append(idx.fields, indexedField{
				column:   name,
				key:      key,
				path:     path,
				optional: optional,
			})
		}
	}
	walk(rt, nil)
	return idx
}

// parseTag supports "col", "col,optional" and ",optional".
func parseTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "optional" {
			optional = true
		}
	}
	return name, optional
}

func normalizeName(s string) string {
	if l := len(s); l >= 2 && s[0] == '"' && s[l-1] == '"' {
		s = s[1 : l-1]
	}
	s = strings.ReplaceAll(s, "_", "")
	return strings.ToLower(s)
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	bytesType   = reflect.TypeOf([]byte(nil))
)

// assign stores v into dst, returning a failure message or "".
func assign(dst reflect.Value, v any) string {
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		if err := dst.Addr().Interface().(sql.Scanner).Scan(v); err != nil {
			return err.Error()
		}
		return ""
	}

	if v == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			dst.SetZero()
			return ""
		default:
			return fmt.Sprintf("null value for non-nullable %s", dst.Type())
		}
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if msg := assign(elem.Elem(), v); msg != "" {
			return msg
		}
		dst.Set(elem)
		return ""
	}

	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return ""
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asInt(src)
		if !ok || dst.OverflowInt(n) {
			return mismatch(dst.Type(), v)
		}
		dst.SetInt(n)
		return ""

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := asInt(src)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			return mismatch(dst.Type(), v)
		}
		dst.SetUint(uint64(n))
		return ""

	case reflect.Float32, reflect.Float64:
		var f float64
		switch src.Kind() {
		case reflect.Float32, reflect.Float64:
			f = src.Float()
		default:
			return mismatch(dst.Type(), v)
		}
		if dst.Kind() == reflect.Float32 && !math.IsInf(f, 0) && !math.IsNaN(f) && dst.OverflowFloat(f) {
			return mismatch(dst.Type(), v)
		}
		dst.SetFloat(f)
		return ""

	case reflect.String:
		if src.Type() == bytesType {
			dst.SetString(string(src.Bytes()))
			return ""
		}
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return ""
		}

	case reflect.Slice:
		if dst.Type() == bytesType && src.Kind() == reflect.String {
			dst.SetBytes([]byte(src.String()))
			return ""
		}
		if src.Kind() == reflect.Slice {
			out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
			for i := 0; i < src.Len(); i++ {
				if msg := assign(out.Index(i), src.Index(i).Interface()); msg != "" {
					return fmt.Sprintf("element %d: %s", i, msg)
				}
			}
			dst.Set(out)
			return ""
		}
	}

	return mismatch(dst.Type(), v)
}

func asInt(src reflect.Value) (int64, bool) {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return src.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := src.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

func mismatch(want reflect.Type, got any) string {
	return fmt.Sprintf("expected %s, got %T", want, got)
}
