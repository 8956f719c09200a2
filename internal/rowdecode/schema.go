package rowdecode

import (
	"fmt"
	"reflect"

	"github.com/roach88/typedpg/internal/dberr"
)

// Schema validates a raw row and decodes it into T.
//
// Decode returns either a value or at least one failure; a schema never
// substitutes a zero value for data it could not validate.
type Schema[T any] interface {
	// Name identifies the schema in validation errors.
	Name() string
	Decode(row Row) (T, []dberr.FieldError)
}

// Validate runs schema against row and maps failures to a
// RowValidationError.
func Validate[T any](schema Schema[T], row Row) (T, error) {
	v, failures := schema.Decode(row)
	if len(failures) > 0 {
		var zero T
		return zero, &dberr.RowValidationError{
			Schema:   schema.Name(),
			Value:    row,
			Failures: failures,
		}
	}
	return v, nil
}

// Rows accepts any row and returns it unchanged.
func Rows() Schema[Row] {
	return rowSchema{}
}

type rowSchema struct{}

func (rowSchema) Name() string { return "Row" }

func (rowSchema) Decode(row Row) (Row, []dberr.FieldError) {
	return row, nil
}

// Scalar decodes rows that have exactly one column into T, using the same
// conversion rules as struct fields.
func Scalar[T any]() Schema[T] {
	return scalarSchema[T]{rt: reflect.TypeOf((*T)(nil)).Elem()}
}

type scalarSchema[T any] struct {
	rt reflect.Type
}

func (s scalarSchema[T]) Name() string { return s.rt.String() }

func (s scalarSchema[T]) Decode(row Row) (T, []dberr.FieldError) {
	var out T
	if len(row) != 1 {
		return out, []dberr.FieldError{{Message: fmt.Sprintf("expected exactly 1 column, got %d", len(row))}}
	}
	for col, v := range row {
		dst := reflect.ValueOf(&out).Elem()
		if msg := assign(dst, v); msg != "" {
			return out, []dberr.FieldError{{Path: col, Message: msg}}
		}
	}
	return out, nil
}

// Func adapts a decode function into a Schema.
func Func[T any](name string, decode func(Row) (T, []dberr.FieldError)) Schema[T] {
	return funcSchema[T]{name: name, decode: decode}
}

type funcSchema[T any] struct {
	name   string
	decode func(Row) (T, []dberr.FieldError)
}

func (f funcSchema[T]) Name() string { return f.name }

func (f funcSchema[T]) Decode(row Row) (T, []dberr.FieldError) {
	return f.decode(row)
}
