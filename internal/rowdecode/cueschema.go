package rowdecode

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/typedpg/internal/dberr"
)

// CUE returns a schema that validates each row against a CUE constraint
// and then decodes the unified value into T (using T's json tags).
//
// The source must evaluate to a struct:
//
//	schema, err := rowdecode.CUE[User]("User", `{
//	    id:    int & >0
//	    email: =~"@"
//	    role:  "admin" | "member"
//	}`)
//
// Columns the constraint does not mention are allowed unless the source
// closes the struct (close({...}) or a #Definition).
func CUE[T any](name, source string) (Schema[T], error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	if k := v.IncompleteKind(); k != cue.StructKind {
		return nil, fmt.Errorf("compile schema %s: expected struct, got %s", name, k)
	}
	return &cueSchema[T]{name: name, ctx: ctx, constraint: v}, nil
}

// MustCUE is like CUE but panics on an invalid source. Intended for
// package-level schema variables.
func MustCUE[T any](name, source string) Schema[T] {
	s, err := CUE[T](name, source)
	if err != nil {
		panic(err)
	}
	return s
}

type cueSchema[T any] struct {
	name string

	// cue.Context and the values it creates are not safe for concurrent use.
	mu         sync.Mutex
	ctx        *cue.Context
	constraint cue.Value
}

func (s *cueSchema[T]) Name() string { return s.name }

func (s *cueSchema[T]) Decode(row Row) (T, []dberr.FieldError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out T
	data := s.ctx.Encode(map[string]any(row))
	if err := data.Err(); err != nil {
		return out, fieldErrors(err)
	}

	unified := s.constraint.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return out, fieldErrors(err)
	}
	if err := unified.Decode(&out); err != nil {
		return out, fieldErrors(err)
	}
	return out, nil
}

// fieldErrors flattens a CUE error list into structured failures.
func fieldErrors(err error) []dberr.FieldError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []dberr.FieldError{{Message: err.Error()}}
	}
	out := make([]dberr.FieldError, 0, len(errs))
	for _, e := range errs {
		format, args := e.Msg()
		out = append(out, dberr.FieldError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}
