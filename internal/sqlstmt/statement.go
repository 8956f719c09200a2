package sqlstmt

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Statement is a fully built parameterized statement: text with positional
// $N placeholders plus the values bound to them, in first-seen order.
// A Statement is immutable once built.
type Statement struct {
	Text   string
	Values []any
}

// String returns the statement text.
func (s Statement) String() string {
	return s.Text
}

// Fragment is a composable piece of a statement. Given the parent's Binder
// it returns its text; any values it binds extend the parent's numbering.
type Fragment func(b *Binder) string

// Binder allocates placeholders for one statement under construction.
// Structurally equal values share one placeholder.
//
// A Binder is not safe for concurrent use; it lives for a single Build.
type Binder struct {
	values []any
	keys   []string // canonical key per value, "" when the value cannot be compared
}

// Bind returns the text for one interpolated slot:
//   - nil (including typed nil pointers) renders the literal NULL
//   - a Fragment is invoked with b and its text is spliced inline
//   - any other value renders $N, reusing N if an equal value was bound before
func (b *Binder) Bind(v any) string {
	if isNil(v) {
		return "NULL"
	}

	switch frag := v.(type) {
	case Fragment:
		return frag(b)
	case func(*Binder) string:
		return frag(b)
	}

	key, ok := canonicalKey(v)
	if ok {
		for i, k := range b.keys {
			if k == key {
				return placeholder(i + 1)
			}
		}
	} else {
		key = ""
	}

	b.values = append(b.values, v)
	b.keys = append(b.keys, key)
	return placeholder(len(b.values))
}

// Len returns the number of distinct values bound so far.
func (b *Binder) Len() int {
	return len(b.values)
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// Build interleaves literal parts with values, in the manner of a template:
// parts[0] values[0] parts[1] values[1] ... parts[n].
//
// Build panics if len(parts) != len(values)+1, which is always a
// programming error.
func Build(parts []string, values ...any) Statement {
	b := &Binder{}
	text := render(b, parts, values)
	return Statement{Text: text, Values: b.values}
}

// SQL builds a Statement from text with ? markers, one per argument.
// A doubled ?? is emitted as a single literal ?.
//
//	stmt := sqlstmt.SQL("SELECT * FROM users WHERE id = ? AND org = ?", id, org)
//	// stmt.Text   == "SELECT * FROM users WHERE id = $1 AND org = $2"
//	// stmt.Values == []any{id, org}
//
// SQL panics if the number of markers does not match len(args).
func SQL(text string, args ...any) Statement {
	return Build(split(text), args...)
}

// Markers counts the ? markers SQL would bind in text.
func Markers(text string) int {
	return len(split(text)) - 1
}

// Frag returns a Fragment with the same marker syntax as SQL. Its values
// join the numbering of whatever statement it is embedded in.
func Frag(text string, args ...any) Fragment {
	parts := split(text)
	if len(parts) != len(args)+1 {
		panic(fmt.Sprintf("sqlstmt: fragment %q has %d markers but %d arguments", text, len(parts)-1, len(args)))
	}
	return func(b *Binder) string {
		return render(b, parts, args)
	}
}

// Raw splices text verbatim. It never binds a value; callers must not pass
// untrusted input.
func Raw(text string) Fragment {
	return func(*Binder) string {
		return text
	}
}

// Join renders fragments separated by sep, all sharing one numbering.
func Join(sep string, frags ...Fragment) Fragment {
	return func(b *Binder) string {
		parts := make([]string, len(frags))
		for i, f := range frags {
			parts[i] = f(b)
		}
		return strings.Join(parts, sep)
	}
}

// Render produces the final Statement for a single fragment.
func Render(f Fragment) Statement {
	b := &Binder{}
	text := f(b)
	return Statement{Text: text, Values: b.values}
}

func render(b *Binder, parts []string, values []any) string {
	if len(parts) != len(values)+1 {
		panic(fmt.Sprintf("sqlstmt: %d literal parts require %d values, got %d", len(parts), len(parts)-1, len(values)))
	}

	var sb strings.Builder
	sb.WriteString(parts[0])
	for i, v := range values {
		sb.WriteString(b.Bind(v))
		sb.WriteString(parts[i+1])
	}
	return sb.String()
}

// split cuts text at every single ? marker; ?? collapses to a literal ?.
func split(text string) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '?' {
			cur.WriteByte(c)
			continue
		}
		if i+1 < len(text) && text[i+1] == '?' {
			cur.WriteByte('?')
			i++
			continue
		}
		parts = append(parts, cur.String())
		cur.Reset()
	}
	return append(parts, cur.String())
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
