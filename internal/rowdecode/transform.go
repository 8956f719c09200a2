package rowdecode

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Transformer rewrites a row before schema validation.
type Transformer func(Row) Row

// Identity returns rows unchanged.
func Identity(r Row) Row {
	return r
}

// CamelCase rewrites column names to lowerCamelCase ("created_at" becomes
// "createdAt"). Keys beginning with an underscore are left alone. Nested
// maps and slices are rewritten recursively; time values are untouched.
func CamelCase(r Row) Row {
	if r == nil {
		return nil
	}
	c := newCamelizer()
	out := make(Row, len(r))
	for k, v := range r {
		out[c.key(k)] = c.value(v)
	}
	return out
}

// camelizer holds casers for one transformation; x/text casers are
// stateful and must not be shared between goroutines.
type camelizer struct {
	lower cases.Caser
	title cases.Caser
}

func newCamelizer() *camelizer {
	return &camelizer{
		lower: cases.Lower(language.Und),
		title: cases.Title(language.Und),
	}
}

func (c *camelizer) key(k string) string {
	if k == "" || strings.HasPrefix(k, "_") {
		return k
	}
	words := splitWords(k)
	if len(words) == 0 {
		return k
	}
	var sb strings.Builder
	for i, w := range words {
		if i == 0 {
			sb.WriteString(c.lower.String(w))
			continue
		}
		sb.WriteString(c.title.String(w))
	}
	return sb.String()
}

func (c *camelizer) value(v any) any {
	switch val := v.(type) {
	case nil, time.Time, []byte:
		return v
	case Row:
		out := make(Row, len(val))
		for k, elem := range val {
			out[c.key(k)] = c.value(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[c.key(k)] = c.value(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = c.value(elem)
		}
		return out
	default:
		return v
	}
}

// splitWords breaks an identifier at separators and lower-to-upper case
// transitions: "user_ID" -> [user ID], "createdAt" -> [created At].
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
