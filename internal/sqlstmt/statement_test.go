package sqlstmt

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQL_NoInterpolation(t *testing.T) {
	stmt := SQL("hello")
	assert.Equal(t, "hello", stmt.Text)
	assert.Empty(t, stmt.Values)
}

func TestSQL_SimpleInterpolation(t *testing.T) {
	stmt := SQL("hello = ?", 10)
	assert.Equal(t, "hello = $1", stmt.Text)
	assert.Equal(t, []any{10}, stmt.Values)
}

func TestSQL_EscapedMarker(t *testing.T) {
	stmt := SQL("SELECT data ?? 'key' FROM docs WHERE id = ?", 7)
	assert.Equal(t, "SELECT data ? 'key' FROM docs WHERE id = $1", stmt.Text)
	assert.Equal(t, []any{7}, stmt.Values)
}

func TestSQL_MarkerCountMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { SQL("a = ? AND b = ?", 1) })
	assert.Panics(t, func() { SQL("a = 1", 1) })
	assert.Panics(t, func() { Frag("a = ?") })
}

func TestMarkers(t *testing.T) {
	assert.Equal(t, 0, Markers("SELECT 1"))
	assert.Equal(t, 2, Markers("a = ? AND b = ?"))
	assert.Equal(t, 1, Markers("data ?? 'k' AND id = ?"))
}

func TestBuild_TemplateParts(t *testing.T) {
	stmt := Build([]string{"SELECT ", " + ", ""}, 1, 2)
	assert.Equal(t, "SELECT $1 + $2", stmt.Text)
	assert.Equal(t, []any{1, 2}, stmt.Values)
}

func TestSQL_NilRendersNULL(t *testing.T) {
	var missing *string
	stmt := SQL("UPDATE t SET a = ?, b = ?, c = ?", nil, 5, missing)
	assert.Equal(t, "UPDATE t SET a = NULL, b = $1, c = NULL", stmt.Text)
	assert.Equal(t, []any{5}, stmt.Values)
}

func TestSQL_DeduplicatesScalars(t *testing.T) {
	values := []any{10, "10", 10.0, int64(10), true, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	for _, v := range values {
		stmt := SQL("? = ?", v, v)
		assert.Equal(t, "$1 = $1", stmt.Text, "value %#v", v)
		assert.Equal(t, []any{v}, stmt.Values, "value %#v", v)
	}
}

func TestSQL_DistinctTypesDoNotCollapse(t *testing.T) {
	stmt := SQL("? = ? = ?", 10, "10", int64(10))
	assert.Equal(t, "$1 = $2 = $3", stmt.Text)
	assert.Equal(t, []any{10, "10", int64(10)}, stmt.Values)
}

func TestSQL_DeduplicatesCompositeValues(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"empty slices", []int{}, []int{}},
		{"populated slices", []int{10}, []int{10}},
		{"nested slices", [][]int{{10}}, [][]int{{10}}},
		{"empty maps", map[string]any{}, map[string]any{}},
		{"populated maps", map[string]any{"a": 10}, map[string]any{"a": 10}},
		{"nested maps", map[string]any{"a": map[string]any{"b": []int{1}}}, map[string]any{"a": map[string]any{"b": []int{1}}}},
		{"structs", struct{ A int }{1}, struct{ A int }{1}},
		{"byte slices", []byte("abc"), []byte("abc")},
		{"pq arrays", pq.Array([]string{"x"}), pq.Array([]string{"x"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := SQL("? = ?", tt.a, tt.b)
			assert.Equal(t, "$1 = $1", stmt.Text)
			require.Len(t, stmt.Values, 1)
			assert.Equal(t, tt.a, stmt.Values[0])
		})
	}
}

func TestSQL_DifferentCompositeValuesDoNotCollapse(t *testing.T) {
	instant := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
	}{
		{"slice contents", []int{1}, []int{2}},
		{"map contents", map[string]any{"a": 1}, map[string]any{"a": 2}},
		{"float and string in slice", []any{"1"}, []any{1.0}},
		{"int and string in slice", []any{"1"}, []any{1}},
		{"int widths in slice", []any{1}, []any{int64(1)}},
		{"float and string in map", map[string]any{"a": 1.5}, map[string]any{"a": "1.5"}},
		{"time and look-alike map", []any{instant}, []any{map[string]string{"$time": instant.Format(time.RFC3339Nano)}}},
		{"bytes and look-alike map", []any{[]byte("x")}, []any{map[string]any{"$bytes": "eA=="}}},
		{"struct and map", []any{struct{ A int }{1}}, []any{map[string]any{"A": 1}}},
		{"map key types", map[any]int{1: 1}, map[any]int{"1": 1}},
		{"nested list and map", []any{[]any{"a"}}, []any{map[string]any{"0": "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := SQL("? = ?", tt.a, tt.b)
			assert.Equal(t, "$1 = $2", stmt.Text)
			assert.Equal(t, []any{tt.a, tt.b}, stmt.Values)
		})
	}
}

func TestSQL_TimesCompareAsInstants(t *testing.T) {
	utc := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	plus2 := utc.In(time.FixedZone("plus2", 2*60*60))

	stmt := SQL("? = ?", utc, plus2)
	assert.Equal(t, "$1 = $1", stmt.Text)
	assert.Equal(t, []any{utc}, stmt.Values)

	stmt = SQL("? = ?", utc, utc.Add(time.Nanosecond))
	assert.Equal(t, "$1 = $2", stmt.Text)
}

func TestSQL_ValuersCompareByValue(t *testing.T) {
	a := sql.NullString{String: "x", Valid: true}
	b := sql.NullString{String: "x", Valid: true}

	stmt := SQL("? = ?", a, b)
	assert.Equal(t, "$1 = $1", stmt.Text)
}

func TestSQL_UncomparableValuesAreNotDeduplicated(t *testing.T) {
	ch := make(chan int)
	stmt := SQL("? = ?", ch, ch)
	assert.Equal(t, "$1 = $2", stmt.Text)
	assert.Len(t, stmt.Values, 2)
}

func TestSQL_AlternatingValues(t *testing.T) {
	a, b, c := "a", "b", "c"

	stmt := SQL("? = ?, ? = ?", a, b, a, c)
	assert.Equal(t, "$1 = $2, $1 = $3", stmt.Text)
	assert.Equal(t, []any{a, b, c}, stmt.Values)
}

func TestFrag_SingleVariableFragment(t *testing.T) {
	frag := Frag("hello ?", 10)
	stmt := SQL("hello ?", frag)

	assert.Equal(t, "hello hello $1", stmt.Text)
	assert.Equal(t, []any{10}, stmt.Values)
}

func TestFrag_InterpolationThenFragment(t *testing.T) {
	frag := Frag("hello ?", 20)
	stmt := SQL("? hello ?", 10, frag)

	assert.Equal(t, "$1 hello hello $2", stmt.Text)
	assert.Equal(t, []any{10, 20}, stmt.Values)
}

func TestFrag_NumberingContinuesAcrossBoundaries(t *testing.T) {
	frag := Frag("hello ?", 20)
	stmt := SQL("? hello ? hello ?", 10, frag, 30)

	assert.Equal(t, "$1 hello hello $2 hello $3", stmt.Text)
	assert.Equal(t, []any{10, 20, 30}, stmt.Values)
}

func TestFrag_SharesPlaceholderWithParent(t *testing.T) {
	frag := Frag("b = ? AND c = ?", 10, 20)
	stmt := SQL("a = ? AND ? AND d = ?", 10, frag, 20)

	assert.Equal(t, "a = $1 AND b = $1 AND c = $2 AND d = $2", stmt.Text)
	assert.Equal(t, []any{10, 20}, stmt.Values)
}

func TestFrag_Nested(t *testing.T) {
	inner := Frag("x = ?", 3)
	outer := Frag("(? OR y = ?)", inner, 4)
	stmt := SQL("SELECT ? WHERE ?", 1, outer)

	assert.Equal(t, "SELECT $1 WHERE (x = $2 OR y = $3)", stmt.Text)
	assert.Equal(t, []any{1, 3, 4}, stmt.Values)
}

func TestFrag_ReusableAcrossStatements(t *testing.T) {
	frag := Frag("id = ?", 42)

	first := SQL("SELECT ? WHERE ?", 1, frag)
	second := SQL("DELETE FROM t WHERE ?", frag)

	assert.Equal(t, "SELECT $1 WHERE id = $2", first.Text)
	assert.Equal(t, "DELETE FROM t WHERE id = $1", second.Text)
	assert.Equal(t, []any{42}, second.Values)
}

func TestRaw_SplicesVerbatim(t *testing.T) {
	stmt := SQL("SELECT * FROM ? WHERE id = ?", Raw(`"users"`), 5)
	assert.Equal(t, `SELECT * FROM "users" WHERE id = $1`, stmt.Text)
	assert.Equal(t, []any{5}, stmt.Values)
}

func TestJoin(t *testing.T) {
	conds := Join(" AND ", Frag("a = ?", 1), Frag("b = ?", 2), Frag("c = ?", 1))
	stmt := SQL("SELECT * FROM t WHERE ?", conds)

	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = $1", stmt.Text)
	assert.Equal(t, []any{1, 2}, stmt.Values)
}

func TestRender(t *testing.T) {
	stmt := Render(Join(" ", Raw("COMMIT;")))
	assert.Equal(t, "COMMIT;", stmt.Text)
	assert.Empty(t, stmt.Values)
}

func TestBinder_PlainFuncIsFragment(t *testing.T) {
	fn := func(b *Binder) string { return "now()" }
	stmt := SQL("SELECT ?", fn)
	assert.Equal(t, "SELECT now()", stmt.Text)
	assert.Empty(t, stmt.Values)
}
