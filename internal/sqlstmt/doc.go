// Package sqlstmt builds parameterized statements for PostgreSQL.
//
// Values are never interpolated into statement text. Each value becomes a
// positional placeholder ($1, $2, ...) numbered in first-seen order, and
// values that are structurally equal share one placeholder:
//
//	stmt := sqlstmt.SQL("SELECT * FROM t WHERE a = ? OR b = ? OR c = ?", x, y, x)
//	// "SELECT * FROM t WHERE a = $1 OR b = $2 OR c = $1", values [x, y]
//
// nil is the exception: it renders the literal NULL and binds nothing.
//
// Fragments compose. A Fragment embedded in a statement shares the parent's
// value list, so numbering never restarts at a fragment boundary and a
// fragment may reuse a placeholder the parent already allocated.
package sqlstmt
