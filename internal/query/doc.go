// Package query provides the five typed query operations.
//
//	None       exactly zero rows
//	One        exactly one row
//	OneOrMore  at least one row
//	OneOrNone  zero or one row
//	Any        any number of rows
//
// Each runs a statement on a session, checks the row count, then applies
// the session's row transformer and validates every row against a schema.
// Count violations are RowCountErrors; schema violations are
// RowValidationErrors.
package query
