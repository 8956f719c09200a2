// Package rowdecode turns raw result rows into typed values.
//
// A Schema validates one row and decodes it. Three families are provided:
// Struct (reflection over `db` tags), CUE (constraints written in CUE) and
// Scalar/Rows/Func for single values, untyped rows and hand-written
// decoders.
//
// The cardinality contracts decide what a result may contain before any row
// is decoded:
//
//	contract     0 rows       1 row        >1 rows
//	None         ok           RowCount     RowCount
//	One          RowCount     decode       RowCount
//	OneOrMore    RowCount     decode       decode all
//	OneOrNone    ok, absent   decode       RowCount
//	Any          ok, empty    decode       decode all
//
// A row that fails its schema is reported as dberr.RowValidationError; a
// count mismatch as dberr.RowCountError. Because counts are checked first,
// a validation error implies the count contract held.
package rowdecode
