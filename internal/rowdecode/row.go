package rowdecode

// Row is one raw result row: column name to an untyped scalar as produced
// by the session provider (after any registered type decoders ran).
type Row map[string]any

// Field describes one result column.
type Field struct {
	Name string

	// TypeName is the database type name as reported by the driver,
	// lower-cased (e.g. "int4", "interval", "_interval"). Empty if unknown.
	TypeName string

	// TypeOID is the server-assigned type identifier, 0 if the driver does
	// not report one.
	TypeOID uint32
}

// Result is a raw query result.
type Result struct {
	Fields []Field
	Rows   []Row
}

// Len returns the number of rows.
func (r Result) Len() int {
	return len(r.Rows)
}
