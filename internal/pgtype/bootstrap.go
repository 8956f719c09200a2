package pgtype

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// Querier runs a statement and returns its raw result.
type Querier interface {
	Query(ctx context.Context, stmt sqlstmt.Statement) (rowdecode.Result, error)
}

// CatalogEntry is one pg_type row.
type CatalogEntry struct {
	Typname  string `db:"typname"`
	OID      int64  `db:"oid"`
	Typarray int64  `db:"typarray"`
}

// oid columns are cast to int8 so drivers return integers rather than text.
const catalogSQL = `SELECT typname, oid::int8 AS oid, typarray::int8 AS typarray FROM pg_type WHERE typname = ANY(?) ORDER BY oid;`

// TypeQuery builds the catalog lookup for names.
func TypeQuery(names []string) sqlstmt.Statement {
	return sqlstmt.SQL(catalogSQL, pq.StringArray(names))
}

// LookupTypes resolves names against the server catalog. Every name must
// exist.
func LookupTypes(ctx context.Context, q Querier, names []string) ([]CatalogEntry, error) {
	stmt := TypeQuery(names)
	res, err := q.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	entries, err := rowdecode.OneOrMore(res, stmt, rowdecode.Struct[CatalogEntry](), nil)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(entries))
	for _, e := range entries {
		found[e.Typname] = true
	}
	var missing []string
	for _, n := range names {
		if !found[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown types: %s", strings.Join(missing, ", "))
	}
	return entries, nil
}

// Bootstrap resolves the OID of every type in decoders and registers the
// decoder for it. Types with an array counterpart also get an array decoder
// bound to the array OID. Any failure is a TypeParserSetupError.
func Bootstrap(ctx context.Context, q Querier, reg *Registry, decoders map[string]Decoder) error {
	if len(decoders) == 0 {
		return nil
	}

	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)

	entries, err := LookupTypes(ctx, q, names)
	if err != nil {
		return &dberr.TypeParserSetupError{Err: err}
	}

	for _, e := range entries {
		d, ok := decoders[e.Typname]
		if !ok {
			continue
		}
		reg.Register(e.Typname, uint32(e.OID), d)
		if e.Typarray != 0 {
			reg.Register("_"+e.Typname, uint32(e.Typarray), ArrayDecoder(d))
		}
	}
	return nil
}

// Merge returns Defaults overlaid with custom. Entries in custom win.
func Merge(custom map[string]Decoder) map[string]Decoder {
	out := Defaults()
	for name, d := range custom {
		out[name] = d
	}
	return out
}
