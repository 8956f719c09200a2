package pgtype

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/roach88/typedpg/internal/rowdecode"
)

// Decoder converts the text form of a column value into a Go value.
type Decoder func(text string) (any, error)

// IntervalDecoder decodes interval columns to ISO-8601 duration strings.
func IntervalDecoder(text string) (any, error) {
	return IntervalToISO(text)
}

// Defaults returns the decoders registered on every pool.
func Defaults() map[string]Decoder {
	return map[string]Decoder{
		"interval": IntervalDecoder,
	}
}

// ArrayDecoder lifts elem to decode a one-dimensional postgres array
// literal such as {1,2,NULL}. NULL elements decode to nil.
func ArrayDecoder(elem Decoder) Decoder {
	return func(text string) (any, error) {
		var raw []sql.NullString
		if err := pq.Array(&raw).Scan(text); err != nil {
			return nil, fmt.Errorf("parse array: %w", err)
		}
		out := make([]any, len(raw))
		for i, s := range raw {
			if !s.Valid {
				continue
			}
			v, err := elem(s.String)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
}

// Registry maps server type identifiers to decoders. Each pool owns one.
// A Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byOID     map[uint32]Decoder
	oidByName map[string]uint32
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byOID:     make(map[uint32]Decoder),
		oidByName: make(map[string]uint32),
	}
}

// Register binds d to oid, and remembers name so drivers that only report
// type names can still be matched.
func (r *Registry) Register(name string, oid uint32, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOID[oid] = d
	if name != "" {
		r.oidByName[strings.ToLower(name)] = oid
	}
}

// Lookup finds the decoder for a result column, by OID first and by type
// name second.
func (r *Registry) Lookup(f rowdecode.Field) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f.TypeOID != 0 {
		if d, ok := r.byOID[f.TypeOID]; ok {
			return d, true
		}
	}
	if f.TypeName != "" {
		if oid, ok := r.oidByName[strings.ToLower(f.TypeName)]; ok {
			d, ok := r.byOID[oid]
			return d, ok
		}
	}
	return nil, false
}

// OIDs returns a snapshot of registered type names and their OIDs.
func (r *Registry) OIDs() map[string]uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint32, len(r.oidByName))
	for k, v := range r.oidByName {
		out[k] = v
	}
	return out
}

// Apply runs registered decoders over every text-form value of res in
// place. Values the driver already decoded to non-text Go types are left
// untouched, as are NULLs.
func (r *Registry) Apply(res *rowdecode.Result) error {
	for _, f := range res.Fields {
		d, ok := r.Lookup(f)
		if !ok {
			continue
		}
		for i, row := range res.Rows {
			text, isText := textOf(row[f.Name])
			if !isText {
				continue
			}
			v, err := d(text)
			if err != nil {
				return fmt.Errorf("decode column %q (row %d): %w", f.Name, i, err)
			}
			row[f.Name] = v
		}
	}
	return nil
}

func textOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return "", false
	}
}
