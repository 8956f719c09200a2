package rowdecode

import (
	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// Descriptions used in RowCountError.
const (
	countZero      = "0"
	countOne       = "1"
	countZeroOrOne = "0 or 1"
	countAtLeast1  = ">= 1"
	countMany      = "> 1"
)

// Contract names one of the five cardinality policies.
type Contract string

const (
	ContractNone      Contract = "none"
	ContractOne       Contract = "one"
	ContractOneOrMore Contract = "one-or-more"
	ContractOneOrNone Contract = "one-or-none"
	ContractAny       Contract = "any"
)

// Contracts lists every contract, in declaration order.
var Contracts = []Contract{ContractNone, ContractOne, ContractOneOrMore, ContractOneOrNone, ContractAny}

// Check verifies res against c without decoding anything. Row counts are
// always checked before any row is validated.
func Check(c Contract, res Result, stmt sqlstmt.Statement) error {
	n := res.Len()
	switch c {
	case ContractNone:
		if n > 0 {
			return countError(stmt, countZero, countAtLeast1)
		}
	case ContractOne:
		if n == 0 {
			return countError(stmt, countOne, countZero)
		}
		if n > 1 {
			return countError(stmt, countOne, countMany)
		}
	case ContractOneOrMore:
		if n == 0 {
			return countError(stmt, countAtLeast1, countZero)
		}
	case ContractOneOrNone:
		if n > 1 {
			return countError(stmt, countZeroOrOne, countMany)
		}
	case ContractAny:
	}
	return nil
}

// None succeeds only for an empty result.
func None(res Result, stmt sqlstmt.Statement) error {
	return Check(ContractNone, res, stmt)
}

// One requires exactly one row and decodes it.
func One[T any](res Result, stmt sqlstmt.Statement, schema Schema[T], tf Transformer) (T, error) {
	var zero T
	if err := Check(ContractOne, res, stmt); err != nil {
		return zero, err
	}
	return decode(schema, tf, res.Rows[0])
}

// OneOrMore requires at least one row and decodes all of them. The
// returned slice is never empty when err is nil.
func OneOrMore[T any](res Result, stmt sqlstmt.Statement, schema Schema[T], tf Transformer) ([]T, error) {
	if err := Check(ContractOneOrMore, res, stmt); err != nil {
		return nil, err
	}
	return decodeAll(schema, tf, res.Rows)
}

// OneOrNone allows zero or one row. ok reports whether a row was present.
func OneOrNone[T any](res Result, stmt sqlstmt.Statement, schema Schema[T], tf Transformer) (v T, ok bool, err error) {
	if err := Check(ContractOneOrNone, res, stmt); err != nil {
		return v, false, err
	}
	if res.Len() == 0 {
		return v, false, nil
	}
	v, err = decode(schema, tf, res.Rows[0])
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Any decodes every row. An empty result yields an empty, non-nil slice.
func Any[T any](res Result, schema Schema[T], tf Transformer) ([]T, error) {
	return decodeAll(schema, tf, res.Rows)
}

func decode[T any](schema Schema[T], tf Transformer, row Row) (T, error) {
	if tf != nil {
		row = tf(row)
	}
	return Validate(schema, row)
}

func decodeAll[T any](schema Schema[T], tf Transformer, rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := decode(schema, tf, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func countError(stmt sqlstmt.Statement, expected, received string) *dberr.RowCountError {
	return &dberr.RowCountError{
		Text:     stmt.Text,
		Args:     stmt.Values,
		Expected: expected,
		Received: received,
	}
}
