package query

import (
	"context"

	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// None runs stmt and requires that it return no rows.
func None(ctx context.Context, s *session.Session, stmt sqlstmt.Statement) error {
	res, err := s.Query(ctx, stmt)
	if err != nil {
		return err
	}
	return rowdecode.None(res, stmt)
}

// One runs stmt and decodes its single row.
func One[T any](ctx context.Context, s *session.Session, schema rowdecode.Schema[T], stmt sqlstmt.Statement) (T, error) {
	res, err := s.Query(ctx, stmt)
	if err != nil {
		var zero T
		return zero, err
	}
	return rowdecode.One(res, stmt, schema, s.Transform())
}

// OneOrMore runs stmt and decodes every row; at least one is required.
func OneOrMore[T any](ctx context.Context, s *session.Session, schema rowdecode.Schema[T], stmt sqlstmt.Statement) ([]T, error) {
	res, err := s.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return rowdecode.OneOrMore(res, stmt, schema, s.Transform())
}

// OneOrNone runs stmt and decodes its row if there is one. ok is false
// when the result was empty.
func OneOrNone[T any](ctx context.Context, s *session.Session, schema rowdecode.Schema[T], stmt sqlstmt.Statement) (v T, ok bool, err error) {
	res, err := s.Query(ctx, stmt)
	if err != nil {
		return v, false, err
	}
	return rowdecode.OneOrNone(res, stmt, schema, s.Transform())
}

// Any runs stmt and decodes every row. An empty result is an empty slice.
func Any[T any](ctx context.Context, s *session.Session, schema rowdecode.Schema[T], stmt sqlstmt.Statement) ([]T, error) {
	res, err := s.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return rowdecode.Any(res, schema, s.Transform())
}

// Rows runs stmt under the contract c and returns the rows it yields,
// validated against schema. ContractNone yields no rows; ContractOneOrNone
// yields zero or one.
func Rows[T any](ctx context.Context, s *session.Session, c rowdecode.Contract, schema rowdecode.Schema[T], stmt sqlstmt.Statement) ([]T, error) {
	switch c {
	case rowdecode.ContractNone:
		if err := None(ctx, s, stmt); err != nil {
			return nil, err
		}
		return []T{}, nil
	case rowdecode.ContractOne:
		v, err := One(ctx, s, schema, stmt)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	case rowdecode.ContractOneOrMore:
		return OneOrMore(ctx, s, schema, stmt)
	case rowdecode.ContractOneOrNone:
		v, ok, err := OneOrNone(ctx, s, schema, stmt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []T{}, nil
		}
		return []T{v}, nil
	default:
		return Any(ctx, s, schema, stmt)
	}
}
