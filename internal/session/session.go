package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/pgtype"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// Options configures a Session.
type Options struct {
	// ID identifies the checkout in logs.
	ID string

	// Registry decodes columns of custom types. Nil disables decoding.
	Registry *pgtype.Registry

	// Transform rewrites rows before schema validation. Nil means Identity.
	Transform rowdecode.Transformer

	Logger *slog.Logger
}

// Session is a typed view of one checked-out connection. It is owned by a
// single program between checkout and release and is not safe for
// concurrent use.
type Session struct {
	id        string
	conn      Conn
	registry  *pgtype.Registry
	transform rowdecode.Transformer
	logger    *slog.Logger
	released  atomic.Bool
}

// Wrap adapts conn into a Session.
func Wrap(conn Conn, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transform := opts.Transform
	if transform == nil {
		transform = rowdecode.Identity
	}
	return &Session{
		id:        opts.ID,
		conn:      conn,
		registry:  opts.Registry,
		transform: transform,
		logger:    logger.With("session", opts.ID),
	}
}

// ID returns the checkout identifier.
func (s *Session) ID() string { return s.id }

// Transform returns the row transformer configured for this session.
func (s *Session) Transform() rowdecode.Transformer { return s.transform }

// Logger returns a logger tagged with the session ID.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Query executes stmt and decodes registered custom types. Any failure is
// a DriverQueryError carrying the statement.
func (s *Session) Query(ctx context.Context, stmt sqlstmt.Statement) (rowdecode.Result, error) {
	s.logger.Debug("query", "statement", stmt.Text, "params", len(stmt.Values))

	res, err := s.conn.Execute(ctx, stmt.Text, stmt.Values)
	if err != nil {
		return rowdecode.Result{}, &dberr.DriverQueryError{Err: err, Text: stmt.Text, Args: stmt.Values}
	}
	if s.registry != nil {
		if err := s.registry.Apply(&res); err != nil {
			return rowdecode.Result{}, &dberr.DriverQueryError{Err: err, Text: stmt.Text, Args: stmt.Values}
		}
	}
	return res, nil
}

// Release returns the connection. err is forwarded to the provider so it
// can discard a poisoned connection. Only the first call has an effect.
func (s *Session) Release(err error) {
	if !s.released.CompareAndSwap(false, true) {
		s.logger.Warn("session released twice")
		return
	}
	if err != nil {
		s.logger.Warn("discarding poisoned session", "error", err)
	}
	s.conn.Release(err)
}

// Released reports whether Release has been called.
func (s *Session) Released() bool { return s.released.Load() }
