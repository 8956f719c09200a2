package pool

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/pgtype"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
)

// Config configures a Pool.
type Config struct {
	// Decoders maps type names to custom decoders. They are merged over
	// the defaults (interval to ISO-8601) and registered on first use.
	Decoders map[string]pgtype.Decoder

	// SkipTypeSetup disables decoder registration entirely. Servers
	// without a pg_type catalog need it.
	SkipTypeSetup bool

	// Transform rewrites rows before schema validation. Nil means
	// rowdecode.Identity.
	Transform rowdecode.Transformer

	// OnError receives out-of-band provider failures as
	// *dberr.UnhandledPoolError.
	OnError func(error)

	// IDs names each checkout in logs. Nil means UUIDv7.
	IDs session.IDGenerator

	Logger *slog.Logger
}

// Program is the unit of work run against a checked-out session.
type Program func(ctx context.Context, s *session.Session) error

// Pool checks sessions out of a Provider, runs programs against them and
// always releases them. A Pool is safe for concurrent use.
type Pool struct {
	provider  session.Provider
	registry  *pgtype.Registry
	setup     *pgtype.Setup
	transform rowdecode.Transformer
	ids       session.IDGenerator
	onError   func(error)
	logger    *slog.Logger
}

// New creates a pool over provider. Checkouts are accepted immediately;
// type decoder registration runs lazily before the first program.
func New(provider session.Provider, cfg Config) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = session.UUIDv7Generator{}
	}
	transform := cfg.Transform
	if transform == nil {
		transform = rowdecode.Identity
	}

	p := &Pool{
		provider:  provider,
		registry:  pgtype.NewRegistry(),
		transform: transform,
		ids:       ids,
		onError:   cfg.OnError,
		logger:    logger,
	}
	decoders := pgtype.Merge(cfg.Decoders)
	p.setup = pgtype.NewSetup(func(ctx context.Context) error {
		if cfg.SkipTypeSetup {
			return nil
		}
		return p.bootstrap(ctx, decoders)
	})
	return p
}

// Open creates a pool backed by database/sql. Failed health checks of the
// underlying pool are reported through cfg.OnError.
func Open(ctx context.Context, driverName, dsn string, opts session.SQLOptions, cfg Config) (*Pool, error) {
	var created atomic.Pointer[Pool]
	opts.OnError = func(err error) {
		if p := created.Load(); p != nil {
			p.ReportError(err)
		}
	}
	provider, err := session.OpenSQL(ctx, driverName, dsn, opts)
	if err != nil {
		return nil, err
	}
	p := New(provider, cfg)
	created.Store(p)
	return p, nil
}

// Registry returns the pool's custom type registry.
func (p *Pool) Registry() *pgtype.Registry {
	return p.registry
}

// Setup runs type decoder registration if it has not run yet and waits
// for it. The outcome, failure included, is shared by every caller.
func (p *Pool) Setup(ctx context.Context) error {
	err := p.setup.Wait(ctx)
	if err == nil {
		return nil
	}
	if _, ok := dberr.KindOf(err); !ok {
		return &dberr.PoolCheckoutError{Err: err}
	}
	return err
}

// WithConnection waits for setup, checks out a session, runs program and
// releases the session exactly once.
//
// Errors returned by program pass through unchanged. A panic is recovered
// as an UnhandledConnectionError. The session is released with the error
// only when it poisons the connection (a failed rollback or a panic), so
// the provider discards it; otherwise it is recycled.
func (p *Pool) WithConnection(ctx context.Context, program Program) error {
	if err := p.Setup(ctx); err != nil {
		return err
	}

	s, err := p.checkout(ctx)
	if err != nil {
		return err
	}

	err = runProgram(ctx, s, program)
	if dberr.Poisons(err) {
		s.Release(err)
	} else {
		s.Release(nil)
	}
	return err
}

// Run is WithConnection for programs that produce a value.
func Run[A any](ctx context.Context, p *Pool, program func(ctx context.Context, s *session.Session) (A, error)) (A, error) {
	var out A
	err := p.WithConnection(ctx, func(ctx context.Context, s *session.Session) error {
		v, err := program(ctx, s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// End shuts the provider down. Calling End once the provider is closed
// succeeds without shutting down again; a failed End may be retried.
func (p *Pool) End(ctx context.Context) error {
	if p.provider.Closed() {
		p.logger.Debug("pool already ended")
		return nil
	}
	if err := p.provider.Shutdown(ctx); err != nil {
		return &dberr.PoolShutdownError{Err: err}
	}
	p.logger.Info("pool ended")
	return nil
}

// ReportError delivers an out-of-band provider failure to the configured
// callback as an UnhandledPoolError.
func (p *Pool) ReportError(err error) {
	wrapped := &dberr.UnhandledPoolError{Err: err}
	p.logger.Error("pool error", "error", err)
	if p.onError != nil {
		p.onError(wrapped)
	}
}

func (p *Pool) checkout(ctx context.Context) (*session.Session, error) {
	conn, err := p.provider.Acquire(ctx)
	if err != nil {
		return nil, &dberr.PoolCheckoutError{Err: err}
	}
	id := p.ids.Generate()
	p.logger.Debug("checkout", "session", id)
	return session.Wrap(conn, session.Options{
		ID:        id,
		Registry:  p.registry,
		Transform: p.transform,
		Logger:    p.logger,
	}), nil
}

// bootstrap registers decoders on a checkout of its own, before any
// program holds a session, so a pool of one connection cannot deadlock.
func (p *Pool) bootstrap(ctx context.Context, decoders map[string]pgtype.Decoder) error {
	conn, err := p.provider.Acquire(ctx)
	if err != nil {
		return &dberr.TypeParserSetupError{Err: &dberr.PoolCheckoutError{Err: err}}
	}
	s := session.Wrap(conn, session.Options{
		ID:     p.ids.Generate(),
		Logger: p.logger,
	})

	err = runProgram(ctx, s, func(ctx context.Context, s *session.Session) error {
		return pgtype.Bootstrap(ctx, s, p.registry, decoders)
	})
	if dberr.Poisons(err) {
		s.Release(err)
	} else {
		s.Release(nil)
	}
	if err != nil {
		p.logger.Error("type parser setup failed", "error", err)
		return err
	}
	p.logger.Debug("type parsers registered", "types", len(decoders))
	return nil
}

func runProgram(ctx context.Context, s *session.Session, program Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dberr.FromPanic(r)
			s.Logger().Error("program panicked", "error", err)
		}
	}()
	return program(ctx, s)
}
