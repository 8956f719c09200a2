package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/rowdecode"
)

// ErrEnding is returned by Acquire once Shutdown has been requested.
var ErrEnding = errors.New("provider is shutting down")

// SQLOptions configures a database/sql backed provider.
type SQLOptions struct {
	// MaxSize caps open connections. Zero means unlimited.
	MaxSize int

	// MinSize is the number of idle connections kept ready.
	MinSize int

	// IdleTimeout closes connections idle for longer. Zero keeps them.
	IdleTimeout time.Duration

	// AcquireTimeout bounds how long Acquire waits for a connection. Zero
	// waits until the caller's context ends.
	AcquireTimeout time.Duration

	// EvictionInterval enables a background health check of the pool.
	// Zero disables it.
	EvictionInterval time.Duration

	// TestOnBorrow runs "SELECT 1;" on every checkout before handing the
	// connection out.
	TestOnBorrow bool

	// OnError receives failures that happen outside of any checkout.
	OnError func(error)
}

// SQLProvider adapts a *sql.DB to the Provider contract.
//
// database/sql owns the pooling; SQLProvider adds checkout validation,
// discard-on-error release, and a background health check.
type SQLProvider struct {
	db   *sql.DB
	opts SQLOptions

	ending   atomic.Bool
	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// OpenSQL opens a pool for driverName ("postgres" for lib/pq) and verifies
// it can connect. Any failure is a PoolCreationError.
func OpenSQL(ctx context.Context, driverName, dsn string, opts SQLOptions) (*SQLProvider, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &dberr.PoolCreationError{Err: fmt.Errorf("failed to open database: %w", err)}
	}

	db.SetMaxOpenConns(opts.MaxSize)
	db.SetMaxIdleConns(opts.MinSize)
	db.SetConnMaxIdleTime(opts.IdleTimeout)

	pingCtx, cancel := withTimeout(ctx, opts.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &dberr.PoolCreationError{Err: fmt.Errorf("failed to connect to database: %w", err)}
	}

	p := &SQLProvider{db: db, opts: opts, stop: make(chan struct{})}
	if opts.EvictionInterval > 0 {
		p.wg.Add(1)
		go p.healthLoop(opts.EvictionInterval)
	}
	return p, nil
}

// DB returns the underlying pool.
func (p *SQLProvider) DB() *sql.DB {
	return p.db
}

// Acquire checks out a dedicated connection.
func (p *SQLProvider) Acquire(ctx context.Context) (Conn, error) {
	if p.ending.Load() {
		return nil, ErrEnding
	}

	acquireCtx, cancel := withTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		return nil, err
	}

	if p.opts.TestOnBorrow {
		if _, err := conn.ExecContext(acquireCtx, "SELECT 1;"); err != nil {
			discard(conn)
			return nil, fmt.Errorf("connection failed validation: %w", err)
		}
	}
	return &sqlConn{conn: conn}, nil
}

// Shutdown stops the health check and closes the pool. Acquire fails with
// ErrEnding from the first call on. If ctx ends before the health check
// stops, the pool stays open and Shutdown may be called again.
func (p *SQLProvider) Shutdown(ctx context.Context) error {
	if p.closed.Load() {
		return nil
	}
	p.ending.Store(true)
	p.stopOnce.Do(func() { close(p.stop) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.closed.Store(true)
	return nil
}

// Closed reports whether Shutdown has closed the pool.
func (p *SQLProvider) Closed() bool {
	return p.closed.Load()
}

func (p *SQLProvider) healthLoop(every time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := withTimeout(context.Background(), every)
			err := p.db.PingContext(ctx)
			cancel()
			if err != nil && p.opts.OnError != nil {
				p.opts.OnError(fmt.Errorf("health check failed: %w", err))
			}
		}
	}
}

type sqlConn struct {
	conn *sql.Conn
	once sync.Once
}

func (c *sqlConn) Execute(ctx context.Context, text string, params []any) (rowdecode.Result, error) {
	rows, err := c.conn.QueryContext(ctx, text, params...)
	if err != nil {
		return rowdecode.Result{}, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return rowdecode.Result{}, fmt.Errorf("read column types: %w", err)
	}
	fields := make([]rowdecode.Field, len(types))
	for i, ct := range types {
		fields[i] = rowdecode.Field{
			Name:     ct.Name(),
			TypeName: strings.ToLower(ct.DatabaseTypeName()),
		}
	}

	res := rowdecode.Result{Fields: fields, Rows: []rowdecode.Row{}}
	for rows.Next() {
		vals := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return rowdecode.Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(rowdecode.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = vals[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return rowdecode.Result{}, err
	}
	return res, nil
}

func (c *sqlConn) Release(err error) {
	c.once.Do(func() {
		if err != nil {
			discard(c.conn)
			return
		}
		c.conn.Close()
	})
}

// discard closes conn and keeps database/sql from returning it to the idle
// set.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
