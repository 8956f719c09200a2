package pgtx

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/session"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// Isolation is a transaction isolation level.
type Isolation string

const (
	ReadUncommitted Isolation = "READ UNCOMMITTED"
	ReadCommitted   Isolation = "READ COMMITTED"
	RepeatableRead  Isolation = "REPEATABLE READ"
	Serializable    Isolation = "SERIALIZABLE"
)

// Isolations lists every level in ascending strictness.
var Isolations = []Isolation{ReadUncommitted, ReadCommitted, RepeatableRead, Serializable}

// ParseIsolation accepts a level name as written in SQL, case-insensitive.
func ParseIsolation(s string) (Isolation, error) {
	for _, iso := range Isolations {
		if strings.EqualFold(string(iso), s) {
			return iso, nil
		}
	}
	return "", fmt.Errorf("unknown isolation level %q", s)
}

// Options controls how a transaction is opened. The zero value is
// READ COMMITTED, read-write, not deferrable.
type Options struct {
	Isolation  Isolation
	ReadOnly   bool
	Deferrable bool
}

func (o Options) isolation() Isolation {
	if o.Isolation == "" {
		return ReadCommitted
	}
	return o.Isolation
}

// Validate rejects isolation levels outside Isolations.
func (o Options) Validate() error {
	if o.Isolation == "" || slices.Contains(Isolations, o.Isolation) {
		return nil
	}
	return fmt.Errorf("unknown isolation level %q", string(o.Isolation))
}

var (
	commitStmt   = sqlstmt.SQL("COMMIT;")
	rollbackStmt = sqlstmt.SQL("ROLLBACK;")
)

// BeginStatement renders the statement that opens a transaction with opts.
// opts must pass Validate.
func BeginStatement(opts Options) sqlstmt.Statement {
	parts := []sqlstmt.Fragment{
		sqlstmt.Raw("BEGIN TRANSACTION"),
		sqlstmt.Raw("ISOLATION LEVEL " + string(opts.isolation())),
	}
	if opts.ReadOnly {
		parts = append(parts, sqlstmt.Raw("READ ONLY"))
	}
	if opts.Deferrable {
		parts = append(parts, sqlstmt.Raw("DEFERRABLE"))
	}
	return sqlstmt.Render(sqlstmt.Join(" ", parts...))
}

// Run executes fn inside a transaction on s.
//
// When fn succeeds, COMMIT is issued once; a failed COMMIT is returned as
// the DriverQueryError it produced. When fn fails, ROLLBACK is issued and
// fn's error is returned unchanged. If ROLLBACK fails too, the result is
// a TransactionRollbackError carrying both, which makes the pool discard
// the session. A panic in fn rolls back before it propagates.
func Run[A any](ctx context.Context, s *session.Session, opts Options, fn func(ctx context.Context, s *session.Session) (A, error)) (out A, err error) {
	var zero A
	log := s.Logger()

	if err := opts.Validate(); err != nil {
		return zero, err
	}

	begin := BeginStatement(opts)
	if _, err := s.Query(ctx, begin); err != nil {
		return zero, err
	}
	log.Debug("transaction begun", "statement", begin.Text)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rbErr := rollback(ctx, s); rbErr != nil {
			panic(&dberr.TransactionRollbackError{RollbackErr: rbErr, Cause: dberr.FromPanic(r).Err})
		}
		panic(r)
	}()

	out, err = fn(ctx, s)
	if err != nil {
		if rbErr := rollback(ctx, s); rbErr != nil {
			log.Error("rollback failed", "error", rbErr, "cause", err)
			return zero, &dberr.TransactionRollbackError{RollbackErr: rbErr, Cause: err}
		}
		log.Debug("transaction rolled back", "cause", err)
		return zero, err
	}

	if _, err := s.Query(ctx, commitStmt); err != nil {
		log.Error("commit failed", "error", err)
		return zero, err
	}
	log.Debug("transaction committed")
	return out, nil
}

// Do is Run for functions that produce no value.
func Do(ctx context.Context, s *session.Session, opts Options, fn func(ctx context.Context, s *session.Session) error) error {
	_, err := Run(ctx, s, opts, func(ctx context.Context, s *session.Session) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	})
	return err
}

// rollback runs even when ctx has ended, since the session is still held.
func rollback(ctx context.Context, s *session.Session) error {
	_, err := s.Query(context.WithoutCancel(ctx), rollbackStmt)
	return err
}
