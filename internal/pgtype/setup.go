package pgtype

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/typedpg/internal/dberr"
)

// Setup runs a bootstrap function at most once and shares its outcome,
// failure included, with every caller.
type Setup struct {
	run  func(ctx context.Context) error
	once sync.Once
	done chan struct{}
	err  error
}

// NewSetup wraps run. Nothing executes until the first Wait.
func NewSetup(run func(ctx context.Context) error) *Setup {
	return &Setup{run: run, done: make(chan struct{})}
}

// Wait starts the computation on first use and blocks until it finishes
// or ctx ends. The computation is detached from ctx's cancellation, so a
// caller giving up does not fail it for the others.
func (s *Setup) Wait(ctx context.Context) error {
	s.once.Do(func() {
		go s.compute(context.WithoutCancel(ctx))
	})

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether the computation has finished.
func (s *Setup) Done() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Setup) compute(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.err = &dberr.TypeParserSetupError{Err: dberr.FromPanic(r).Err}
		}
	}()

	if err := s.run(ctx); err != nil {
		var setupErr *dberr.TypeParserSetupError
		if !errors.As(err, &setupErr) {
			err = &dberr.TypeParserSetupError{Err: err}
		}
		s.err = err
	}
}
