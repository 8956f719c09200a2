package session

import (
	"context"

	"github.com/roach88/typedpg/internal/rowdecode"
)

// Provider hands out live connections and owns their pooling.
type Provider interface {
	// Acquire checks out one connection.
	Acquire(ctx context.Context) (Conn, error)

	// Shutdown closes every connection. Connections still checked out are
	// closed as they are released.
	Shutdown(ctx context.Context) error

	// Closed reports whether Shutdown has completed successfully.
	Closed() bool
}

// Conn is one checked-out connection.
type Conn interface {
	// Execute runs text with positional parameters and returns the raw
	// result. Column values are whatever the driver produced.
	Execute(ctx context.Context, text string, params []any) (rowdecode.Result, error)

	// Release returns the connection to its provider. A non-nil err marks
	// the connection as unsafe to reuse and the provider discards it.
	Release(err error)
}
