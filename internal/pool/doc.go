// Package pool runs programs against pooled sessions.
//
// WithConnection is the only way to obtain a session: it waits for the
// pool's one-time type decoder setup, checks a session out, runs the
// program and releases the session on every exit path. Sessions released
// after a failed rollback or a panic are discarded by the provider.
package pool
