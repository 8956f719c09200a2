package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/rowdecode"
)

func openSQLite(t *testing.T, opts SQLOptions) *SQLProvider {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	p, err := OpenSQL(context.Background(), "sqlite3", dsn, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "no-such-driver", "x", SQLOptions{})

	var pce *dberr.PoolCreationError
	require.ErrorAs(t, err, &pce)
	assert.ErrorContains(t, err, "failed to open database")
}

func TestOpenSQL_UnreachableDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "dir", "test.db")
	_, err := OpenSQL(context.Background(), "sqlite3", dsn, SQLOptions{})

	var pce *dberr.PoolCreationError
	require.ErrorAs(t, err, &pce)
	assert.ErrorContains(t, err, "failed to connect to database")
}

func TestSQLProvider_Execute(t *testing.T) {
	p := openSQLite(t, SQLOptions{MaxSize: 2, MinSize: 1})
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release(nil)

	_, err = conn.Execute(ctx, "CREATE TABLE accounts (id INTEGER PRIMARY KEY, email TEXT, nickname TEXT)", nil)
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO accounts (id, email, nickname) VALUES ($1, $2, NULL), ($3, $2, 'b')",
		[]any{1, "a@example.com", 2})
	require.NoError(t, err)

	res, err := conn.Execute(ctx, "SELECT id, email, nickname FROM accounts ORDER BY id", nil)
	require.NoError(t, err)

	require.Len(t, res.Fields, 3)
	assert.Equal(t, rowdecode.Field{Name: "id", TypeName: "integer"}, res.Fields[0])
	assert.Equal(t, rowdecode.Field{Name: "email", TypeName: "text"}, res.Fields[1])
	assert.Equal(t, []rowdecode.Row{
		{"id": int64(1), "email": "a@example.com", "nickname": nil},
		{"id": int64(2), "email": "a@example.com", "nickname": "b"},
	}, res.Rows)
}

func TestSQLProvider_EmptyResultHasNoRows(t *testing.T) {
	p := openSQLite(t, SQLOptions{})
	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release(nil)

	res, err := conn.Execute(context.Background(), "SELECT 1 AS one WHERE 1 = 0", nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Equal(t, 0, res.Len())
}

func TestSQLProvider_ExecuteError(t *testing.T) {
	p := openSQLite(t, SQLOptions{})
	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release(nil)

	_, err = conn.Execute(context.Background(), "SELECT * FROM missing_table", nil)
	assert.ErrorContains(t, err, "missing_table")
}

func TestSQLProvider_ReleaseRecyclesHealthyConnection(t *testing.T) {
	p := openSQLite(t, SQLOptions{MaxSize: 2, MinSize: 2})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(nil)

	stats := p.DB().Stats()
	assert.Equal(t, 1, stats.OpenConnections)
	assert.Equal(t, 1, stats.Idle)
}

func TestSQLProvider_ReleaseWithErrorDiscards(t *testing.T) {
	p := openSQLite(t, SQLOptions{MaxSize: 2, MinSize: 2})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(errors.New("rollback failed"))
	conn.Release(nil)

	stats := p.DB().Stats()
	assert.Equal(t, 0, stats.OpenConnections)
	assert.Equal(t, 0, stats.Idle)
}

func TestSQLProvider_TestOnBorrow(t *testing.T) {
	p := openSQLite(t, SQLOptions{TestOnBorrow: true})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(nil)
}

func TestSQLProvider_AcquireTimeout(t *testing.T) {
	p := openSQLite(t, SQLOptions{MaxSize: 1, AcquireTimeout: 20 * time.Millisecond})

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release(nil)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSQLProvider_Shutdown(t *testing.T) {
	p := openSQLite(t, SQLOptions{})
	assert.False(t, p.Closed())

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, p.Closed())
	require.NoError(t, p.Shutdown(context.Background()))

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrEnding)
}

func TestSQLProvider_ShutdownTimeoutLeavesPoolOpen(t *testing.T) {
	p := openSQLite(t, SQLOptions{})

	// Stands in for a health check that has not returned yet.
	p.wg.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Closed())
	require.NoError(t, p.DB().PingContext(context.Background()), "pool is still open")

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrEnding)

	p.wg.Done()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, p.Closed())
	assert.Error(t, p.DB().PingContext(context.Background()))
}

func TestSQLProvider_HealthCheckReportsOutOfBand(t *testing.T) {
	errs := make(chan error, 10)
	p := openSQLite(t, SQLOptions{
		EvictionInterval: 10 * time.Millisecond,
		OnError:          func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})

	// Closing the pool underneath the provider makes every ping fail.
	require.NoError(t, p.DB().Close())

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "health check failed")
	case <-time.After(5 * time.Second):
		t.Fatal("health check never reported")
	}
}
