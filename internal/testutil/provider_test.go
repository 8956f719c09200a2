package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedpg/internal/rowdecode"
)

func TestScriptedProvider_ResponsesQueueThenRepeat(t *testing.T) {
	boom := errors.New("boom")
	p := NewScriptedProvider().
		On("SELECT x", Response{Err: boom}, Response{Result: rowdecode.Result{Rows: []rowdecode.Row{{"x": 1}}}})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = conn.Execute(context.Background(), "SELECT x", nil)
	assert.ErrorIs(t, err, boom)

	for i := 0; i < 2; i++ {
		res, err := conn.Execute(context.Background(), "SELECT x", nil)
		require.NoError(t, err)
		assert.Equal(t, []rowdecode.Row{{"x": 1}}, res.Rows)
	}
}

func TestScriptedProvider_UnscriptedReturnsNoRows(t *testing.T) {
	p := NewScriptedProvider()
	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	res, err := conn.Execute(context.Background(), "DELETE FROM t", []any{1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Equal(t, []Executed{{Conn: 1, Text: "DELETE FROM t", Params: []any{1}}}, p.Executed())
}

func TestScriptedProvider_ResultsAreCopied(t *testing.T) {
	p := NewScriptedProvider().Rows("q", rowdecode.Row{"a": 1})
	conn, _ := p.Acquire(context.Background())

	res, _ := conn.Execute(context.Background(), "q", nil)
	res.Rows[0]["a"] = 2

	res, _ = conn.Execute(context.Background(), "q", nil)
	assert.Equal(t, 1, res.Rows[0]["a"])
}

func TestScriptedProvider_RecordsReleases(t *testing.T) {
	p := NewScriptedProvider()
	poison := errors.New("poison")

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	c2.Release(poison)
	c1.Release(nil)

	assert.Equal(t, []Released{{Conn: 2, Err: poison}, {Conn: 1}}, p.Released())
	assert.Equal(t, 2, p.Acquired())
}

func TestScriptedProvider_AcquireAndShutdownFailures(t *testing.T) {
	p := NewScriptedProvider().FailAcquire(errors.New("no slots")).FailShutdown(errors.New("stuck"))

	_, err := p.Acquire(context.Background())
	assert.EqualError(t, err, "no slots")

	assert.EqualError(t, p.Shutdown(context.Background()), "stuck")
	assert.False(t, p.Closed())
	assert.Equal(t, 1, p.Shutdowns())
}

func TestScriptedProvider_ShutdownStopsAcquire(t *testing.T) {
	p := NewScriptedProvider()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, p.Closed())

	_, err := p.Acquire(context.Background())
	assert.Error(t, err)
}

func TestScriptedProvider_Panic(t *testing.T) {
	p := NewScriptedProvider().On("bad", Response{Panic: "driver exploded"})
	conn, _ := p.Acquire(context.Background())

	assert.PanicsWithValue(t, "driver exploded", func() {
		_, _ = conn.Execute(context.Background(), "bad", nil)
	})
}
