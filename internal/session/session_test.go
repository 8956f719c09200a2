package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedpg/internal/dberr"
	"github.com/roach88/typedpg/internal/pgtype"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
	"github.com/roach88/typedpg/internal/sqlstmt"
	"github.com/roach88/typedpg/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkout(t *testing.T, p *testutil.ScriptedProvider, opts session.Options) *session.Session {
	t.Helper()
	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	opts.Logger = quietLogger()
	return session.Wrap(conn, opts)
}

func TestSession_QueryPassesStatement(t *testing.T) {
	p := testutil.NewScriptedProvider().Rows("SELECT * FROM t WHERE id = $1", rowdecode.Row{"id": int64(7)})
	s := checkout(t, p, session.Options{ID: "s1"})

	res, err := s.Query(context.Background(), sqlstmt.SQL("SELECT * FROM t WHERE id = ?", 7))
	require.NoError(t, err)
	assert.Equal(t, []rowdecode.Row{{"id": int64(7)}}, res.Rows)
	assert.Equal(t, []testutil.Executed{{Conn: 1, Text: "SELECT * FROM t WHERE id = $1", Params: []any{7}}}, p.Executed())
	assert.Equal(t, "s1", s.ID())
}

func TestSession_DriverFailureIsTagged(t *testing.T) {
	cause := errors.New("relation \"t\" does not exist")
	p := testutil.NewScriptedProvider().Fail("SELECT * FROM t", cause)
	s := checkout(t, p, session.Options{})

	_, err := s.Query(context.Background(), sqlstmt.SQL("SELECT * FROM t"))

	var dq *dberr.DriverQueryError
	require.ErrorAs(t, err, &dq)
	assert.Equal(t, "SELECT * FROM t", dq.Text)
	assert.ErrorIs(t, err, cause)
}

func TestSession_AppliesRegistry(t *testing.T) {
	p := testutil.NewScriptedProvider().On("SELECT d", testutil.Response{Result: rowdecode.Result{
		Fields: []rowdecode.Field{{Name: "d", TypeName: "interval"}},
		Rows:   []rowdecode.Row{{"d": []byte("2 days")}},
	}})
	reg := pgtype.NewRegistry()
	reg.Register("interval", 1186, pgtype.IntervalDecoder)
	s := checkout(t, p, session.Options{Registry: reg})

	res, err := s.Query(context.Background(), sqlstmt.SQL("SELECT d"))
	require.NoError(t, err)
	assert.Equal(t, "P0Y0M2DT0H0M0S", res.Rows[0]["d"])
}

func TestSession_DecoderFailureIsDriverError(t *testing.T) {
	p := testutil.NewScriptedProvider().On("SELECT d", testutil.Response{Result: rowdecode.Result{
		Fields: []rowdecode.Field{{Name: "d", TypeName: "money"}},
		Rows:   []rowdecode.Row{{"d": "x"}},
	}})
	reg := pgtype.NewRegistry()
	reg.Register("money", 790, func(string) (any, error) { return nil, errors.New("bad money") })
	s := checkout(t, p, session.Options{Registry: reg})

	_, err := s.Query(context.Background(), sqlstmt.SQL("SELECT d"))
	kind, ok := dberr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.KindDriverQuery, kind)
}

func TestSession_ReleaseOnce(t *testing.T) {
	p := testutil.NewScriptedProvider()
	s := checkout(t, p, session.Options{})
	poison := errors.New("poison")

	assert.False(t, s.Released())
	s.Release(poison)
	s.Release(nil)

	assert.True(t, s.Released())
	assert.Equal(t, []testutil.Released{{Conn: 1, Err: poison}}, p.Released())
}

func TestSession_DefaultTransformIsIdentity(t *testing.T) {
	s := checkout(t, testutil.NewScriptedProvider(), session.Options{})
	row := rowdecode.Row{"user_id": 1}
	assert.Equal(t, row, s.Transform()(row))

	s = checkout(t, testutil.NewScriptedProvider(), session.Options{Transform: rowdecode.CamelCase})
	assert.Equal(t, rowdecode.Row{"userId": 1}, s.Transform()(row))
}

func TestUUIDv7Generator(t *testing.T) {
	gen := session.UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14])
}
