package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/typedpg/internal/pgtype"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
)

// Response is one scripted outcome for a statement.
type Response struct {
	Result rowdecode.Result
	Err    error
	Panic  any
}

// Executed records one statement run on a scripted connection.
type Executed struct {
	Conn   int
	Text   string
	Params []any
}

// Released records one Release call.
type Released struct {
	Conn int
	Err  error
}

// ScriptedProvider is an in-memory session.Provider for tests.
//
// Statements are matched by exact text. Each text has a queue of
// responses; the last one repeats once the queue is drained. Unscripted
// statements succeed with zero rows. Every execution and release is
// recorded in order.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ScriptedProvider struct {
	mu          sync.Mutex
	scripts     map[string][]Response
	acquireErr  error
	shutdownErr error
	ending      bool
	shutdowns   int
	acquired    int
	executed    []Executed
	released    []Released
}

// NewScriptedProvider creates an empty provider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{scripts: make(map[string][]Response)}
}

// On queues responses for text.
func (p *ScriptedProvider) On(text string, responses ...Response) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[text] = append(p.scripts[text], responses...)
	return p
}

// Rows scripts text to succeed with rows.
func (p *ScriptedProvider) Rows(text string, rows ...rowdecode.Row) *ScriptedProvider {
	if rows == nil {
		rows = []rowdecode.Row{}
	}
	return p.On(text, Response{Result: rowdecode.Result{Rows: rows}})
}

// Fail scripts text to fail with err.
func (p *ScriptedProvider) Fail(text string, err error) *ScriptedProvider {
	return p.On(text, Response{Err: err})
}

// WithCatalog scripts the type catalog lookup with the OIDs of the
// default decoders.
func (p *ScriptedProvider) WithCatalog() *ScriptedProvider {
	return p.Rows(pgtype.TypeQuery(nil).Text,
		rowdecode.Row{"typname": "interval", "oid": int64(1186), "typarray": int64(1187)},
	)
}

// FailAcquire makes every later Acquire fail with err.
func (p *ScriptedProvider) FailAcquire(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = err
	return p
}

// FailShutdown makes Shutdown fail with err. Nil clears it.
func (p *ScriptedProvider) FailShutdown(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownErr = err
	return p
}

// Acquire implements session.Provider.
func (p *ScriptedProvider) Acquire(ctx context.Context) (session.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ending {
		return nil, errors.New("scripted provider is shutting down")
	}
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &scriptedConn{provider: p, id: p.acquired}, nil
}

// Shutdown implements session.Provider.
func (p *ScriptedProvider) Shutdown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdowns++
	if p.shutdownErr != nil {
		return p.shutdownErr
	}
	p.ending = true
	return nil
}

// Closed implements session.Provider.
func (p *ScriptedProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ending
}

// Acquired returns the number of successful checkouts.
func (p *ScriptedProvider) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Shutdowns returns the number of Shutdown calls.
func (p *ScriptedProvider) Shutdowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdowns
}

// Executed returns every executed statement in order.
func (p *ScriptedProvider) Executed() []Executed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Executed(nil), p.executed...)
}

// Texts returns the text of every statement executed on conn, in order.
// conn 0 means all connections.
func (p *ScriptedProvider) Texts(conn int) []string {
	var out []string
	for _, e := range p.Executed() {
		if conn == 0 || e.Conn == conn {
			out = append(out, e.Text)
		}
	}
	return out
}

// Released returns every release in order.
func (p *ScriptedProvider) Released() []Released {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Released(nil), p.released...)
}

func (p *ScriptedProvider) next(text string) Response {
	queue := p.scripts[text]
	switch len(queue) {
	case 0:
		return Response{Result: rowdecode.Result{Rows: []rowdecode.Row{}}}
	case 1:
		return queue[0]
	default:
		p.scripts[text] = queue[1:]
		return queue[0]
	}
}

type scriptedConn struct {
	provider *ScriptedProvider
	id       int
}

func (c *scriptedConn) Execute(ctx context.Context, text string, params []any) (rowdecode.Result, error) {
	p := c.provider
	p.mu.Lock()
	p.executed = append(p.executed, Executed{Conn: c.id, Text: text, Params: params})
	resp := p.next(text)
	p.mu.Unlock()

	if resp.Panic != nil {
		panic(resp.Panic)
	}
	if err := ctx.Err(); err != nil {
		return rowdecode.Result{}, err
	}
	if resp.Err != nil {
		return rowdecode.Result{}, resp.Err
	}
	return cloneResult(resp.Result), nil
}

func (c *scriptedConn) Release(err error) {
	p := c.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, Released{Conn: c.id, Err: err})
}

// cloneResult copies rows so decoders applied by a session do not leak
// into the script.
func cloneResult(res rowdecode.Result) rowdecode.Result {
	out := rowdecode.Result{Fields: res.Fields, Rows: make([]rowdecode.Row, len(res.Rows))}
	for i, row := range res.Rows {
		cp := make(rowdecode.Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}
