package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/pgtx"
	"github.com/roach88/typedpg/internal/pool"
	"github.com/roach88/typedpg/internal/query"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Mode       string
	Args       []string
	Tx         bool
	Isolation  string
	ReadOnly   bool
	Deferrable bool
}

// QueryResult holds the rows a statement returned.
type QueryResult struct {
	Mode  rowdecode.Contract `json:"mode"`
	Count int                `json:"count"`
	Rows  []rowdecode.Row    `json:"rows"`
}

// WriteText implements TextWriter. Each row is printed as sorted
// column=value pairs.
func (r QueryResult) WriteText(w io.Writer) error {
	for _, row := range r.Rows {
		cols := make([]string, 0, len(row))
		for k := range row {
			cols = append(cols, k)
		}
		sort.Strings(cols)

		pairs := make([]string, len(cols))
		for i, c := range cols {
			pairs[i] = c + "=" + formatValue(row[c])
		}
		if _, err := fmt.Fprintln(w, strings.Join(pairs, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", r.Count, plural(r.Count, "row", "rows"))
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a statement and check its row count",
		Long: `Run a statement on a checked-out session and verify the number of rows
it returned against --mode:

  none          exactly zero rows
  one           exactly one row
  one-or-more   at least one row
  one-or-none   zero or one row
  any           any number of rows

Values are bound with ? markers (?? is a literal ?), one --arg per marker.
With --tx the statement runs inside a transaction that is rolled back
when the row count is rejected.

Example:
  typedpg query --mode one 'SELECT * FROM users WHERE id = ?' --arg 42
  typedpg query --tx --isolation serializable --mode none 'DELETE FROM jobs WHERE done'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", string(rowdecode.ContractAny), "cardinality contract (none|one|one-or-more|one-or-none|any)")
	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "value bound to the next ? marker (repeatable)")
	cmd.Flags().BoolVar(&opts.Tx, "tx", false, "run inside a transaction")
	cmd.Flags().StringVar(&opts.Isolation, "isolation", "", "transaction isolation level (implies --tx)")
	cmd.Flags().BoolVar(&opts.ReadOnly, "read-only", false, "open the transaction READ ONLY (implies --tx)")
	cmd.Flags().BoolVar(&opts.Deferrable, "deferrable", false, "open the transaction DEFERRABLE (implies --tx)")

	return cmd
}

func runQuery(opts *QueryOptions, text string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	contract := rowdecode.Contract(opts.Mode)
	if !slices.Contains(rowdecode.Contracts, contract) {
		msg := fmt.Sprintf("invalid mode %q: must be one of %v", opts.Mode, rowdecode.Contracts)
		_ = f.Error(CodeUsage, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	if n := sqlstmt.Markers(text); n != len(opts.Args) {
		msg := fmt.Sprintf("statement has %d ? marker(s) but %d --arg value(s)", n, len(opts.Args))
		_ = f.Error(CodeUsage, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	txOpts, useTx, err := opts.txOptions()
	if err != nil {
		_ = f.Error(CodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid transaction options", err)
	}

	args := make([]any, len(opts.Args))
	for i, a := range opts.Args {
		args[i] = a
	}
	stmt := sqlstmt.SQL(text, args...)
	f.VerboseLog("statement: %s", stmt)

	return opts.withPool(cmd, f, func(ctx context.Context, p *pool.Pool) error {
		var id string
		run := func(ctx context.Context, s *session.Session) ([]rowdecode.Row, error) {
			id = s.ID()
			return query.Rows(ctx, s, contract, rowdecode.Rows(), stmt)
		}

		rows, err := pool.Run(ctx, p, func(ctx context.Context, s *session.Session) ([]rowdecode.Row, error) {
			if useTx {
				return pgtx.Run(ctx, s, txOpts, run)
			}
			return run(ctx, s)
		})
		if err != nil {
			return f.Fail("query failed", err)
		}

		if rows == nil {
			rows = []rowdecode.Row{}
		}
		return f.SuccessIn(id, QueryResult{Mode: contract, Count: len(rows), Rows: rows})
	})
}

// txOptions reports whether any transaction flag was given.
func (o *QueryOptions) txOptions() (pgtx.Options, bool, error) {
	txOpts := pgtx.Options{ReadOnly: o.ReadOnly, Deferrable: o.Deferrable}
	if o.Isolation != "" {
		iso, err := pgtx.ParseIsolation(o.Isolation)
		if err != nil {
			return pgtx.Options{}, false, err
		}
		txOpts.Isolation = iso
	}
	useTx := o.Tx || o.Isolation != "" || o.ReadOnly || o.Deferrable
	return txOpts, useTx, nil
}
