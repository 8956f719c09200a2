package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/pool"
	"github.com/roach88/typedpg/internal/query"
	"github.com/roach88/typedpg/internal/rowdecode"
	"github.com/roach88/typedpg/internal/session"
	"github.com/roach88/typedpg/internal/sqlstmt"
)

var pingStmt = sqlstmt.SQL("SELECT 1 AS ok")

// PingResult reports a successful round trip.
type PingResult struct {
	Session   string  `json:"session"`
	LatencyMS float64 `json:"latency_ms"`
}

// WriteText implements TextWriter.
func (r PingResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "✓ database reachable (session %s, %.1fms)\n", r.Session, r.LatencyMS)
	return err
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check out a session and run SELECT 1",
		Long: `Open the pool, check out one session and run a single-row query on it.

Exit code 2 means the pool could not be created or checked out.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(rootOpts, cmd)
		},
	}
}

func runPing(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	return opts.withPool(cmd, f, func(ctx context.Context, p *pool.Pool) error {
		start := time.Now()
		res, err := pool.Run(ctx, p, func(ctx context.Context, s *session.Session) (PingResult, error) {
			if _, err := query.One(ctx, s, rowdecode.Rows(), pingStmt); err != nil {
				return PingResult{}, err
			}
			return PingResult{Session: s.ID()}, nil
		})
		if err != nil {
			return f.Fail("ping failed", err)
		}
		res.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
		return f.SuccessIn(res.Session, res)
	})
}
