package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/pgtype"
)

// IntervalResult is a parsed interval.
type IntervalResult struct {
	Input   string `json:"input"`
	ISO8601 string `json:"iso8601"`
}

// WriteText implements TextWriter.
func (r IntervalResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.ISO8601)
	return err
}

// NewIntervalCommand creates the interval command.
func NewIntervalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interval <text>",
		Short: "Convert a Postgres interval to ISO-8601",
		Long: `Parse an interval in Postgres output format and print it the way
query results decode it. No database connection is made.

Example:
  typedpg interval '1 year 2 mons 3 days 04:05:06.5'
  P1Y2M3DT4H5M6.5S`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterval(rootOpts, args[0], cmd)
		},
	}
}

func runInterval(opts *RootOptions, text string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	iso, err := pgtype.IntervalToISO(text)
	if err != nil {
		_ = f.Error(CodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid interval", err)
	}
	return f.Success(IntervalResult{Input: text, ISO8601: iso})
}
