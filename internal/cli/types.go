package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/pgtype"
	"github.com/roach88/typedpg/internal/pool"
	"github.com/roach88/typedpg/internal/session"
)

// TypeInfo is one resolved catalog type.
type TypeInfo struct {
	Name     string `json:"name"`
	OID      int64  `json:"oid"`
	ArrayOID int64  `json:"array_oid,omitempty"`
}

// TypesResult lists resolved types in OID order.
type TypesResult []TypeInfo

// WriteText implements TextWriter.
func (r TypesResult) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tOID\tARRAY OID")
	for _, t := range r {
		arr := "-"
		if t.ArrayOID != 0 {
			arr = fmt.Sprint(t.ArrayOID)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Name, t.OID, arr)
	}
	return tw.Flush()
}

// NewTypesCommand creates the types command.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types <name>...",
		Short: "Resolve type names to OIDs",
		Long: `Look up type names in pg_type the way decoder registration does.
Every name must exist.

Example:
  typedpg types interval numeric`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypes(rootOpts, args, cmd)
		},
	}
}

func runTypes(opts *RootOptions, names []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	return opts.withPool(cmd, f, func(ctx context.Context, p *pool.Pool) error {
		entries, err := pool.Run(ctx, p, func(ctx context.Context, s *session.Session) ([]pgtype.CatalogEntry, error) {
			return pgtype.LookupTypes(ctx, s, names)
		})
		if err != nil {
			return f.Fail("type lookup failed", err)
		}

		out := make(TypesResult, len(entries))
		for i, e := range entries {
			out[i] = TypeInfo{Name: e.Typname, OID: e.OID, ArrayOID: e.Typarray}
		}
		return f.Success(out)
	})
}
