package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/liveql/internal/catalog"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <schema-dir>",
		Short: "Compile and validate a CUE schema directory",
		Long: `Compile the CUE table declarations in a directory and report the
resulting tables, columns, and indexes. Exits non-zero on any compile
error.

Example:
  liveql check ./schema
  liveql check ./schema --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, dir string, cmd *cobra.Command) error {
	tables, err := loadSchema(dir)
	if err != nil {
		return err
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.Success(describeTables(tables))
	}

	for _, t := range tables {
		fmt.Fprintf(cmd.OutOrStdout(), "table %s (%d columns, %d indexes)\n",
			t.Name, len(t.Columns), len(t.Indexes))
		for _, c := range t.Columns {
			suffix := ""
			if c.Nullable {
				suffix = " nullable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s%s\n", c.Name, c.Type, suffix)
		}
		for _, ix := range t.Indexes {
			cols := make([]string, len(ix.Columns))
			for i, ord := range ix.Columns {
				cols[i] = t.Columns[ord].Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  index %s (%s)\n", ix.Name, strings.Join(cols, ", "))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d table(s) ok\n", len(tables))
	return nil
}

func describeTables(tables []*catalog.Table) []map[string]any {
	out := make([]map[string]any, 0, len(tables))
	for _, t := range tables {
		cols := make([]map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = map[string]any{"name": c.Name, "type": c.Type.String(), "nullable": c.Nullable}
		}
		ixs := make([]map[string]any, len(t.Indexes))
		for i, ix := range t.Indexes {
			names := make([]string, len(ix.Columns))
			for j, ord := range ix.Columns {
				names[j] = t.Columns[ord].Name
			}
			ixs[i] = map[string]any{"name": ix.Name, "columns": names}
		}
		out = append(out, map[string]any{"name": t.Name, "columns": cols, "indexes": ixs})
	}
	return out
}
