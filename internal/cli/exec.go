package cli

import (
	"github.com/spf13/cobra"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <schema-dir> <sql>...",
		Short: "Execute ad hoc SQL statements",
		Long: `Compile the schema, then execute each statement in order against a
fresh store. With --db, previously logged commits are replayed first and
new commits are appended to the log, so state persists across runs.

Example:
  liveql exec ./schema "INSERT INTO Inventory VALUES (1, 'gear')" "SELECT * FROM Inventory"
  liveql exec ./schema --db ./liveql.db "SELECT COUNT(*) FROM Orders"`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to commit log database (optional)")

	return cmd
}

func runExec(opts *ExecOptions, schemaDir string, statements []string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	eng, cleanup, err := openEngine(cmd.Context(), schemaDir, opts.Database)
	if err != nil {
		return err
	}
	defer cleanup()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	for _, sql := range statements {
		f.VerboseLog("executing: %s", sql)
		res, err := eng.ExecuteAdHoc(sql)
		if err != nil {
			return WrapExitError(ExitFailure, "statement failed", err)
		}
		if err := f.writeResult(res); err != nil {
			return err
		}
	}
	return nil
}
