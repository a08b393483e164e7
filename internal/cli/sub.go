package cli

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/liveql/internal/value"
)

// SubOptions holds flags for the sub command.
type SubOptions struct {
	*RootOptions
	Database string
}

// NewSubCommand creates the sub command.
func NewSubCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sub <schema-dir> <script.yaml>",
		Short: "Run a subscription script",
		Long: `Compile the schema, run the script's setup statements, register its
subscription queries, then apply each step as one committed transaction
and print the subscription updates it produces. Ends with each
subscription's final materialized rows.

Example:
  liveql sub ./schema ./orders.yaml
  liveql sub ./schema ./orders.yaml --db ./liveql.db --verbose`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSub(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to commit log database (optional)")

	return cmd
}

func runSub(opts *SubOptions, schemaDir, scriptPath string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	script, err := LoadScript(scriptPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	eng, cleanup, err := openEngine(cmd.Context(), schemaDir, opts.Database)
	if err != nil {
		return err
	}
	defer cleanup()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	f.VerboseLog("script: %s", script.Name)

	for _, sql := range script.Setup {
		if _, err := eng.ExecuteAdHoc(sql); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("setup statement failed: %s", sql), err)
		}
	}

	ids := make([]uuid.UUID, 0, len(script.Subscriptions))
	for i, sub := range script.Subscriptions {
		conn := sub.Conn
		if conn == "" {
			conn = "cli"
		}
		id, err := eng.CompileSubscription(conn, sub.Query)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("subscription %d rejected", i), err)
		}
		ids = append(ids, id)
		rows, _ := eng.SubscriptionRows(id)
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "subscription %s: %s (%d initial rows)\n", id, sub.Query, len(rows))
		}
	}

	for _, sql := range script.Steps {
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "> %s\n", sql)
		}
		res, err := eng.ExecuteAdHoc(sql)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("step failed: %s", sql), err)
		}
		if err := f.writeResult(res); err != nil {
			return err
		}
	}

	// Final materialized output per subscription.
	if opts.Format == "json" {
		final := make([]map[string]any, 0, len(ids))
		for i, id := range ids {
			rows, _ := eng.SubscriptionRows(id)
			final = append(final, map[string]any{
				"subscription": id.String(),
				"query":        script.Subscriptions[i].Query,
				"rows":         renderRows(sortRows(rows)),
			})
		}
		return f.Success(map[string]any{"final": final})
	}
	for _, id := range ids {
		rows, _ := eng.SubscriptionRows(id)
		fmt.Fprintf(cmd.OutOrStdout(), "final %s: %d row(s)\n", id, len(rows))
		for _, r := range sortRows(rows) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", formatRow(r))
		}
	}
	return nil
}

// sortRows orders rows by identity for stable display.
func sortRows(rows []value.Row) []value.Row {
	sort.Slice(rows, func(i, j int) bool {
		return value.MustRowKey(rows[i]) < value.MustRowKey(rows[j])
	})
	return rows
}
