package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <schema-dir>",
		Short: "Replay a commit log and report the rebuilt state",
		Long: `Replay every logged commit against a fresh store built from the
schema and report the resulting table row counts. A log that fails to
replay (missing table, contradictory delta) exits non-zero.

Example:
  liveql replay ./schema --db ./liveql.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to commit log database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, schemaDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)
	ctx := cmd.Context()

	tables, err := loadSchema(schemaDir)
	if err != nil {
		return err
	}
	mem, err := catalog.NewMem(tables...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid schema", err)
	}

	log, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open commit log", err)
	}
	defer log.Close()

	commits := 0
	err = log.Replay(ctx, func(c *catalog.Commit) error {
		commits++
		return mem.ApplyCommit(c)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "commit log replay failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		counts := map[string]int{}
		for _, t := range tables {
			n, err := mem.RowCount(t)
			if err != nil {
				return WrapExitError(ExitFailure, "row count failed", err)
			}
			counts[t.Name] = n
		}
		return f.Success(map[string]any{
			"commits":  commits,
			"last_seq": mem.Seq(),
			"tables":   counts,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d commit(s), last seq %d\n", commits, mem.Seq())
	for _, t := range tables {
		n, err := mem.RowCount(t)
		if err != nil {
			return WrapExitError(ExitFailure, "row count failed", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d row(s)\n", t.Name, n)
	}
	return nil
}
