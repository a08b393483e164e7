package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/engine"
	"github.com/roach88/liveql/internal/schema"
	"github.com/roach88/liveql/internal/store"
)

// configureLogging routes slog to stderr so JSON output on stdout stays
// parseable. Verbose enables per-commit debug detail.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadSchema compiles the CUE table declarations in dir.
func loadSchema(dir string) ([]*catalog.Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "schema directory not accessible", err)
	}
	if !info.IsDir() {
		return nil, WrapExitError(ExitCommandError, "schema path is not a directory", nil)
	}
	tables, err := schema.LoadDir(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to compile schema", err)
	}
	return tables, nil
}

// openEngine builds an engine over the compiled schema. When dbPath is
// set, the commit log is opened, replayed into the fresh store, and
// wired in so subsequent local commits are persisted. The returned
// cleanup closes the log.
func openEngine(ctx context.Context, schemaDir, dbPath string) (*engine.Engine, func(), error) {
	tables, err := loadSchema(schemaDir)
	if err != nil {
		return nil, nil, err
	}
	mem, err := catalog.NewMem(tables...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid schema", err)
	}

	if dbPath == "" {
		return engine.New(mem), func() {}, nil
	}

	log, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open commit log", err)
	}
	if err := log.Replay(ctx, mem.ApplyCommit); err != nil {
		log.Close()
		return nil, nil, WrapExitError(ExitFailure, "commit log replay failed", err)
	}
	seq, err := log.LastSeq(ctx)
	if err != nil {
		log.Close()
		return nil, nil, WrapExitError(ExitFailure, "commit log inspection failed", err)
	}
	slog.Info("commit log replayed", "path", dbPath, "last_seq", seq)

	e := engine.New(mem, engine.WithCommitLog(log))
	cleanup := func() {
		if err := log.Close(); err != nil {
			slog.Error("error closing commit log", "error", err)
		}
	}
	return e, cleanup, nil
}
