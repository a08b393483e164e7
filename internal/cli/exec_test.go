package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommand(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "exec", dir,
		"INSERT INTO Inventory VALUES (1, 'gear')",
		"SELECT * FROM Inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "1 row(s) affected")
	assert.Contains(t, out, "item_id | item_name")
	assert.Contains(t, out, "(1, 'gear')")
	assert.Contains(t, out, "1 row(s)\n")
}

func TestExecCommand_JSON(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "exec", dir, "--format", "json",
		"INSERT INTO Inventory VALUES (1, 'gear')",
		"SELECT item_name FROM Inventory")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"columns":["item_name"]`)
	assert.Contains(t, out, `"'gear'"`)
}

func TestExecCommand_Persistence(t *testing.T) {
	dir := writeSchemaDir(t)
	db := filepath.Join(t.TempDir(), "commits.db")

	_, err := runCLI(t, "exec", dir, "--db", db,
		"INSERT INTO Inventory VALUES (1, 'gear')",
		"INSERT INTO Orders VALUES (100, 1, 5)")
	require.NoError(t, err)

	// A fresh invocation replays the log before executing.
	out, err := runCLI(t, "exec", dir, "--db", db, "SELECT COUNT(*) FROM Orders")
	require.NoError(t, err)
	assert.Contains(t, out, "(1)")
}

func TestExecCommand_StatementError(t *testing.T) {
	dir := writeSchemaDir(t)
	_, err := runCLI(t, "exec", dir, "SELECT * FROM Nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "statement failed")
}

func TestExecCommand_BadSchemaDir(t *testing.T) {
	_, err := runCLI(t, "exec", filepath.Join(t.TempDir(), "nope"), "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
