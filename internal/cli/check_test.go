package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "table Inventory (2 columns, 1 indexes)")
	assert.Contains(t, out, "index orders_ix1 (item_id)")
	assert.Contains(t, out, "2 table(s) ok")
}

func TestCheckCommand_JSON(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "check", dir, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"Inventory"`)
}

func TestCheckCommand_BadSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"),
		[]byte(`tables: t: {columns: [{name: "a", type: "flux"}]}`), 0o644))

	_, err := runCLI(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCommand_MissingDir(t *testing.T) {
	_, err := runCLI(t, "check", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
