package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
name: gear-watch
description: watch gear inventory
setup:
  - INSERT INTO Inventory VALUES (1, 'gear')
subscriptions:
  - query: SELECT * FROM Inventory WHERE item_name = 'gear'
steps:
  - INSERT INTO Inventory VALUES (2, 'gear')
  - INSERT INTO Orders VALUES (100, 1, 5)
  - DELETE FROM Inventory WHERE item_id = 2
`

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestSubCommand(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "sub", dir, writeScript(t, testScript))
	require.NoError(t, err)

	assert.Contains(t, out, "(1 initial rows)")
	assert.Contains(t, out, "> INSERT INTO Inventory VALUES (2, 'gear')")
	assert.Contains(t, out, "+ (2, 'gear')")
	assert.Contains(t, out, "- (2, 'gear')")
	// The Orders insert touches no subscribed table.
	assert.NotContains(t, out, "+ (100")
	assert.Contains(t, out, "final")
	assert.Contains(t, out, "(1, 'gear')")
}

func TestSubCommand_JSON(t *testing.T) {
	dir := writeSchemaDir(t)
	out, err := runCLI(t, "sub", dir, "--format", "json", writeScript(t, testScript))
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"final"`)
	assert.Contains(t, out, `"'gear'"`)
}

func TestSubCommand_MissingScript(t *testing.T) {
	dir := writeSchemaDir(t)
	_, err := runCLI(t, "sub", dir, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSubCommand_BadSubscriptionQuery(t *testing.T) {
	dir := writeSchemaDir(t)
	script := writeScript(t, `
name: bad
subscriptions:
  - query: SELECT * FROM Nope
steps:
  - INSERT INTO Inventory VALUES (1, 'gear')
`)
	_, err := runCLI(t, "sub", dir, script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "subscription 0 rejected")
}
