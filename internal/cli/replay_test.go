package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCommand(t *testing.T) {
	dir := writeSchemaDir(t)
	db := filepath.Join(t.TempDir(), "commits.db")

	_, err := runCLI(t, "exec", dir, "--db", db,
		"INSERT INTO Inventory VALUES (1, 'gear')",
		"INSERT INTO Orders VALUES (100, 1, 5)")
	require.NoError(t, err)

	out, err := runCLI(t, "replay", dir, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 2 commit(s), last seq 2")
	assert.Contains(t, out, "Inventory: 1 row(s)")
	assert.Contains(t, out, "Orders: 1 row(s)")
}

func TestReplayCommand_RequiresDB(t *testing.T) {
	dir := writeSchemaDir(t)
	_, err := runCLI(t, "replay", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}
