package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "liveql")
	assert.Contains(t, out, "check")
	assert.Contains(t, out, "exec")
	assert.Contains(t, out, "sub")
	assert.Contains(t, out, "replay")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	dir := writeSchemaDir(t)
	_, err := runCLI(t, "check", dir, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "nope", nil)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
