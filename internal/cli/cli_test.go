package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
tables: {
	Inventory: {
		columns: [
			{name: "item_id", type: "u64"},
			{name: "item_name", type: "string"},
		]
		indexes: [["item_id"]]
	}
	Orders: {
		columns: [
			{name: "order_id", type: "u64"},
			{name: "item_id", type: "u64"},
			{name: "qty", type: "u32"},
		]
		indexes: [["order_id"], ["item_id"]]
	}
}
`

func writeSchemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(testSchema), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
