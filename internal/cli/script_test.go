package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScript(t *testing.T) {
	path := writeScript(t, testScript)
	script, err := LoadScript(path)
	require.NoError(t, err)

	assert.Equal(t, "gear-watch", script.Name)
	assert.Len(t, script.Setup, 1)
	require.Len(t, script.Subscriptions, 1)
	assert.Equal(t, "SELECT * FROM Inventory WHERE item_name = 'gear'", script.Subscriptions[0].Query)
	assert.Len(t, script.Steps, 3)
}

func TestLoadScript_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "missing name",
			src:     "subscriptions:\n  - query: SELECT * FROM t\nsteps:\n  - INSERT INTO t VALUES (1)\n",
			wantErr: "name is required",
		},
		{
			name:    "no subscriptions",
			src:     "name: x\nsteps:\n  - INSERT INTO t VALUES (1)\n",
			wantErr: "subscriptions list is required",
		},
		{
			name:    "empty query",
			src:     "name: x\nsubscriptions:\n  - conn: a\nsteps:\n  - INSERT INTO t VALUES (1)\n",
			wantErr: "subscriptions[0]: query is required",
		},
		{
			name:    "no steps",
			src:     "name: x\nsubscriptions:\n  - query: SELECT * FROM t\n",
			wantErr: "steps list is required",
		},
		{
			name:    "empty step",
			src:     "name: x\nsubscriptions:\n  - query: SELECT * FROM t\nsteps:\n  - \"\"\n",
			wantErr: "steps[0]: statement must not be empty",
		},
		{
			name:    "unknown field",
			src:     "name: x\nqueries:\n  - SELECT * FROM t\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "not yaml",
			src:     "{{{",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScript(writeScript(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScript_MissingFile(t *testing.T) {
	_, err := LoadScript(t.TempDir() + "/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read script file")
}
