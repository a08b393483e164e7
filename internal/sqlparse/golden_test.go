package sqlparse

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Golden files pin the AST shape for representative statements.
// Regenerate with: go test ./internal/sqlparse -update
func TestDump_Golden(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{
			name: "select_subscription",
			src:  "SELECT Inventory.* FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id WHERE Orders.status = 'open'",
		},
		{
			name: "select_aggregate",
			src:  "SELECT COUNT(*) AS n, SUM(qty) AS total FROM Orders WHERE qty >= 2 AND region != 'eu' OR rush = true",
		},
		{
			name: "select_distinct_limit",
			src:  "SELECT DISTINCT item_name FROM Inventory ORDER BY item_name LIMIT 2",
		},
		{
			name: "insert_values",
			src:  "INSERT INTO Accounts (id, owner) VALUES (0x01, X'FF'), (2, 0xAB)",
		},
		{
			name: "update_where",
			src:  "UPDATE Inventory SET qty = 5 WHERE item_id = 1",
		},
	}

	g := goldie.New(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := Parse(tc.src)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(Dump(stmt)))
		})
	}
}
