package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) Statement {
	t.Helper()
	stmt, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	return stmt
}

func TestParse_SelectBasic(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM Inventory")
	sel, ok := stmt.(*SelectStmt)
	require.True(t, ok)
	assert.Equal(t, "inventory", sel.From.Name)
	require.Len(t, sel.Projection, 1)
	assert.True(t, sel.Projection[0].Star)
	assert.True(t, sel.Projection[0].StarTable.Zero())
}

func TestParse_SelectTableStar(t *testing.T) {
	sel := mustParse(t, "SELECT Inventory.* FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id").(*SelectStmt)
	require.Len(t, sel.Projection, 1)
	assert.True(t, sel.Projection[0].Star)
	assert.Equal(t, "inventory", sel.Projection[0].StarTable.Name)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, "orders", sel.Joins[0].Table.Name)
	assert.Equal(t, "item_id", sel.Joins[0].Left.Column.Name)
}

func TestParse_WherePrecedence(t *testing.T) {
	// AND binds tighter than OR: a=1 AND b=2 OR c=3 is (a AND b) OR c.
	sel := mustParse(t, "SELECT * FROM T WHERE a = 1 AND b = 2 OR c = 3").(*SelectStmt)
	or, ok := sel.Where.(Or)
	require.True(t, ok)
	_, ok = or.Left.(And)
	assert.True(t, ok)
	_, ok = or.Right.(Compare)
	assert.True(t, ok)
}

func TestParse_ParenthesesOverridePrecedence(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM T WHERE a = 1 AND (b = 2 OR c = 3)").(*SelectStmt)
	and, ok := sel.Where.(And)
	require.True(t, ok)
	_, ok = and.Right.(Or)
	assert.True(t, ok)
}

func TestParse_ComparisonsDoNotChain(t *testing.T) {
	// a < b < c has no meaning in the grammar.
	_, err := Parse("SELECT * FROM T WHERE a < b < c")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestParse_Aggregates(t *testing.T) {
	sel := mustParse(t, "SELECT COUNT(*) AS n, COUNT(DISTINCT owner) AS owners, SUM(qty) FROM Orders").(*SelectStmt)
	require.Len(t, sel.Projection, 3)
	assert.Equal(t, AggCountStar, sel.Projection[0].Agg)
	assert.Equal(t, "n", sel.Projection[0].Alias.Name)
	assert.Equal(t, AggCountDistinct, sel.Projection[1].Agg)
	assert.Equal(t, "owner", sel.Projection[1].AggCol.Column.Name)
	assert.Equal(t, AggSum, sel.Projection[2].Agg)
	assert.True(t, sel.Projection[2].Alias.Zero())
}

func TestParse_OrderByLimit(t *testing.T) {
	sel := mustParse(t, "SELECT DISTINCT item_name FROM Inventory ORDER BY item_name DESC, item_id LIMIT 2").(*SelectStmt)
	assert.True(t, sel.Distinct)
	require.Len(t, sel.OrderBy, 2)
	assert.True(t, sel.OrderBy[0].Desc)
	assert.False(t, sel.OrderBy[1].Desc)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, "2", sel.Limit.Text)
}

func TestParse_NegativeLimitParses(t *testing.T) {
	// The parser accepts a signed integer; the binder rejects negatives.
	sel := mustParse(t, "SELECT * FROM T LIMIT -1").(*SelectStmt)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, "-1", sel.Limit.Text)
}

func TestParse_QuotedIdentifiers(t *testing.T) {
	sel := mustParse(t, `SELECT "Weird Col" FROM "MyTable" WHERE "Weird Col" = 'x'`).(*SelectStmt)
	assert.True(t, sel.From.Quoted)
	assert.Equal(t, "MyTable", sel.From.Name)
	require.NotNil(t, sel.Projection[0].Column)
	assert.Equal(t, "Weird Col", sel.Projection[0].Column.Column.Name)
}

func TestParse_Insert(t *testing.T) {
	ins := mustParse(t, "INSERT INTO Accounts (id, owner) VALUES (1, 0xFF), (2, X'AB')").(*InsertStmt)
	assert.Equal(t, "accounts", ins.Table.Name)
	require.Len(t, ins.Columns, 2)
	require.Len(t, ins.Rows, 2)
	assert.Equal(t, []byte{0xff}, ins.Rows[0][1].Bytes)
}

func TestParse_DeleteUpdate(t *testing.T) {
	del := mustParse(t, "DELETE FROM Orders WHERE status = 'void'").(*DeleteStmt)
	assert.NotNil(t, del.Where)

	upd := mustParse(t, "UPDATE Inventory SET qty = 5, item_name = 'x' WHERE item_id = 1").(*UpdateStmt)
	require.Len(t, upd.Set, 2)
	assert.Equal(t, "qty", upd.Set[0].Column.Name)
	assert.NotNil(t, upd.Where)
}

func TestParse_SetShow(t *testing.T) {
	set := mustParse(t, "SET row_limit = 500").(*SetStmt)
	assert.Equal(t, "row_limit", set.Name.Name)
	assert.Equal(t, "500", set.Value.Text)

	setTo := mustParse(t, "SET row_limit TO 500").(*SetStmt)
	assert.Equal(t, set.String(), setTo.String())

	show := mustParse(t, "SHOW row_limit").(*ShowStmt)
	assert.Equal(t, "row_limit", show.Name.Name)
}

func TestParse_TrailingSemicolon(t *testing.T) {
	mustParse(t, "SELECT * FROM T;")
	_, err := Parse("SELECT * FROM T; SELECT * FROM U")
	assert.Error(t, err, "only one statement per parse")
}

func TestParse_ErrorsCarryPosition(t *testing.T) {
	_, err := Parse("SELECT FROM T")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Pos.Line)
	assert.Greater(t, se.Pos.Col, 1)
}

// TestParse_RoundTrip checks the re-serialization property: parsing the
// String() form of a parsed statement yields an equivalent AST.
func TestParse_RoundTrip(t *testing.T) {
	queries := []string{
		"SELECT * FROM Inventory",
		"SELECT Inventory.* FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id WHERE Orders.qty > 2",
		"SELECT DISTINCT item_name FROM Inventory ORDER BY item_name LIMIT 2",
		"SELECT COUNT(*) AS n FROM Orders WHERE region = 'eu' OR rush = true",
		"SELECT a, b AS c, SUM(d) FROM T WHERE x <= 1.5 AND y != 0x0A",
		`SELECT "Case Sensitive" FROM "T" WHERE "Case Sensitive" = 'v'`,
		"INSERT INTO T (a, b) VALUES (1, 'x'), (2, 'y')",
		"DELETE FROM T WHERE a >= 1E3",
		"UPDATE T SET a = -2.5e1 WHERE b = false",
		"SET row_limit = 10",
		"SHOW row_limit",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			first := mustParse(t, q)
			second := mustParse(t, first.String())
			assert.Equal(t, Dump(first), Dump(second))
			assert.Equal(t, first.String(), second.String())
		})
	}
}
