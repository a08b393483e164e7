package plan

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

func testStore(t *testing.T) *catalog.Mem {
	t.Helper()
	m, err := catalog.NewMem(
		&catalog.Table{
			Name: "Inventory",
			Columns: []catalog.Column{
				{Name: "item_id", Type: value.TypeU64},
				{Name: "item_name", Type: value.TypeString},
			},
			Indexes: []*catalog.Index{{Name: "inventory_by_id", Columns: []int{0}}},
		},
		&catalog.Table{
			Name: "Orders",
			Columns: []catalog.Column{
				{Name: "order_id", Type: value.TypeU64},
				{Name: "item_id", Type: value.TypeU64},
				{Name: "qty", Type: value.TypeU32},
			},
			Indexes: []*catalog.Index{
				{Name: "orders_by_id", Columns: []int{0}},
				{Name: "orders_by_item", Columns: []int{1}},
			},
		},
		&catalog.Table{
			Name: "Events",
			Columns: []catalog.Column{
				{Name: "id", Type: value.TypeU64},
				{Name: "payload", Type: value.TypeProduct},
			},
		},
		&catalog.Table{
			Name: "Notes",
			Columns: []catalog.Column{
				{Name: "id", Type: value.TypeU64},
				{Name: "note", Type: value.TypeString, Nullable: true},
			},
			Indexes: []*catalog.Index{{Name: "notes_by_id", Columns: []int{0}}},
		},
	)
	require.NoError(t, err)
	return m
}

func mustBind(t *testing.T, store catalog.Store, sql string, kind Kind) *Query {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	q, err := BindSelect(store, stmt.(*sqlparse.SelectStmt), kind)
	require.NoError(t, err)
	return q
}

func bindErr(t *testing.T, store catalog.Store, sql string, kind Kind) *BindError {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	_, err = BindSelect(store, stmt.(*sqlparse.SelectStmt), kind)
	require.Error(t, err)
	var be *BindError
	require.ErrorAs(t, err, &be)
	return be
}

func TestBindSelect_Subscription(t *testing.T) {
	store := testStore(t)

	q := mustBind(t, store,
		"SELECT Orders.* FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id WHERE Inventory.item_name = 'gear'",
		Subscription)
	assert.Equal(t, Subscription, q.Kind)
	assert.Equal(t, 1, q.Return)
	require.Len(t, q.Tables, 2)
	assert.Equal(t, "Inventory", q.Tables[0].Name)
	assert.Equal(t, "Orders", q.Tables[1].Name)
	require.Len(t, q.Columns, 3)
	assert.Equal(t, "order_id", q.Columns[0].Name)

	assert.True(t, q.Touches("orders"))
	assert.False(t, q.Touches("events"))

	// A bare * over an indexed join returns the first FROM table's rows.
	q = mustBind(t, store,
		"SELECT * FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id",
		Subscription)
	assert.Equal(t, 0, q.Return)
	require.Len(t, q.Columns, 2)
	assert.Equal(t, "item_name", q.Columns[1].Name)
}

func TestBindSelect_SubscriptionRestrictions(t *testing.T) {
	store := testStore(t)
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "column projection",
			sql:  "SELECT item_name FROM Inventory",
			want: "projection must be * or table.*",
		},
		{
			name: "or",
			sql:  "SELECT * FROM Inventory WHERE item_id = 1 OR item_id = 2",
			want: "OR is not allowed",
		},
		{
			name: "not equal",
			sql:  "SELECT * FROM Inventory WHERE item_id != 1",
			want: "!= is not allowed",
		},
		{
			name: "distinct",
			sql:  "SELECT DISTINCT * FROM Inventory",
			want: "DISTINCT is not allowed",
		},
		{
			name: "order by",
			sql:  "SELECT * FROM Inventory ORDER BY item_id",
			want: "ORDER BY is not allowed",
		},
		{
			name: "limit",
			sql:  "SELECT * FROM Inventory LIMIT 5",
			want: "LIMIT is not allowed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := bindErr(t, store, tt.sql, Subscription)
			assert.Contains(t, be.Msg, tt.want)
		})
	}
}

func TestBindSelect_JoinIndexRequirement(t *testing.T) {
	store := testStore(t)
	sql := "SELECT * FROM Events JOIN Orders ON Events.id = Orders.order_id"

	be := bindErr(t, store, sql, Subscription)
	assert.Contains(t, be.Msg, "requires an index on Events.id")

	// The same query binds in the ad hoc dialect regardless of indexing.
	q := mustBind(t, store, "SELECT Events.id FROM Events JOIN Orders ON Events.id = Orders.order_id", AdHoc)
	assert.Equal(t, AdHoc, q.Kind)
}

func TestBindSelect_Resolution(t *testing.T) {
	store := testStore(t)
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "unknown table",
			sql:  "SELECT * FROM Missing",
			want: `table "missing" not found`,
		},
		{
			name: "unknown column",
			sql:  "SELECT nope FROM Inventory",
			want: `column "nope" not found`,
		},
		{
			name: "ambiguous column",
			sql:  "SELECT item_id FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id",
			want: "ambiguous",
		},
		{
			name: "duplicate table",
			sql:  "SELECT * FROM Inventory JOIN Inventory ON Inventory.item_id = Inventory.item_id",
			want: "referenced twice",
		},
		{
			name: "nullable column",
			sql:  "SELECT note FROM Notes",
			want: "nullable",
		},
		{
			name: "nullable column via star",
			sql:  "SELECT * FROM Notes",
			want: "nullable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := bindErr(t, store, tt.sql, AdHoc)
			assert.Contains(t, be.Error(), tt.want)
		})
	}
}

func TestBindSelect_LiteralTyping(t *testing.T) {
	store := testStore(t)

	q := mustBind(t, store, "SELECT item_name FROM Inventory WHERE item_id = 7", AdHoc)
	f := findFilter(t, q.Root)
	cmp, ok := f.Pred.(CmpExpr)
	require.True(t, ok)
	lit, ok := cmp.Right.(LitExpr)
	require.True(t, ok)
	assert.Equal(t, value.Uint{Bits: 64, V: 7}, lit.V)

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "string against uint",
			sql:  "SELECT * FROM Inventory WHERE item_id = 'abc'",
			want: "not comparable",
		},
		{
			name: "negative against uint",
			sql:  "SELECT * FROM Inventory WHERE item_id = -1",
			want: "not a valid unsigned integer",
		},
		{
			name: "u32 overflow",
			sql:  "SELECT * FROM Orders WHERE qty = 5000000000",
			want: "out of range",
		},
		{
			name: "literal only comparison",
			sql:  "SELECT * FROM Inventory WHERE 1 = 1",
			want: "at least one column",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := bindErr(t, store, tt.sql, AdHoc)
			assert.Contains(t, be.Msg, tt.want)
		})
	}
}

func TestBindSelect_Ordering(t *testing.T) {
	store := testStore(t)

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "order by product",
			sql:  "SELECT id FROM Events ORDER BY payload",
			want: "orderable",
		},
		{
			name: "distinct product",
			sql:  "SELECT DISTINCT payload FROM Events",
			want: "cannot deduplicate",
		},
		{
			name: "range comparison on product",
			sql:  "SELECT id FROM Events WHERE payload < payload",
			want: "do not support ordering",
		},
		{
			name: "negative limit",
			sql:  "SELECT item_name FROM Inventory LIMIT -1",
			want: "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := bindErr(t, store, tt.sql, AdHoc)
			assert.Contains(t, be.Msg, tt.want)
		})
	}

	// Equality on product values is structural and allowed.
	mustBind(t, store, "SELECT id FROM Events WHERE payload = payload", AdHoc)
}

func TestBindSelect_Aggregates(t *testing.T) {
	store := testStore(t)

	q := mustBind(t, store, "SELECT COUNT(*) AS n, SUM(qty) FROM Orders", AdHoc)
	agg, ok := q.Root.(*Aggregate)
	require.True(t, ok)
	require.Len(t, agg.Items, 2)
	assert.Equal(t, "n", agg.Items[0].Name)
	assert.Equal(t, value.TypeI64, agg.Items[0].Type)
	assert.Equal(t, "sum", agg.Items[1].Name)
	assert.Equal(t, value.TypeU64, agg.Items[1].Type, "u32 sums accumulate as u64")

	be := bindErr(t, store, "SELECT COUNT(*), item_name FROM Inventory", AdHoc)
	assert.Contains(t, be.Msg, "mutually exclusive")

	be = bindErr(t, store, "SELECT SUM(item_name) FROM Inventory", AdHoc)
	assert.Contains(t, be.Msg, "numeric")

	be = bindErr(t, store, "SELECT COUNT(*) FROM Inventory ORDER BY item_id", AdHoc)
	assert.Contains(t, be.Msg, "cannot be combined")
}

func findFilter(t *testing.T, n Node) *Filter {
	t.Helper()
	for {
		switch x := n.(type) {
		case *Filter:
			return x
		case *Project:
			n = x.Input
		case *Sort:
			n = x.Input
		case *Limit:
			n = x.Input
		case *Join:
			n = x.Left
		case *Aggregate:
			n = x.Input
		default:
			t.Fatal("no filter node in plan")
			return nil
		}
	}
}

func TestExplain_Golden(t *testing.T) {
	store := testStore(t)
	g := goldie.New(t)

	tests := []struct {
		name string
		sql  string
		kind Kind
	}{
		{
			name: "subscription_join",
			sql:  "SELECT Orders.* FROM Inventory JOIN Orders ON Inventory.item_id = Orders.item_id WHERE Inventory.item_name = 'gear'",
			kind: Subscription,
		},
		{
			name: "adhoc_distinct_limit",
			sql:  "SELECT DISTINCT item_name FROM Inventory ORDER BY item_name LIMIT 2",
			kind: AdHoc,
		},
		{
			name: "adhoc_aggregate",
			sql:  "SELECT COUNT(*) AS n, SUM(qty) FROM Orders WHERE qty > 1",
			kind: AdHoc,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustBind(t, store, tt.sql, tt.kind)
			g.Assert(t, tt.name, []byte(Explain(q)))
		})
	}
}
