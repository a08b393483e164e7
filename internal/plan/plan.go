// Package plan binds parsed queries against the catalog and lowers them
// to typed logical plans.
//
// A plan is an immutable tree of sealed Node variants shared by the full
// and incremental evaluators. Join order follows declaration order;
// WHERE conjuncts are pushed onto the lowest node whose inputs cover
// their columns.
package plan

import (
	"fmt"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// Kind selects the dialect a query is bound under.
type Kind int

const (
	// Subscription is the restricted dialect used for realtime view
	// replication: whole-row projection of a single returned table,
	// conjunctive equality/ordering filters, indexed joins.
	Subscription Kind = iota + 1

	// AdHoc is the full query dialect: column projections, aggregates,
	// ORDER BY, LIMIT, DISTINCT, disjunction.
	AdHoc
)

func (k Kind) String() string {
	switch k {
	case Subscription:
		return "subscription"
	case AdHoc:
		return "ad hoc"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is the sealed interface over logical plan nodes.
type Node interface {
	node()
}

// Scan yields all current rows of one table into its tuple slot.
type Scan struct {
	Slot  int
	Table *catalog.Table
}

// Filter yields input tuples satisfying the predicate.
type Filter struct {
	Input Node
	Pred  Expr
}

// Join extends each left tuple with matching rows of one more table.
// The join condition is a single column equality. LeftIx and RightIx are
// the indexes covering the two key columns; both are present in
// subscription plans, either may be nil in ad hoc plans.
type Join struct {
	Left     Node
	Slot     int // tuple slot of the joined table
	Table    *catalog.Table
	LeftKey  ColExpr
	RightKey int // column ordinal in Table
	LeftIx   *catalog.Index
	RightIx  *catalog.Index
}

// Project shapes output rows. Star >= 0 projects whole rows of that
// tuple slot (the subscription form); otherwise Cols lists the projected
// columns in order. Distinct deduplicates the projected rows.
type Project struct {
	Input    Node
	Star     int
	Cols     []ColExpr
	Distinct bool
}

// AggItem is one aggregate call in an Aggregate node.
type AggItem struct {
	Func sqlparse.AggFunc
	Col  *ColExpr // nil for COUNT(*)
	Name string
	Type value.Type
}

func (it AggItem) String() string {
	var s string
	switch it.Func {
	case sqlparse.AggCountStar:
		s = "count(*)"
	case sqlparse.AggCountDistinct:
		s = fmt.Sprintf("count(distinct %s)", it.Col)
	case sqlparse.AggSum:
		s = fmt.Sprintf("sum(%s)", it.Col)
	}
	return s + " as " + it.Name
}

// Aggregate collapses its whole input to a single output row. The
// dialect has no GROUP BY, so there is exactly one implicit group.
type Aggregate struct {
	Input Node
	Items []AggItem
}

// SortKey is one ORDER BY key.
type SortKey struct {
	Col  ColExpr
	Desc bool
}

// Sort orders tuples by the keys, stable, ascending default.
type Sort struct {
	Input Node
	Keys  []SortKey
}

// Limit truncates to the first N output rows.
type Limit struct {
	Input Node
	N     int
}

func (*Scan) node()      {}
func (*Filter) node()    {}
func (*Join) node()      {}
func (*Project) node()   {}
func (*Aggregate) node() {}
func (*Sort) node()      {}
func (*Limit) node()     {}

// OutputColumn is one column of a query's output schema.
type OutputColumn struct {
	Name string
	Type value.Type
}

// Query is a bound, validated, lowered query.
type Query struct {
	Kind   Kind
	SQL    string
	Root   Node
	Tables []*catalog.Table // tuple slots in declaration order

	// Return is the tuple slot of the returned table for whole-row
	// queries, -1 for column projections and aggregates.
	Return int

	Columns []OutputColumn
}

// Touches reports whether the query reads the given table.
func (q *Query) Touches(tableKey string) bool {
	for _, t := range q.Tables {
		if t.Key() == tableKey {
			return true
		}
	}
	return false
}
