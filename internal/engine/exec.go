package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// tuple is one candidate result: a row per table slot, nil for slots the
// current subtree has not produced.
type tuple []value.Row

type executor struct {
	store catalog.Store
	slots int
}

// Execute runs a bound plan against the store's current contents. Used
// for ad hoc queries and for computing a subscription's initial state.
func Execute(s catalog.Store, q *plan.Query) ([]value.Row, error) {
	ex := &executor{store: s, slots: len(q.Tables)}
	return ex.rows(q.Root)
}

func (ex *executor) rows(n plan.Node) ([]value.Row, error) {
	switch x := n.(type) {
	case *plan.Limit:
		rows, err := ex.rows(x.Input)
		if err != nil {
			return nil, err
		}
		if len(rows) > x.N {
			rows = rows[:x.N]
		}
		return rows, nil
	case *plan.Project:
		tuples, err := ex.tuples(x.Input)
		if err != nil {
			return nil, err
		}
		return projectRows(x, tuples)
	case *plan.Aggregate:
		tuples, err := ex.tuples(x.Input)
		if err != nil {
			return nil, err
		}
		return aggregateRows(x, tuples)
	default:
		return nil, fmt.Errorf("plan node %T yields tuples, not output rows", n)
	}
}

func (ex *executor) tuples(n plan.Node) ([]tuple, error) {
	switch x := n.(type) {
	case *plan.Scan:
		rows, err := ex.store.Scan(x.Table)
		if err != nil {
			return nil, err
		}
		out := make([]tuple, 0, len(rows))
		for _, r := range rows {
			t := make(tuple, ex.slots)
			t[x.Slot] = r
			out = append(out, t)
		}
		return out, nil

	case *plan.Filter:
		in, err := ex.tuples(x.Input)
		if err != nil {
			return nil, err
		}
		out := in[:0]
		for _, t := range in {
			ok, err := plan.EvalPredicate(x.Pred, t)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, t)
			}
		}
		return out, nil

	case *plan.Join:
		left, err := ex.tuples(x.Left)
		if err != nil {
			return nil, err
		}
		var out []tuple
		for _, t := range left {
			key := t[x.LeftKey.Slot][x.LeftKey.Ord]
			matches, err := ex.probe(x, key)
			if err != nil {
				return nil, err
			}
			for _, r := range matches {
				out = append(out, extend(t, x.Slot, r))
			}
		}
		return out, nil

	case *plan.Sort:
		in, err := ex.tuples(x.Input)
		if err != nil {
			return nil, err
		}
		var serr error
		sort.SliceStable(in, func(i, j int) bool {
			for _, k := range x.Keys {
				a := in[i][k.Col.Slot][k.Col.Ord]
				b := in[j][k.Col.Slot][k.Col.Ord]
				c, err := value.Compare(a, b)
				if err != nil {
					if serr == nil {
						serr = err
					}
					return false
				}
				if c != 0 {
					if k.Desc {
						return c > 0
					}
					return c < 0
				}
			}
			return false
		})
		return in, serr

	default:
		return nil, fmt.Errorf("plan node %T yields output rows, not tuples", n)
	}
}

// probe fetches the join partners for one key: an index lookup when the
// column is indexed, a scan-and-match fallback otherwise (ad hoc only).
func (ex *executor) probe(j *plan.Join, key value.Value) ([]value.Row, error) {
	if j.RightIx != nil {
		return ex.store.IndexLookup(j.Table, j.RightIx, key)
	}
	rows, err := ex.store.Scan(j.Table)
	if err != nil {
		return nil, err
	}
	var out []value.Row
	for _, r := range rows {
		eq, err := value.Equal(r[j.RightKey], key)
		if err != nil {
			return nil, err
		}
		if eq {
			out = append(out, r)
		}
	}
	return out, nil
}

// extend clones a tuple with one more slot filled.
func extend(t tuple, slot int, row value.Row) tuple {
	nt := make(tuple, len(t))
	copy(nt, t)
	nt[slot] = row
	return nt
}

// projectRows shapes tuples into output rows. Whole-row projections and
// DISTINCT deduplicate by structural row identity, keeping first
// occurrence order.
func projectRows(p *plan.Project, tuples []tuple) ([]value.Row, error) {
	rows := make([]value.Row, 0, len(tuples))
	for _, t := range tuples {
		if p.Star >= 0 {
			rows = append(rows, t[p.Star])
			continue
		}
		row := make(value.Row, len(p.Cols))
		for i, c := range p.Cols {
			row[i] = t[c.Slot][c.Ord]
		}
		rows = append(rows, row)
	}
	if p.Star >= 0 || p.Distinct {
		return dedupeRows(rows)
	}
	return rows, nil
}

func dedupeRows(rows []value.Row) ([]value.Row, error) {
	seen := make(map[value.Key]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k, err := value.RowKey(r)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out, nil
}

// aggregateRows collapses the whole input to one output row. With no
// GROUP BY in the dialect there is exactly one implicit group, so an
// empty input still yields a row of zero counts and sums.
func aggregateRows(a *plan.Aggregate, tuples []tuple) ([]value.Row, error) {
	row := make(value.Row, len(a.Items))
	for i, it := range a.Items {
		switch it.Func {
		case sqlparse.AggCountStar:
			row[i] = value.Int{Bits: 64, V: int64(len(tuples))}

		case sqlparse.AggCountDistinct:
			seen := make(map[string]bool, len(tuples))
			for _, t := range tuples {
				canon, err := value.Canonical(t[it.Col.Slot][it.Col.Ord])
				if err != nil {
					return nil, err
				}
				seen[string(canon)] = true
			}
			row[i] = value.Int{Bits: 64, V: int64(len(seen))}

		case sqlparse.AggSum:
			v, err := sumColumn(it, tuples)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
	}
	return []value.Row{row}, nil
}

func sumColumn(it plan.AggItem, tuples []tuple) (value.Value, error) {
	switch it.Col.Type.Kind {
	case value.KindInt:
		var acc int64
		for _, t := range tuples {
			acc += t[it.Col.Slot][it.Col.Ord].(value.Int).V
		}
		return value.Int{Bits: 64, V: acc}, nil
	case value.KindUint:
		var acc uint64
		for _, t := range tuples {
			acc += t[it.Col.Slot][it.Col.Ord].(value.Uint).V
		}
		return value.Uint{Bits: 64, V: acc}, nil
	case value.KindFloat:
		var acc float64
		for _, t := range tuples {
			acc += t[it.Col.Slot][it.Col.Ord].(value.Float).V
		}
		return value.Float{Bits: 64, V: acc}, nil
	default:
		return nil, fmt.Errorf("cannot sum %s values", it.Col.Type)
	}
}
