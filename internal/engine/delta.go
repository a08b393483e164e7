package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
	"github.com/roach88/liveql/internal/value"
)

// The incremental evaluator mirrors relational-algebra delta rules over
// the subscription plan shape (Project over Scan/Filter/Join):
//
//	ΔScan   = the table's own insert/delete sets from the commit
//	ΔFilter = Δinput filtered by the predicate, per delta row only
//	ΔJoin   = ΔL⁺ ⋈ R_post  ∪  L_post ⋈ ΔR⁺   (inserted)
//	          ΔL⁻ ⋈ R_pre   ∪  L_pre  ⋈ ΔR⁻   (deleted)
//
// Every join term is an index probe keyed by delta rows, never a scan;
// the binder's mandatory-index rule exists for exactly this reason. The
// store presents the post-commit state, so pre-state probes adjust each
// lookup by the commit's delta: drop rows it inserted, restore rows it
// deleted that carry the probed key.
//
// Because table deltas describe effective state changes (an inserted row
// was absent before, a deleted row was present), the inserted tuple set
// is a subset of post-state tuples and the deleted set a subset of
// pre-state tuples, so the two never overlap and no cross-cancellation
// pass is needed.

type stateKind int

const (
	statePost stateKind = iota
	statePre
)

// SubscriptionDelta computes the rows entering and leaving one
// subscription's output for one committed transaction, given the
// subscription's current materialized set and the post-commit store.
// Output slices are sorted by row identity for deterministic delivery.
func SubscriptionDelta(s catalog.Store, q *plan.Query, mat value.Set, c *catalog.Commit) (added, removed []value.Row, err error) {
	p, ok := q.Root.(*plan.Project)
	if !ok || p.Star < 0 {
		return nil, nil, fmt.Errorf("plan is not a subscription plan")
	}

	d := &deltaEval{store: s, commit: c, slots: len(q.Tables)}
	ta, tr, err := d.tuples(p.Input)
	if err != nil {
		return nil, nil, err
	}

	// Tuple-level deltas collapse to row-level deltas against the
	// materialized set. A returned row can be supported by several join
	// tuples, so a removed tuple removes its row only when no supporting
	// tuple survives in the post state.
	retDelta := c.Tables[q.Tables[p.Star].Key()]
	addedSet := make(map[value.Key]value.Row)
	for _, t := range ta {
		row := t[p.Star]
		key, err := value.RowKey(row)
		if err != nil {
			return nil, nil, err
		}
		if _, present := mat[key]; present {
			continue
		}
		addedSet[key] = row
	}

	removedSet := make(map[value.Key]value.Row)
	for _, t := range tr {
		row := t[p.Star]
		key, err := value.RowKey(row)
		if err != nil {
			return nil, nil, err
		}
		if _, present := mat[key]; !present {
			continue
		}
		if _, done := removedSet[key]; done {
			continue
		}
		supported, err := d.supported(p.Input, p.Star, row, key, retDelta)
		if err != nil {
			return nil, nil, err
		}
		if !supported {
			removedSet[key] = row
		}
	}

	return sortedRows(addedSet), sortedRows(removedSet), nil
}

func sortedRows(set map[value.Key]value.Row) []value.Row {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := make([]value.Row, len(keys))
	for i, k := range keys {
		out[i] = set[value.Key(k)]
	}
	return out
}

type deltaEval struct {
	store  catalog.Store
	commit *catalog.Commit
	slots  int
}

func (d *deltaEval) single(slot int, row value.Row) tuple {
	t := make(tuple, d.slots)
	t[slot] = row
	return t
}

// tuples computes the tuple-level delta of a Scan/Filter/Join subtree.
func (d *deltaEval) tuples(n plan.Node) (added, removed []tuple, err error) {
	switch x := n.(type) {
	case *plan.Scan:
		td := d.commit.Tables[x.Table.Key()]
		if td == nil {
			return nil, nil, nil
		}
		for _, r := range td.Inserted {
			added = append(added, d.single(x.Slot, r))
		}
		for _, r := range td.Deleted {
			removed = append(removed, d.single(x.Slot, r))
		}
		return added, removed, nil

	case *plan.Filter:
		a, r, err := d.tuples(x.Input)
		if err != nil {
			return nil, nil, err
		}
		if added, err = filterTuples(x.Pred, a); err != nil {
			return nil, nil, err
		}
		if removed, err = filterTuples(x.Pred, r); err != nil {
			return nil, nil, err
		}
		return added, removed, nil

	case *plan.Join:
		la, lr, err := d.tuples(x.Left)
		if err != nil {
			return nil, nil, err
		}

		for _, t := range la {
			rows, err := d.lookup(x.Table, x.RightIx, x.RightKey, t[x.LeftKey.Slot][x.LeftKey.Ord], statePost)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				added = append(added, extend(t, x.Slot, r))
			}
		}
		for _, t := range lr {
			rows, err := d.lookup(x.Table, x.RightIx, x.RightKey, t[x.LeftKey.Slot][x.LeftKey.Ord], statePre)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				removed = append(removed, extend(t, x.Slot, r))
			}
		}

		if td := d.commit.Tables[x.Table.Key()]; td != nil {
			for _, r := range td.Inserted {
				lts, err := d.probe(x.Left, x.LeftKey, x.LeftIx, r[x.RightKey], statePost)
				if err != nil {
					return nil, nil, err
				}
				for _, lt := range lts {
					added = append(added, extend(lt, x.Slot, r))
				}
			}
			for _, r := range td.Deleted {
				lts, err := d.probe(x.Left, x.LeftKey, x.LeftIx, r[x.RightKey], statePre)
				if err != nil {
					return nil, nil, err
				}
				for _, lt := range lts {
					removed = append(removed, extend(lt, x.Slot, r))
				}
			}
		}

		// A tuple pairing a new left row with a new right row arrives via
		// both contributions; collapse to set semantics.
		if added, err = dedupeTuples(added); err != nil {
			return nil, nil, err
		}
		if removed, err = dedupeTuples(removed); err != nil {
			return nil, nil, err
		}
		return added, removed, nil

	default:
		return nil, nil, fmt.Errorf("node %T is not part of a subscription plan", n)
	}
}

// lookup probes an index against the post-commit state, or reconstructs
// the pre-commit probe result by undoing the commit's delta.
func (d *deltaEval) lookup(t *catalog.Table, ix *catalog.Index, keyOrd int, key value.Value, st stateKind) ([]value.Row, error) {
	rows, err := d.store.IndexLookup(t, ix, key)
	if err != nil {
		return nil, err
	}
	if st == statePost {
		return rows, nil
	}
	td := d.commit.Tables[t.Key()]
	if td == nil || td.Empty() {
		return rows, nil
	}

	out := make([]value.Row, 0, len(rows))
	for _, r := range rows {
		k, err := value.RowKey(r)
		if err != nil {
			return nil, err
		}
		if _, inserted := td.Inserted[k]; !inserted {
			out = append(out, r)
		}
	}
	for _, r := range td.Deleted {
		eq, err := value.Equal(r[keyOrd], key)
		if err != nil {
			return nil, err
		}
		if eq {
			out = append(out, r)
		}
	}
	return out, nil
}

// probe evaluates a subtree restricted to tuples whose column col equals
// key, turning the restriction into an index probe at col's scan and
// completing the remaining joins with further probes.
func (d *deltaEval) probe(n plan.Node, col plan.ColExpr, ix *catalog.Index, key value.Value, st stateKind) ([]tuple, error) {
	switch x := n.(type) {
	case *plan.Scan:
		rows, err := d.lookup(x.Table, ix, col.Ord, key, st)
		if err != nil {
			return nil, err
		}
		out := make([]tuple, 0, len(rows))
		for _, r := range rows {
			out = append(out, d.single(x.Slot, r))
		}
		return out, nil

	case *plan.Filter:
		ts, err := d.probe(x.Input, col, ix, key, st)
		if err != nil {
			return nil, err
		}
		return filterTuples(x.Pred, ts)

	case *plan.Join:
		if col.Slot == x.Slot {
			// Keyed on the probe-side table: fetch its rows first, then
			// find their left partners through the join key.
			rows, err := d.lookup(x.Table, ix, col.Ord, key, st)
			if err != nil {
				return nil, err
			}
			var out []tuple
			for _, r := range rows {
				lts, err := d.probe(x.Left, x.LeftKey, x.LeftIx, r[x.RightKey], st)
				if err != nil {
					return nil, err
				}
				for _, lt := range lts {
					out = append(out, extend(lt, x.Slot, r))
				}
			}
			return out, nil
		}

		lts, err := d.probe(x.Left, col, ix, key, st)
		if err != nil {
			return nil, err
		}
		var out []tuple
		for _, lt := range lts {
			rows, err := d.lookup(x.Table, x.RightIx, x.RightKey, lt[x.LeftKey.Slot][x.LeftKey.Ord], st)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				out = append(out, extend(lt, x.Slot, r))
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("node %T is not part of a subscription plan", n)
	}
}

// supported reports whether any post-state tuple still yields the given
// returned row. The row came from the materialized set, so it existed
// pre-commit; it survives in its base table unless this commit deleted
// it.
func (d *deltaEval) supported(n plan.Node, slot int, row value.Row, key value.Key, retDelta *catalog.TableDelta) (bool, error) {
	if retDelta != nil {
		if _, deleted := retDelta.Deleted[key]; deleted {
			return false, nil
		}
	}
	ts, err := d.probeRow(n, slot, row)
	if err != nil {
		return false, err
	}
	return len(ts) > 0, nil
}

// probeRow evaluates the subtree against the post state restricted to
// tuples carrying exactly this row in the given slot. The caller has
// already established the row's post-state membership in its table.
func (d *deltaEval) probeRow(n plan.Node, slot int, row value.Row) ([]tuple, error) {
	switch x := n.(type) {
	case *plan.Scan:
		return []tuple{d.single(x.Slot, row)}, nil

	case *plan.Filter:
		ts, err := d.probeRow(x.Input, slot, row)
		if err != nil {
			return nil, err
		}
		return filterTuples(x.Pred, ts)

	case *plan.Join:
		if x.Slot == slot {
			lts, err := d.probe(x.Left, x.LeftKey, x.LeftIx, row[x.RightKey], statePost)
			if err != nil {
				return nil, err
			}
			out := make([]tuple, 0, len(lts))
			for _, lt := range lts {
				out = append(out, extend(lt, x.Slot, row))
			}
			return out, nil
		}
		lts, err := d.probeRow(x.Left, slot, row)
		if err != nil {
			return nil, err
		}
		var out []tuple
		for _, lt := range lts {
			rows, err := d.lookup(x.Table, x.RightIx, x.RightKey, lt[x.LeftKey.Slot][x.LeftKey.Ord], statePost)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				out = append(out, extend(lt, x.Slot, r))
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("node %T is not part of a subscription plan", n)
	}
}

func filterTuples(pred plan.Expr, in []tuple) ([]tuple, error) {
	out := in[:0]
	for _, t := range in {
		ok, err := plan.EvalPredicate(pred, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func dedupeTuples(in []tuple) ([]tuple, error) {
	if len(in) < 2 {
		return in, nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, t := range in {
		k, err := tupleKey(t)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out, nil
}

func tupleKey(t tuple) (string, error) {
	var sb strings.Builder
	for i, r := range t {
		if r == nil {
			continue
		}
		k, err := value.RowKey(r)
		if err != nil {
			return "", err
		}
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(':')
		sb.WriteString(string(k))
		sb.WriteByte(';')
	}
	return sb.String(), nil
}
