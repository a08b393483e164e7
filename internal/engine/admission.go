package engine

import (
	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
)

// Admit estimates the query's output cardinality from table row counts
// and index statistics, and rejects the request when the estimate
// exceeds limit. This is an admission check: it runs before any row is
// read, never mid-scan.
func Admit(s catalog.Store, q *plan.Query, limit int64) error {
	est, err := estimate(s, q.Root)
	if err != nil {
		return &RuntimeError{Op: "estimate cardinality", Err: err}
	}
	if int64(est) > limit {
		return &AdmissionError{SQL: q.SQL, Estimate: est, Limit: limit}
	}
	return nil
}

func estimate(s catalog.Store, n plan.Node) (int, error) {
	switch x := n.(type) {
	case *plan.Scan:
		return s.RowCount(x.Table)
	case *plan.Filter:
		// No selectivity statistics; assume the filter passes everything.
		return estimate(s, x.Input)
	case *plan.Join:
		outer, err := estimate(s, x.Left)
		if err != nil {
			return 0, err
		}
		inner, err := s.RowCount(x.Table)
		if err != nil {
			return 0, err
		}
		if x.RightIx != nil {
			if distinct, ok := s.IndexStats(x.Table, x.RightIx); ok && distinct > 0 {
				// Expected matches per probe is rows over distinct keys,
				// rounded up.
				return outer * ((inner + distinct - 1) / distinct), nil
			}
		}
		return outer * inner, nil
	case *plan.Project:
		return estimate(s, x.Input)
	case *plan.Aggregate:
		return 1, nil
	case *plan.Sort:
		return estimate(s, x.Input)
	case *plan.Limit:
		in, err := estimate(s, x.Input)
		if err != nil {
			return 0, err
		}
		return min(in, x.N), nil
	default:
		return 0, nil
	}
}
