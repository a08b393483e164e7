package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
	"github.com/roach88/liveql/internal/value"
)

// Subscription is one registered continuous query: its compiled plan,
// its current materialized output, and the client connection that owns
// its lifecycle.
//
// The materialized set is mutated only while processing the commit that
// currently owns it; concurrent readers go through Rows.
type Subscription struct {
	ID    uuid.UUID
	Conn  string
	Query *plan.Query

	mu  sync.Mutex
	mat value.Set
}

// Rows returns a snapshot copy of the current materialized output.
func (s *Subscription) Rows() []value.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]value.Row, 0, len(s.mat))
	for _, r := range s.mat {
		out = append(out, r)
	}
	return out
}

// applyCommit computes this subscription's output delta for one commit
// and folds it into the materialized set.
func (s *Subscription) applyCommit(store catalog.Store, c *catalog.Commit) (added, removed []value.Row, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, removed, err = SubscriptionDelta(store, s.Query, s.mat, c)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range added {
		s.mat[value.MustRowKey(r)] = r
	}
	for _, r := range removed {
		delete(s.mat, value.MustRowKey(r))
	}
	return added, removed, nil
}

// Registry is the process-wide subscription map, keyed by subscription
// ID and indexed by owning connection for disconnect teardown.
type Registry struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	byConn map[string]map[uuid.UUID]*Subscription
}

func NewRegistry() *Registry {
	return &Registry{
		subs:   make(map[uuid.UUID]*Subscription),
		byConn: make(map[string]map[uuid.UUID]*Subscription),
	}
}

func (r *Registry) Add(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = s
	conns := r.byConn[s.Conn]
	if conns == nil {
		conns = make(map[uuid.UUID]*Subscription)
		r.byConn[s.Conn] = conns
	}
	conns[s.ID] = s
}

// Remove drops one subscription. Reports whether it was registered.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return false
	}
	delete(r.subs, id)
	if conns := r.byConn[s.Conn]; conns != nil {
		delete(conns, id)
		if len(conns) == 0 {
			delete(r.byConn, s.Conn)
		}
	}
	return true
}

// DropConnection removes every subscription owned by a connection and
// returns how many were dropped.
func (r *Registry) DropConnection(conn string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.byConn[conn]
	for id := range conns {
		delete(r.subs, id)
	}
	delete(r.byConn, conn)
	return len(conns)
}

func (r *Registry) Get(id uuid.UUID) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Touched returns the subscriptions whose referenced tables intersect
// the commit's touched tables. Subscriptions untouched by a transaction
// are skipped entirely; they never pay per-commit work.
func (r *Registry) Touched(c *catalog.Commit) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscription
	for _, s := range r.subs {
		for key := range c.Tables {
			if c.Touches(key) && s.Query.Touches(key) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
