// Package engine is the query-processing core: it compiles and registers
// subscriptions, executes ad hoc statements, and turns committed row
// deltas into per-subscription output updates.
package engine

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/liveql/internal/catalog"
	"github.com/roach88/liveql/internal/plan"
	"github.com/roach88/liveql/internal/sqlparse"
	"github.com/roach88/liveql/internal/value"
)

// CommitLog persists locally committed transactions for replay on
// restart. Implemented by store.Log.
type CommitLog interface {
	Append(c *catalog.Commit) error
}

// Update is one subscription's output delta for one commit. Err is set
// when delta computation failed for this subscription; the commit's
// updates to other subscriptions are unaffected.
type Update struct {
	Subscription uuid.UUID
	Conn         string
	Seq          uint64
	Inserted     []value.Row
	Removed      []value.Row
	Err          error
}

// Engine owns the subscription registry, the system-variable store, and
// the storage engine, and serializes commit processing.
//
// Every mutation path (DML, ApplyCommit, subscription registration)
// holds applyMu, so delta computation for a commit always observes
// exactly that commit's before/after boundary, and a newly registered
// subscription sees either the full pre- or full post-transaction state,
// never a partial mix. Within one commit, per-subscription deltas are
// independent and computed in parallel.
type Engine struct {
	store *catalog.Mem
	vars  *Vars
	reg   *Registry
	queue *commitQueue
	log   *slog.Logger

	maxConcurrency int
	onUpdate       func(Update)
	commitLog      CommitLog

	applyMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMaxConcurrency bounds parallel per-subscription delta computation
// within one commit.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithUpdateHandler registers the sink that receives subscription
// updates as commits are processed. Called synchronously, in row
// identity order per commit.
func WithUpdateHandler(fn func(Update)) Option {
	return func(e *Engine) { e.onUpdate = fn }
}

// WithCommitLog persists locally committed transactions.
func WithCommitLog(l CommitLog) Option {
	return func(e *Engine) { e.commitLog = l }
}

// WithVars substitutes a pre-configured system-variable store.
func WithVars(v *Vars) Option {
	return func(e *Engine) { e.vars = v }
}

// New builds an engine over a storage engine.
func New(store *catalog.Mem, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		vars:           NewVars(),
		reg:            NewRegistry(),
		queue:          newCommitQueue(),
		log:            slog.Default(),
		maxConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vars returns the system-variable store.
func (e *Engine) Vars() *Vars { return e.vars }

// Store returns the underlying storage engine.
func (e *Engine) Store() *catalog.Mem { return e.store }

// Subscriptions returns the number of registered subscriptions.
func (e *Engine) Subscriptions() int { return e.reg.Len() }

// CompileSubscription parses, binds, and admits a subscription query,
// computes its initial output, and registers it. The registration runs
// inside the commit critical section, so the initial state corresponds
// to a commit boundary.
func (e *Engine) CompileSubscription(conn, sql string) (uuid.UUID, error) {
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return uuid.Nil, err
	}
	sel, ok := stmt.(*sqlparse.SelectStmt)
	if !ok {
		return uuid.Nil, &plan.BindError{Msg: "subscriptions must be SELECT queries"}
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	q, err := plan.BindSelect(e.store, sel, plan.Subscription)
	if err != nil {
		return uuid.Nil, err
	}
	if err := Admit(e.store, q, e.vars.RowLimit()); err != nil {
		return uuid.Nil, err
	}

	rows, err := Execute(e.store, q)
	if err != nil {
		return uuid.Nil, &RuntimeError{Op: "compute initial subscription state", Err: err}
	}
	mat := make(value.Set, len(rows))
	for _, r := range rows {
		mat[value.MustRowKey(r)] = r
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, &RuntimeError{Op: "generate subscription id", Err: err}
	}
	e.reg.Add(&Subscription{ID: id, Conn: conn, Query: q, mat: mat})

	e.log.Info("subscription registered",
		"id", id,
		"conn", conn,
		"sql", q.SQL,
		"initial_rows", len(rows),
	)
	return id, nil
}

// Unsubscribe drops one subscription. Reports whether it existed.
func (e *Engine) Unsubscribe(id uuid.UUID) bool {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	ok := e.reg.Remove(id)
	if ok {
		e.log.Info("subscription removed", "id", id)
	}
	return ok
}

// DropConnection tears down every subscription owned by a connection.
func (e *Engine) DropConnection(conn string) int {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	n := e.reg.DropConnection(conn)
	if n > 0 {
		e.log.Info("connection dropped", "conn", conn, "subscriptions", n)
	}
	return n
}

// SubscriptionRows returns a snapshot of one subscription's current
// materialized output.
func (e *Engine) SubscriptionRows(id uuid.UUID) ([]value.Row, bool) {
	s, ok := e.reg.Get(id)
	if !ok {
		return nil, false
	}
	return s.Rows(), true
}

// ApplyCommit applies an externally produced commit batch (transaction
// layer, replication) and computes the resulting subscription updates.
// A contradictory batch is rejected before any table is touched.
func (e *Engine) ApplyCommit(c *catalog.Commit) ([]Update, error) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	if err := e.store.ApplyCommit(c); err != nil {
		e.log.Error("commit rejected", "seq", c.Seq, "error", err)
		return nil, err
	}
	updates := e.fanOut(c)
	e.deliver(updates)
	return updates, nil
}

// Submit enqueues a commit for the Run loop. Returns false after Stop.
func (e *Engine) Submit(c *catalog.Commit) bool {
	return e.queue.Enqueue(c)
}

// Run consumes submitted commits until the context is cancelled or the
// queue is closed via Stop. Failed commits are logged and skipped; one
// bad batch must not stall delta delivery for later ones.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting")
	for {
		c, ok := e.queue.TryDequeue()
		if ok {
			if _, err := e.ApplyCommit(c); err != nil {
				e.log.Error("commit processing failed", "seq", c.Seq, "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			e.log.Info("engine stopping", "reason", "context cancelled")
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.log.Info("engine stopping", "reason", "queue closed")
				return nil
			}
		}
	}
}

// Stop closes the commit queue, letting Run drain and return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// fanOut computes per-subscription deltas for one commit, in parallel,
// bounded by maxConcurrency. Empty deltas are suppressed; a failing
// subscription yields an Update carrying its error and does not block
// the others. Caller holds applyMu.
func (e *Engine) fanOut(c *catalog.Commit) []Update {
	subs := e.reg.Touched(c)
	if len(subs) == 0 {
		return nil
	}

	var mu sync.Mutex
	var updates []Update
	g := new(errgroup.Group)
	g.SetLimit(e.maxConcurrency)

	for _, sub := range subs {
		g.Go(func() error {
			start := time.Now()
			added, removed, err := sub.applyCommit(e.store, c)
			if err != nil {
				e.log.Error("subscription delta failed",
					"subscription", sub.ID,
					"seq", c.Seq,
					"error", err,
				)
				mu.Lock()
				updates = append(updates, Update{Subscription: sub.ID, Conn: sub.Conn, Seq: c.Seq, Err: err})
				mu.Unlock()
				return nil
			}
			if len(added) == 0 && len(removed) == 0 {
				return nil
			}
			if elapsed := time.Since(start); elapsed > e.vars.SlowQueryThreshold() {
				e.log.Warn("slow subscription update",
					"subscription", sub.ID,
					"seq", c.Seq,
					"elapsed", elapsed,
					"sql", sub.Query.SQL,
				)
			}
			mu.Lock()
			updates = append(updates, Update{
				Subscription: sub.ID,
				Conn:         sub.Conn,
				Seq:          c.Seq,
				Inserted:     added,
				Removed:      removed,
			})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Subscription.String() < updates[j].Subscription.String()
	})
	return updates
}

func (e *Engine) deliver(updates []Update) {
	if e.onUpdate == nil {
		return
	}
	for _, u := range updates {
		e.onUpdate(u)
	}
}

// commitLocked finalizes a locally built transaction: applies it,
// persists it to the commit log, and fans the delta out to
// subscriptions. Caller holds applyMu.
func (e *Engine) commitLocked(tx *catalog.Tx, affected int) (*Result, error) {
	c, err := tx.Commit()
	if err != nil {
		return nil, &RuntimeError{Op: "commit transaction", Err: err}
	}
	if c.Empty() {
		return &Result{Affected: affected}, nil
	}
	if e.commitLog != nil {
		if err := e.commitLog.Append(c); err != nil {
			return nil, &RuntimeError{Op: "append commit log", Err: err}
		}
	}
	updates := e.fanOut(c)
	e.deliver(updates)
	e.log.Debug("commit applied", "seq", c.Seq, "updates", len(updates))
	return &Result{Affected: affected, Updates: updates}, nil
}
