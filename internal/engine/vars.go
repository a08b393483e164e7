package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/liveql/internal/value"
)

// Declared system variables. SET and SHOW accept these names only.
const (
	VarRowLimit             = "row_limit"
	VarSlowQueryThresholdMs = "slow_query_threshold_ms"
)

// Vars is the process-wide system-variable store. Defaults are fixed at
// construction; mutation happens only through the SET path. The
// cardinality governor and the slow-query logger read it concurrently.
type Vars struct {
	mu   sync.RWMutex
	vals map[string]int64
}

// NewVars builds the variable store with default values.
func NewVars() *Vars {
	return &Vars{vals: map[string]int64{
		VarRowLimit:             1000,
		VarSlowQueryThresholdMs: 250,
	}}
}

// Get reads a variable as a typed value.
func (v *Vars) Get(name string) (value.Value, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, ok := v.vals[name]
	if !ok {
		return nil, &UnknownVariableError{Name: name}
	}
	return value.Int{Bits: 64, V: n}, nil
}

// Set assigns a declared variable. All declared variables are i64.
func (v *Vars) Set(name string, val value.Value) error {
	iv, ok := val.(value.Int)
	if !ok || iv.Bits != 64 {
		return fmt.Errorf("system variable %s takes an i64 value", name)
	}
	if iv.V < 0 {
		return fmt.Errorf("system variable %s must not be negative", name)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.vals[name]; !ok {
		return &UnknownVariableError{Name: name}
	}
	v.vals[name] = iv.V
	return nil
}

// RowLimit returns the current admission ceiling.
func (v *Vars) RowLimit() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.vals[VarRowLimit]
}

// SlowQueryThreshold returns the duration above which a subscription
// update is logged as slow.
func (v *Vars) SlowQueryThreshold() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return time.Duration(v.vals[VarSlowQueryThresholdMs]) * time.Millisecond
}
