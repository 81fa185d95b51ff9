package llm

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted is returned once the run-scoped call budget is spent.
// Callers treat any further escalations as unresolved-fatal.
var ErrBudgetExhausted = errors.New("escalation call budget exhausted")

// Budget caps the number of provider calls in a single run.
type Budget struct {
	mu   sync.Mutex
	max  int
	used int
}

// NewBudget creates a budget allowing max calls. A non-positive max allows
// no calls at all.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Acquire consumes one call slot, or fails when the budget is spent.
func (b *Budget) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.max {
		return ErrBudgetExhausted
	}
	b.used++
	return nil
}

// Used reports how many calls have been made.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining reports how many calls are left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.max {
		return 0
	}
	return b.max - b.used
}
