package usage

import (
	"sync"

	"godrift/domain/chain"
)

// Accumulator tallies provider token usage across an experiment batch,
// broken down per model. Safe for concurrent chain runs.
type Accumulator struct {
	mu       sync.Mutex
	total    chain.Usage
	perModel map[string]chain.Usage
	calls    int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{perModel: make(map[string]chain.Usage)}
}

// Record adds one call's usage.
func (a *Accumulator) Record(u chain.Usage) {
	if u.PromptTokens < 0 || u.CompletionTokens < 0 || u.TotalTokens < 0 {
		// Bad provider data should not poison the tally.
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total.Add(u)
	byModel := a.perModel[u.Model]
	byModel.Add(u)
	a.perModel[u.Model] = byModel
	a.calls++
}

// Total returns the cross-model total.
func (a *Accumulator) Total() chain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Calls returns how many calls were recorded.
func (a *Accumulator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// PerModel returns a copy of the per-model breakdown.
func (a *Accumulator) PerModel() map[string]chain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]chain.Usage, len(a.perModel))
	for model, u := range a.perModel {
		out[model] = u
	}
	return out
}
