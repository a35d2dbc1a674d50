// Package randengine wraps golang.org/x/exp/rand in a small named-engine
// API geared at the simulation's recurring randomness needs: discrete
// destination choice, lane-switch coin flips, and per-trip timer jitter.
package randengine

import (
	"sync"

	"golang.org/x/exp/rand"
)

// Engine is a seeded random source. A run creates one Engine from its seed
// and shares it between the managers that roll dice, so re-running the same
// scenario with the same seed and the same call order reproduces the same
// sequence of decisions.
type Engine struct {
	*rand.Rand
	mu sync.Mutex
}

// New creates an engine seeded by seed.
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed))}
}

// DiscreteDistribution draws an index in [0, len(weight)) with probability
// proportional to weight[i]. Not safe for concurrent use; see
// DiscreteDistributionSafe.
func (e *Engine) DiscreteDistribution(weight []float64) int {
	total := 0.0
	for _, w := range weight {
		total += w
	}
	r := total * e.Float64()
	sum := 0.0
	for i, w := range weight {
		sum += w
		if sum > r {
			return i
		}
	}
	return len(weight) - 1
}

// PTrue returns true with probability p.
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// PTrueSafe is the mutex-guarded variant of PTrue, for use from goroutines
// fanned out across nodes/segments within a tick phase.
func (e *Engine) PTrueSafe(p float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Float64() < p
}

// IntnSafe is the mutex-guarded variant of Intn.
func (e *Engine) IntnSafe(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Intn(n)
}

// Float64Safe is the mutex-guarded variant of Float64.
func (e *Engine) Float64Safe() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Float64()
}

// DiscreteDistributionSafe is the mutex-guarded variant of
// DiscreteDistribution.
func (e *Engine) DiscreteDistributionSafe(weight []float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0.0
	for _, w := range weight {
		total += w
	}
	r := total * e.Float64()
	sum := 0.0
	for i, w := range weight {
		sum += w
		if sum > r {
			return i
		}
	}
	return len(weight) - 1
}
