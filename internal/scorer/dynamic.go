// Package scorer implements the dynamic weight calculator and frame scorer
// described in §4.4.
//
// Grounded on original_source/cpp/.../FrameAnaylzer/DynamicCalculator.cpp and
// .../FrameScorer.cpp; the pure-function-over-owned-state shape follows
// teacher internal/tq/search.go (a stateful struct with a narrow update/query
// API, no package-level globals).
package scorer

import "github.com/five82/keyscope/internal/config"

// triple is a per-frame (scene, motion, text) score vector.
type triple [3]float32

// DynamicCalculator maintains a sliding history of per-dimension scores and
// derives weights that lean toward dimensions that have recently been more
// active. Not safe for concurrent use.
type DynamicCalculator struct {
	cfg config.DynamicCalculatorConfig

	history    []triple
	runningSum triple
}

// NewDynamicCalculator creates a calculator bound to cfg.
func NewDynamicCalculator(cfg config.DynamicCalculatorConfig) *DynamicCalculator {
	return &DynamicCalculator{cfg: cfg}
}

// Reset clears all history.
func (c *DynamicCalculator) Reset() {
	c.history = nil
	c.runningSum = triple{}
}

// Update folds in the given per-dimension scores and returns the
// activations, derived weights, and history average (§4.4 steps 1-5).
func (c *DynamicCalculator) Update(scene, motion, text float32) (activations, weights, historyAvg [3]float32) {
	t := triple{scene, motion, text}

	c.history = append(c.history, t)
	for i := 0; i < 3; i++ {
		c.runningSum[i] += t[i]
	}
	if len(c.history) > c.cfg.HistoryWindowSize {
		evicted := c.history[0]
		c.history = c.history[1:]
		for i := 0; i < 3; i++ {
			c.runningSum[i] -= evicted[i]
		}
	}

	var h triple
	n := float32(len(c.history))
	for i := 0; i < 3; i++ {
		h[i] = c.runningSum[i] / n
	}

	alpha := c.cfg.CurrentFrameWeight
	beta := c.cfg.ActivationInfluence

	var a, r triple
	var sum float32
	for i := 0; i < 3; i++ {
		a[i] = alpha*t[i] + (1-alpha)*h[i]
		r[i] = c.cfg.BaseWeights[i] * (1 + beta*a[i])
		sum += r[i]
	}

	if sum < 1e-6 {
		return a, c.cfg.BaseWeights, h
	}

	var w triple
	for i := 0; i < 3; i++ {
		w[i] = clamp(r[i]/sum, c.cfg.MinWeight, c.cfg.MaxWeight)
	}

	// Normalization divides by sum(r) then clamps; the result is
	// intentionally not renormalized afterward, so weights may drift
	// slightly away from summing to 1 (§4.4 step 5, §9 design note).
	return a, w, h
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
