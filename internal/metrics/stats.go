package metrics

import "time"

// Window accumulates timing stats across the batches of one phase.
type Window struct {
	samples  int
	attack   time.Duration
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds a new batch measurement to the window.
func (w *Window) Record(batchSize int, attackTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.attack += attackTime
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated stats and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	total := w.attack + w.compute
	if total > 0 {
		snap.ExamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgAttackMS = (w.attack.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	w.samples = 0
	w.attack = 0
	w.compute = 0
	w.steps = 0
	return snap
}

// Snapshot represents loggable timing stats.
type Snapshot struct {
	ExamplesPerSec float64
	AvgAttackMS    float64
	AvgComputeMS   float64
	LastLoss       float64
}
