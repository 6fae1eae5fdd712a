package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Accumulator collects named per-example series across the batches of one
// phase. Series grow per batch and are reduced only at epoch end; Reset starts
// the next phase empty.
type Accumulator struct {
	series map[string][]float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{series: make(map[string][]float64)}
}

// Append extends the named series.
func (a *Accumulator) Append(name string, values ...float64) {
	a.series[name] = append(a.series[name], values...)
}

// Mean reduces the named series; an empty or missing series reduces to NaN,
// as gonum defines the mean of nothing.
func (a *Accumulator) Mean(name string) float64 {
	return stat.Mean(a.series[name], nil)
}

// Len reports the number of collected values in the named series.
func (a *Accumulator) Len(name string) int {
	return len(a.series[name])
}

// Names lists the collected series in stable order.
func (a *Accumulator) Names() []string {
	out := make([]string, 0, len(a.series))
	for name := range a.series {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset drops all series.
func (a *Accumulator) Reset() {
	a.series = make(map[string][]float64)
}
