// Package metrics accumulates per-phase scalar metrics.
package metrics

import (
	"fmt"
	"strings"
)

// Metric names one of the tracked scalars.
type Metric int

const (
	Tversky Metric = iota
	BCE
	Loss
	Precision
	Recall
	F1

	numMetrics
)

// All lists every metric in report order.
var All = []Metric{Tversky, BCE, Loss, Precision, Recall, F1}

func (m Metric) String() string {
	switch m {
	case Tversky:
		return "tversky"
	case BCE:
		return "bce"
	case Loss:
		return "loss"
	case Precision:
		return "precision"
	case Recall:
		return "recall"
	case F1:
		return "f1"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

func (m Metric) valid() bool {
	return m >= 0 && m < numMetrics
}

// Aggregator holds running sums for the current phase. It is owned by a
// single goroutine.
type Aggregator struct {
	sums    [numMetrics]float64
	touched [numMetrics]bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Accumulate adds v to the running sum of m. It reports false for a metric
// outside the enumerated set.
func (a *Aggregator) Accumulate(m Metric, v float64) bool {
	if !m.valid() {
		return false
	}
	a.sums[m] += v
	a.touched[m] = true
	return true
}

// Reset clears all sums.
func (a *Aggregator) Reset() {
	a.sums = [numMetrics]float64{}
	a.touched = [numMetrics]bool{}
}

// Sum returns the raw running sum of m.
func (a *Aggregator) Sum(m Metric) float64 {
	if !m.valid() {
		return 0
	}
	return a.sums[m]
}

// Report divides every sum by divisor, normally the number of samples seen
// in the phase. A zero divisor yields zero averages.
func (a *Aggregator) Report(divisor float64) Report {
	r := Report{}
	for _, m := range All {
		if !a.touched[m] {
			continue
		}
		var avg float64
		if divisor != 0 {
			avg = a.sums[m] / divisor
		}
		r.values[m] = avg
		r.present[m] = true
	}
	return r
}

// Report is a snapshot of per-sample averages.
type Report struct {
	values  [numMetrics]float64
	present [numMetrics]bool
}

// Get returns the average for m and whether it was accumulated at all.
func (r Report) Get(m Metric) (float64, bool) {
	if !m.valid() {
		return 0, false
	}
	return r.values[m], r.present[m]
}

// Map returns the reported metrics keyed by name.
func (r Report) Map() map[string]float64 {
	out := make(map[string]float64)
	for _, m := range All {
		if r.present[m] {
			out[m.String()] = r.values[m]
		}
	}
	return out
}

// Attrs flattens the report into slog key/value pairs.
func (r Report) Attrs() []any {
	var out []any
	for _, m := range All {
		if r.present[m] {
			out = append(out, m.String(), r.values[m])
		}
	}
	return out
}

func (r Report) String() string {
	var parts []string
	for _, m := range All {
		if r.present[m] {
			parts = append(parts, fmt.Sprintf("%s: %.4f", m, r.values[m]))
		}
	}
	return strings.Join(parts, ", ")
}
