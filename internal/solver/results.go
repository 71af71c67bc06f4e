package solver

import (
	"time"

	"sketchcore/pkg/sketch"
)

// Narrowing records how many candidate colors remained after one property
// was intersected into the running candidate set. Kind distinguishes the
// static and dynamic property namespaces.
type Narrowing struct {
	Property  string  `json:"property"`
	Kind      string  `json:"kind"`
	Remaining float64 `json:"remaining"`
}

// Results is the outcome of a finished inference run.
type Results struct {
	// ApproxCardinality approximates the number of candidate colors
	// satisfying every property of the sketch.
	ApproxCardinality float64 `json:"approx_cardinality"`
	// Duration covers the started to finished interval.
	Duration time.Duration `json:"duration"`
	// Narrowings lists the per-property candidate counts in evaluation
	// order, static properties first.
	Narrowings []Narrowing `json:"narrowings"`
	// Statuses is the full status log of the run.
	Statuses []StatusEvent `json:"statuses"`
}

// Summary flattens the results into the archive form stored next to the
// sketch snapshot.
func (r Results) Summary() sketch.RunSummary {
	s := sketch.RunSummary{
		ApproxCardinality: r.ApproxCardinality,
		Duration:          r.Duration,
	}
	for _, ev := range r.Statuses {
		s.Stages = append(s.Stages, sketch.StageEvent{
			Stage:  string(ev.Stage),
			Detail: ev.Detail,
			At:     ev.At,
		})
	}
	return s
}
