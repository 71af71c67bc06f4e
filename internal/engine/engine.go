// Package engine defines the symbolic model-checking capability consumed by
// the inference pipeline: transition-structure construction, colour-set
// algebra, and formula and template evaluation. The symbolic representation
// stays opaque; callers compose results only through the combinators below.
package engine

import (
	"context"
	"fmt"

	"sketchcore/pkg/sketch"
)

// NetworkVariable is one variable of the compiled base network. An empty
// UpdateFn means the variable carries an implicit unspecified function over
// its declared regulators.
type NetworkVariable struct {
	ID         sketch.VarID
	UpdateFn   string
	Regulators []sketch.VarID
}

// Network is the base Boolean network handed to the engine. Variables and
// datasets are listed in sorted ID order. Datasets back the resolution of
// canonical observation tokens inside checked formulas.
type Network struct {
	Variables   []NetworkVariable
	Regulations []sketch.Regulation
	Datasets    []Binding
}

// ColorSet is an opaque immutable handle to a set of candidate
// parameterizations. Sets are combined and measured through the graph that
// produced them, never inspected directly.
type ColorSet interface {
	IsEmpty() bool
}

// Predicate is an opaque symbolic predicate stating that one variable's
// update function evaluates to true.
type Predicate interface {
	Variable() sketch.VarID
}

// Binding pairs a dataset identifier with observation rows. Template
// evaluators receive the rows they run against; the network carries one
// binding per dataset with every row.
type Binding struct {
	Dataset      sketch.DatasetID
	Variables    []sketch.VarID
	Observations []sketch.Observation
}

// Graph is a symbolic transition structure built for one network. All colour
// sets returned by its methods belong to this graph.
type Graph interface {
	// UnitColors returns the full candidate-colour set of the structure.
	UnitColors() ColorSet

	// UpdateFnTrue returns the predicate stating that the update function of
	// the given variable evaluates to true. The construction is expensive for
	// real backends, so callers cache the result per variable.
	UpdateFnTrue(ctx context.Context, variable sketch.VarID) (Predicate, error)

	// Observability returns the colours in which input is essential for p.
	Observability(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error)
	// Activation returns the colours in which p depends positively on input.
	Activation(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error)
	// Inhibition returns the colours in which p depends negatively on input.
	Inhibition(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error)

	// Intersect combines two colour sets of this graph.
	Intersect(a, b ColorSet) (ColorSet, error)
	// ApproxCardinality estimates the number of colours in the set.
	ApproxCardinality(set ColorSet) float64

	// CheckFormula evaluates a canonical temporal formula, returning the
	// colours with at least one satisfying state.
	CheckFormula(ctx context.Context, formula string) (ColorSet, error)
	// CheckFnFormula evaluates a canonical first-order formula over the
	// update functions.
	CheckFnFormula(ctx context.Context, formula string) (ColorSet, error)

	// AttractorCount returns the colours whose attractor count lies within
	// [minimal, maximal].
	AttractorCount(ctx context.Context, minimal, maximal int) (ColorSet, error)

	// FixedPoints returns the colours with a fixed point matching every
	// observation of the binding.
	FixedPoints(ctx context.Context, b Binding) (ColorSet, error)
	// TrapSpaces returns the colours with a trap space matching every
	// observation of the binding, optionally restricted to minimal or
	// non-percolable trap spaces.
	TrapSpaces(ctx context.Context, b Binding, minimal, nonPercolable bool) (ColorSet, error)
	// Trajectory returns the colours admitting a path through the binding's
	// observations in order.
	Trajectory(ctx context.Context, b Binding) (ColorSet, error)
	// HasAttractor returns the colours with an attractor state matching
	// every observation of the binding.
	HasAttractor(ctx context.Context, b Binding) (ColorSet, error)
}

// Engine builds symbolic transition structures for base networks.
type Engine interface {
	BuildGraph(ctx context.Context, net Network) (Graph, error)
}

func enginef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sketch.ErrEngine, fmt.Sprintf(format, args...))
}
