package engine

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"sketchcore/pkg/sketch"
)

// Constraint kinds used by ConstraintKey.
const (
	KindObservability = "observability"
	KindActivation    = "activation"
	KindInhibition    = "inhibition"
)

// ConstraintKey is the lookup key of a constraint-builder result for the
// update predicate of target with respect to input.
func ConstraintKey(kind string, target, input sketch.VarID) string {
	return fmt.Sprintf("%s(%s,%s)", kind, target, input)
}

// BindingKey is the lookup key of a template-evaluator binding.
func BindingKey(b Binding) string {
	ids := make([]string, 0, len(b.Observations))
	for _, obs := range b.Observations {
		ids = append(ids, string(obs.ID))
	}
	return fmt.Sprintf("%s[%s]", b.Dataset, strings.Join(ids, ","))
}

// TrapSpaceKey extends BindingKey with the restriction flags.
func TrapSpaceKey(b Binding, minimal, nonPercolable bool) string {
	return fmt.Sprintf("%s minimal=%t non_percolable=%t", BindingKey(b), minimal, nonPercolable)
}

// Script programs a deterministic engine over an explicit universe of
// colours. Query tables map lookup keys to member colour indices; the set
// algebra over those members is genuine. Unknown keys fail the query unless
// Permissive is set, and individual keys can be failed through Fail.
type Script struct {
	Colors int

	Formulas     map[string][]int
	FnFormulas   map[string][]int
	Constraints  map[string][]int
	Partition    map[int][]int
	FixedPoints  map[string][]int
	TrapSpaces   map[string][]int
	Trajectories map[string][]int
	Attractors   map[string][]int

	BuildErr   error
	Fail       map[string]error
	Permissive bool
}

func (s Script) validate() error {
	if s.Colors <= 0 {
		return enginef("scripted universe must contain at least one colour")
	}
	tables := map[string]map[string][]int{
		"formulas":     s.Formulas,
		"fn_formulas":  s.FnFormulas,
		"constraints":  s.Constraints,
		"fixed_points": s.FixedPoints,
		"trap_spaces":  s.TrapSpaces,
		"trajectories": s.Trajectories,
		"attractors":   s.Attractors,
	}
	for name, table := range tables {
		for key, members := range table {
			for _, m := range members {
				if m < 0 || m >= s.Colors {
					return enginef("scripted colour %d out of range in %s %q", m, name, key)
				}
			}
		}
	}
	for count, members := range s.Partition {
		for _, m := range members {
			if m < 0 || m >= s.Colors {
				return enginef("scripted colour %d out of range in partition %d", m, count)
			}
		}
	}
	return nil
}

// Scripted is an in-memory Engine answering every query from a Script.
type Scripted struct {
	script Script
}

// NewScripted returns an engine over the given script.
func NewScripted(script Script) *Scripted {
	return &Scripted{script: script}
}

// BuildGraph validates the script and the network and returns a graph whose
// colour sets are bitsets over the scripted universe.
func (e *Scripted) BuildGraph(ctx context.Context, net Network) (Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.script.BuildErr != nil {
		return nil, enginef("build graph: %v", e.script.BuildErr)
	}
	if err := e.script.validate(); err != nil {
		return nil, err
	}
	if len(net.Variables) == 0 {
		return nil, enginef("network has no variables")
	}
	vars := make(map[sketch.VarID]struct{}, len(net.Variables))
	for _, v := range net.Variables {
		vars[v.ID] = struct{}{}
	}
	return &scriptedGraph{script: &e.script, vars: vars}, nil
}

type scriptedGraph struct {
	script *Script
	vars   map[sketch.VarID]struct{}
}

func (g *scriptedGraph) UnitColors() ColorSet {
	return fullColorSet(g.script.Colors)
}

func (g *scriptedGraph) UpdateFnTrue(ctx context.Context, variable sketch.VarID) (Predicate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := g.vars[variable]; !ok {
		return nil, enginef("unknown network variable %q", variable)
	}
	return fnPredicate{variable: variable}, nil
}

func (g *scriptedGraph) Observability(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error) {
	return g.lookup(ctx, g.script.Constraints, ConstraintKey(KindObservability, p.Variable(), input))
}

func (g *scriptedGraph) Activation(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error) {
	return g.lookup(ctx, g.script.Constraints, ConstraintKey(KindActivation, p.Variable(), input))
}

func (g *scriptedGraph) Inhibition(ctx context.Context, p Predicate, input sketch.VarID) (ColorSet, error) {
	return g.lookup(ctx, g.script.Constraints, ConstraintKey(KindInhibition, p.Variable(), input))
}

func (g *scriptedGraph) Intersect(a, b ColorSet) (ColorSet, error) {
	x, err := g.own(a)
	if err != nil {
		return nil, err
	}
	y, err := g.own(b)
	if err != nil {
		return nil, err
	}
	return x.intersect(y), nil
}

func (g *scriptedGraph) ApproxCardinality(set ColorSet) float64 {
	s, err := g.own(set)
	if err != nil {
		return 0
	}
	return float64(s.count())
}

func (g *scriptedGraph) CheckFormula(ctx context.Context, formula string) (ColorSet, error) {
	return g.lookup(ctx, g.script.Formulas, formula)
}

func (g *scriptedGraph) CheckFnFormula(ctx context.Context, formula string) (ColorSet, error) {
	return g.lookup(ctx, g.script.FnFormulas, formula)
}

func (g *scriptedGraph) AttractorCount(ctx context.Context, minimal, maximal int) (ColorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if minimal <= 0 || minimal > maximal {
		return nil, enginef("invalid attractor count range [%d, %d]", minimal, maximal)
	}
	out := emptyColorSet(g.script.Colors)
	for count, members := range g.script.Partition {
		if count >= minimal && count <= maximal {
			out = out.union(newColorSet(g.script.Colors, members))
		}
	}
	return out, nil
}

func (g *scriptedGraph) FixedPoints(ctx context.Context, b Binding) (ColorSet, error) {
	return g.lookup(ctx, g.script.FixedPoints, BindingKey(b))
}

func (g *scriptedGraph) TrapSpaces(ctx context.Context, b Binding, minimal, nonPercolable bool) (ColorSet, error) {
	return g.lookup(ctx, g.script.TrapSpaces, TrapSpaceKey(b, minimal, nonPercolable))
}

func (g *scriptedGraph) Trajectory(ctx context.Context, b Binding) (ColorSet, error) {
	return g.lookup(ctx, g.script.Trajectories, BindingKey(b))
}

func (g *scriptedGraph) HasAttractor(ctx context.Context, b Binding) (ColorSet, error) {
	return g.lookup(ctx, g.script.Attractors, BindingKey(b))
}

func (g *scriptedGraph) lookup(ctx context.Context, table map[string][]int, key string) (ColorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := g.script.Fail[key]; ok {
		return nil, enginef("%s: %v", key, err)
	}
	members, ok := table[key]
	if !ok {
		if g.script.Permissive {
			return fullColorSet(g.script.Colors), nil
		}
		return nil, enginef("no scripted result for %q", key)
	}
	return newColorSet(g.script.Colors, members), nil
}

func (g *scriptedGraph) own(set ColorSet) (colorSet, error) {
	s, ok := set.(colorSet)
	if !ok || s.size != g.script.Colors {
		return colorSet{}, enginef("colour set does not belong to this graph")
	}
	return s, nil
}

type fnPredicate struct {
	variable sketch.VarID
}

func (p fnPredicate) Variable() sketch.VarID { return p.variable }

// colorSet is an immutable bitset over the scripted universe.
type colorSet struct {
	size  int
	words []uint64
}

func emptyColorSet(size int) colorSet {
	return colorSet{size: size, words: make([]uint64, (size+63)/64)}
}

func fullColorSet(size int) colorSet {
	s := emptyColorSet(size)
	for i := 0; i < size; i++ {
		s.words[i/64] |= 1 << uint(i%64)
	}
	return s
}

func newColorSet(size int, members []int) colorSet {
	s := emptyColorSet(size)
	for _, m := range members {
		s.words[m/64] |= 1 << uint(m%64)
	}
	return s
}

func (s colorSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s colorSet) intersect(o colorSet) colorSet {
	out := emptyColorSet(s.size)
	for i := range out.words {
		out.words[i] = s.words[i] & o.words[i]
	}
	return out
}

func (s colorSet) union(o colorSet) colorSet {
	out := emptyColorSet(s.size)
	for i := range out.words {
		out.words[i] = s.words[i] | o.words[i]
	}
	return out
}

func (s colorSet) count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Members lists the colour indices of a scripted colour set in ascending
// order. The second return is false for sets produced by another engine.
func Members(set ColorSet) ([]int, bool) {
	s, ok := set.(colorSet)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, s.count())
	for i := 0; i < s.size; i++ {
		if s.words[i/64]&(1<<uint(i%64)) != 0 {
			out = append(out, i)
		}
	}
	return out, true
}
