// Package solver drives staged candidate inference over a sketch. A solver
// compiles the sketch into a base network, builds a symbolic transition
// structure through an engine, and narrows the candidate colour set by
// intersecting the result of every property, static properties first. Each
// stage transition and per-property narrowing is appended to a status log
// that callers may poll while the run is in flight.
package solver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sketchcore/internal/engine"
	"sketchcore/pkg/sketch"
)

// InferenceSolver runs the pipeline exactly once. A second Run on the same
// instance fails; construct a fresh solver per run.
type InferenceSolver struct {
	eng     engine.Engine
	workers int
	nowFn   func() time.Time

	mu       sync.Mutex
	log      *statusLog
	consumed bool
	network  *engine.Network
	graph    engine.Graph
	current  engine.ColorSet
	results  *Results
}

// Option configures a solver at construction.
type Option func(*InferenceSolver)

// WithWorkers sets how many property sets are computed concurrently.
// Evaluation results and errors are still consumed in property-identifier
// order, so the worker count never changes the outcome.
func WithWorkers(n int) Option {
	return func(s *InferenceSolver) { s.workers = n }
}

// WithNow overrides the clock, for tests.
func WithNow(nowFn func() time.Time) Option {
	return func(s *InferenceSolver) { s.nowFn = nowFn }
}

// New returns a solver in the created stage.
func New(eng engine.Engine, opts ...Option) *InferenceSolver {
	s := &InferenceSolver{eng: eng, workers: 1, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	s.log = newStatusLog(s.nowFn)
	return s
}

// Run executes the full pipeline over a private copy of the sketch. The
// sketch must be consistent; the run asserts this before compiling inputs.
// Any failure moves the solver into the error stage and is returned as is.
func (s *InferenceSolver) Run(ctx context.Context, sk *sketch.Sketch) (Results, error) {
	s.mu.Lock()
	if s.consumed {
		s.mu.Unlock()
		return Results{}, statef("solver instance already used")
	}
	s.consumed = true
	s.mu.Unlock()

	results, err := s.run(ctx, sk)
	if err != nil {
		s.fail(err)
		return Results{}, err
	}
	return results, nil
}

func (s *InferenceSolver) run(ctx context.Context, sk *sketch.Sketch) (Results, error) {
	if err := s.advance(StageStarted, ""); err != nil {
		return Results{}, err
	}
	work := sk.Copy()
	if err := sketch.DefaultChecker().AssertConsistency(ctx, work); err != nil {
		return Results{}, err
	}

	network, statics, dynamics, err := processInputs(work)
	if err != nil {
		return Results{}, err
	}
	s.setNetwork(network)
	detail := fmt.Sprintf("%d variables, %d static and %d dynamic properties",
		len(network.Variables), len(statics), len(dynamics))
	if err := s.advance(StageProcessedInputs, detail); err != nil {
		return Results{}, err
	}

	graph, err := s.eng.BuildGraph(ctx, network)
	if err != nil {
		return Results{}, err
	}
	current := graph.UnitColors()
	s.setGraph(graph, current)
	if err := s.advance(StageGeneratedGraph, fmt.Sprintf("%.0f candidates", graph.ApproxCardinality(current))); err != nil {
		return Results{}, err
	}

	cache := newPredicateCache(graph)
	staticSets, err := evalParallel(ctx, s.workers, len(statics), func(ctx context.Context, i int) (engine.ColorSet, error) {
		return evalStatic(ctx, graph, cache, statics[i])
	})
	if err != nil {
		return Results{}, err
	}
	var narrowings []Narrowing
	for i, p := range statics {
		current, err = graph.Intersect(current, staticSets[i])
		if err != nil {
			return Results{}, err
		}
		s.setCurrent(current)
		remaining := graph.ApproxCardinality(current)
		s.note(fmt.Sprintf("static property %s: %.0f candidates remain", p.id, remaining))
		narrowings = append(narrowings, Narrowing{Property: string(p.id), Kind: "static", Remaining: remaining})
	}
	if err := s.advance(StageEvaluatedStatic, fmt.Sprintf("%.0f candidates", graph.ApproxCardinality(current))); err != nil {
		return Results{}, err
	}

	dynamicSets, err := evalParallel(ctx, s.workers, len(dynamics), func(ctx context.Context, i int) (engine.ColorSet, error) {
		return evalDynamic(ctx, graph, dynamics[i])
	})
	if err != nil {
		return Results{}, err
	}
	for i, p := range dynamics {
		current, err = graph.Intersect(current, dynamicSets[i])
		if err != nil {
			return Results{}, err
		}
		s.setCurrent(current)
		remaining := graph.ApproxCardinality(current)
		s.note(fmt.Sprintf("dynamic property %s: %.0f candidates remain", p.id, remaining))
		narrowings = append(narrowings, Narrowing{Property: string(p.id), Kind: "dynamic", Remaining: remaining})
	}
	if err := s.advance(StageEvaluatedDynamic, fmt.Sprintf("%.0f candidates", graph.ApproxCardinality(current))); err != nil {
		return Results{}, err
	}

	cardinality := graph.ApproxCardinality(current)
	if err := s.advance(StageFinished, fmt.Sprintf("%.0f candidates", cardinality)); err != nil {
		return Results{}, err
	}
	return s.assemble(cardinality, narrowings), nil
}

// evalParallel computes one colour set per item with at most workers
// in-flight evaluations. Results and errors are consumed in item order, so
// the first error by that order wins regardless of completion timing.
func evalParallel(ctx context.Context, workers, n int, eval func(context.Context, int) (engine.ColorSet, error)) ([]engine.ColorSet, error) {
	sets := make([]engine.ColorSet, n)
	errs := make([]error, n)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			sets[i], errs[i] = eval(ctx, i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return sets, nil
}

func (s *InferenceSolver) assemble(cardinality float64, narrowings []Narrowing) Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	started, _ := s.log.at(StageStarted)
	finished, _ := s.log.at(StageFinished)
	results := Results{
		ApproxCardinality: cardinality,
		Duration:          finished.Sub(started),
		Narrowings:        narrowings,
		Statuses:          s.log.snapshot(),
	}
	s.results = &results
	return results
}

func (s *InferenceSolver) advance(stage Stage, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.advance(stage, detail)
}

func (s *InferenceSolver) note(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.note(detail)
}

func (s *InferenceSolver) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.log.advance(StageError, err.Error())
}

func (s *InferenceSolver) setNetwork(network engine.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = &network
}

func (s *InferenceSolver) setGraph(graph engine.Graph, current engine.ColorSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = graph
	s.current = current
}

func (s *InferenceSolver) setCurrent(current engine.ColorSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = current
}

// Stage returns the solver's current pipeline stage.
func (s *InferenceSolver) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.current()
}

// Statuses returns a snapshot of the status log.
func (s *InferenceSolver) Statuses() []StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.snapshot()
}

// Network returns the compiled base network once inputs were processed.
func (s *InferenceSolver) Network() (engine.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network == nil {
		return engine.Network{}, statef("inputs not processed yet")
	}
	return *s.network, nil
}

// Graph returns the symbolic transition structure once it was generated.
func (s *InferenceSolver) Graph() (engine.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, statef("transition structure not generated yet")
	}
	return s.graph, nil
}

// CandidateColors returns the current candidate colour set. During
// evaluation this reflects the narrowing reached so far.
func (s *InferenceSolver) CandidateColors() (engine.ColorSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, statef("no candidate set computed yet")
	}
	return s.current, nil
}

// Results returns the outcome of a finished run.
func (s *InferenceSolver) Results() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return Results{}, statef("run not finished")
	}
	return *s.results, nil
}
