package solver

import (
	"context"
	"fmt"
	"sync"

	"sketchcore/internal/engine"
	"sketchcore/pkg/sketch"
)

// predicateCache memoizes the update-function predicates of one graph.
// Building a predicate is the expensive part of a regulation template, and
// several properties commonly constrain the same target. The lock is held
// across construction so concurrent evaluators never build the same
// predicate twice.
type predicateCache struct {
	graph engine.Graph
	mu    sync.Mutex
	preds map[sketch.VarID]engine.Predicate
}

func newPredicateCache(graph engine.Graph) *predicateCache {
	return &predicateCache{graph: graph, preds: make(map[sketch.VarID]engine.Predicate)}
}

func (c *predicateCache) get(ctx context.Context, variable sketch.VarID) (engine.Predicate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.preds[variable]; ok {
		return p, nil
	}
	p, err := c.graph.UpdateFnTrue(ctx, variable)
	if err != nil {
		return nil, err
	}
	c.preds[variable] = p
	return p, nil
}

// evalStatic computes the colour set satisfying one static property.
// Unconstraining values (unknown sign, unknown or false essentiality) yield
// the unit set; values the engine algebra cannot express fail with a
// not-implemented error rather than silently passing.
func evalStatic(ctx context.Context, graph engine.Graph, cache *predicateCache, p compiledStatic) (engine.ColorSet, error) {
	switch p.prop.Variant() {
	case sketch.StatGeneric:
		payload, err := p.prop.Generic()
		if err != nil {
			return nil, err
		}
		return graph.CheckFnFormula(ctx, payload.ProcessedFormula)
	case sketch.StatRegulationEssential:
		payload, err := p.prop.RegulationEssential()
		if err != nil {
			return nil, err
		}
		// Non-essentiality has no engine encoding; only the positive
		// constraint narrows the space.
		if payload.Value != sketch.EssentialityTrue {
			return graph.UnitColors(), nil
		}
		pred, err := cache.get(ctx, *payload.Target)
		if err != nil {
			return nil, err
		}
		return graph.Observability(ctx, pred, *payload.Input)
	case sketch.StatRegulationMonotonic:
		payload, err := p.prop.RegulationMonotonic()
		if err != nil {
			return nil, err
		}
		if payload.Value == sketch.MonotonicityUnknown {
			return graph.UnitColors(), nil
		}
		pred, err := cache.get(ctx, *payload.Target)
		if err != nil {
			return nil, err
		}
		switch payload.Value {
		case sketch.MonotonicityActivation:
			return graph.Activation(ctx, pred, *payload.Input)
		case sketch.MonotonicityInhibition:
			return graph.Inhibition(ctx, pred, *payload.Input)
		}
		return nil, notimplf("static property %s: monotonicity %q is not supported yet", p.id, payload.Value)
	}
	return nil, notimplf("static property %s: variant %s is not supported yet", p.id, p.prop.Variant())
}

func notimplf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sketch.ErrNotImplemented, fmt.Sprintf(format, args...))
}
