package solver

import (
	"context"

	"sketchcore/internal/engine"
	"sketchcore/pkg/sketch"
)

// evalDynamic computes the colour set satisfying one dynamic property.
// Template variants run against the binding resolved during input
// processing.
func evalDynamic(ctx context.Context, graph engine.Graph, p compiledDynamic) (engine.ColorSet, error) {
	switch p.prop.Variant() {
	case sketch.DynGeneric:
		payload, err := p.prop.Generic()
		if err != nil {
			return nil, err
		}
		return graph.CheckFormula(ctx, payload.ProcessedFormula)
	case sketch.DynExistsFixedPoint:
		return graph.FixedPoints(ctx, p.binding)
	case sketch.DynExistsTrapSpace:
		payload, err := p.prop.TrapSpace()
		if err != nil {
			return nil, err
		}
		return graph.TrapSpaces(ctx, p.binding, payload.Minimal, payload.NonPercolable)
	case sketch.DynExistsTrajectory:
		return graph.Trajectory(ctx, p.binding)
	case sketch.DynAttractorCount:
		payload, err := p.prop.AttractorCount()
		if err != nil {
			return nil, err
		}
		return graph.AttractorCount(ctx, payload.Minimal, payload.Maximal)
	case sketch.DynHasAttractor:
		return graph.HasAttractor(ctx, p.binding)
	}
	return nil, notimplf("dynamic property %s: variant %s is not supported yet", p.id, p.prop.Variant())
}
