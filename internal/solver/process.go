package solver

import (
	"fmt"

	"sketchcore/internal/engine"
	"sketchcore/pkg/sketch"
)

// compiledStatic is one static property ready for evaluation.
type compiledStatic struct {
	id   sketch.StatPropertyID
	prop sketch.StatProperty
}

// compiledDynamic is one dynamic property ready for evaluation, with its
// observation binding already resolved. The binding stays zero for variants
// that carry no observation references.
type compiledDynamic struct {
	id      sketch.DynPropertyID
	prop    sketch.DynProperty
	binding engine.Binding
}

// processInputs compiles a sketch into the base network and the property
// lists consumed by the evaluation stages. Properties come out sorted by
// identifier, so evaluation order and the resulting narrowing sequence are
// deterministic. All references resolve eagerly; a dangling one fails here
// instead of mid-evaluation.
func processInputs(s *sketch.Sketch) (engine.Network, []compiledStatic, []compiledDynamic, error) {
	net := buildNetwork(s)
	statics, err := compileStatics(s)
	if err != nil {
		return engine.Network{}, nil, nil, err
	}
	dynamics, err := compileDynamics(s)
	if err != nil {
		return engine.Network{}, nil, nil, err
	}
	return net, statics, dynamics, nil
}

func buildNetwork(s *sketch.Sketch) engine.Network {
	m := s.Model()
	net := engine.Network{Regulations: m.Regulations()}
	for _, v := range m.Variables() {
		net.Variables = append(net.Variables, engine.NetworkVariable{
			ID:         v.ID,
			UpdateFn:   v.UpdateFn,
			Regulators: m.RegulatorsOf(v.ID),
		})
	}
	for _, id := range s.DatasetIDs() {
		ds, _ := s.Dataset(id)
		net.Datasets = append(net.Datasets, engine.Binding{
			Dataset:      id,
			Variables:    ds.Variables(),
			Observations: ds.Observations(),
		})
	}
	return net
}

func compileStatics(s *sketch.Sketch) ([]compiledStatic, error) {
	ids := s.Properties().StaticIDs()
	out := make([]compiledStatic, 0, len(ids))
	for _, id := range ids {
		prop, _ := s.Properties().Static(id)
		if err := prop.AssertFilled(); err != nil {
			return nil, fmt.Errorf("static property %s: %w", id, err)
		}
		if err := checkStaticRefs(s, id, &prop); err != nil {
			return nil, err
		}
		out = append(out, compiledStatic{id: id, prop: prop})
	}
	return out, nil
}

func checkStaticRefs(s *sketch.Sketch, id sketch.StatPropertyID, prop *sketch.StatProperty) error {
	switch prop.Variant() {
	case sketch.StatRegulationEssential, sketch.StatRegulationEssentialContext,
		sketch.StatRegulationMonotonic, sketch.StatRegulationMonotonicContext:
		input, target, err := prop.RegulatorAndTarget()
		if err != nil {
			return err
		}
		for _, v := range []sketch.VarID{*input, *target} {
			if !s.Model().HasVariable(v) {
				return referencef("static property %s: variable %q not found", id, v)
			}
		}
	case sketch.StatFnInputEssential, sketch.StatFnInputEssentialContext,
		sketch.StatFnInputMonotonic, sketch.StatFnInputMonotonicContext:
		target, index, err := prop.FunctionAndIndex()
		if err != nil {
			return err
		}
		if !s.Model().HasVariable(*target) {
			return referencef("static property %s: variable %q not found", id, *target)
		}
		if arity := len(s.Model().RegulatorsOf(*target)); *index >= arity {
			return referencef("static property %s: input index %d out of range for %q with %d inputs", id, *index, *target, arity)
		}
	}
	return nil
}

func compileDynamics(s *sketch.Sketch) ([]compiledDynamic, error) {
	ids := s.Properties().DynamicIDs()
	out := make([]compiledDynamic, 0, len(ids))
	for _, id := range ids {
		prop, _ := s.Properties().Dynamic(id)
		compiled := compiledDynamic{id: id, prop: prop}
		var err error
		switch prop.Variant() {
		case sketch.DynExistsFixedPoint:
			payload, _ := prop.FixedPoint()
			compiled.binding, err = resolveBinding(s, id, payload.Dataset, payload.Observation)
		case sketch.DynExistsTrapSpace:
			payload, _ := prop.TrapSpace()
			compiled.binding, err = resolveBinding(s, id, payload.Dataset, payload.Observation)
		case sketch.DynExistsTrajectory:
			payload, _ := prop.Trajectory()
			compiled.binding, err = resolveBinding(s, id, payload.Dataset, nil)
		case sketch.DynHasAttractor:
			payload, _ := prop.HasAttractor()
			compiled.binding, err = resolveBinding(s, id, payload.Dataset, payload.Observation)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

// resolveBinding turns a dataset reference and an optional observation
// reference into the rows a template evaluator runs against. A nil
// observation selects every observation of the dataset, sorted by
// identifier.
func resolveBinding(s *sketch.Sketch, id sketch.DynPropertyID, dsID *sketch.DatasetID, obsID *sketch.ObservationID) (engine.Binding, error) {
	if dsID == nil {
		return engine.Binding{}, referencef("dynamic property %s: dataset reference not filled", id)
	}
	ds, ok := s.Dataset(*dsID)
	if !ok {
		return engine.Binding{}, referencef("dynamic property %s: dataset %q not found", id, *dsID)
	}
	binding := engine.Binding{Dataset: *dsID, Variables: ds.Variables()}
	if obsID != nil {
		obs, ok := ds.Observation(*obsID)
		if !ok {
			return engine.Binding{}, referencef("dynamic property %s: observation %q not found in dataset %q", id, *obsID, *dsID)
		}
		binding.Observations = []sketch.Observation{obs}
		return binding, nil
	}
	binding.Observations = ds.Observations()
	return binding, nil
}

func referencef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sketch.ErrReference, fmt.Sprintf(format, args...))
}
