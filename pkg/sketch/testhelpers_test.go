package sketch

import "testing"

// newTestSketch builds a small fully-consistent sketch touching every
// property variant. Tests that need an inconsistent sketch mutate it.
func newTestSketch(t *testing.T) *Sketch {
	t.Helper()
	s := NewSketch()
	s.SetAnnotation("toy network")

	m := s.Model()
	for _, id := range []VarID{"a", "b", "c"} {
		if err := m.AddVariable(id, ""); err != nil {
			t.Fatalf("add variable: %v", err)
		}
	}
	if err := m.SetVariableName("a", "Gene A"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := m.SetUpdateFn("b", "a"); err != nil {
		t.Fatalf("set update fn: %v", err)
	}
	for _, reg := range []Regulation{
		{Regulator: "a", Target: "b", Sign: MonotonicityActivation, Observable: EssentialityTrue},
		{Regulator: "b", Target: "c"},
		{Regulator: "c", Target: "a", Sign: MonotonicityInhibition},
		{Regulator: "c", Target: "c"},
	} {
		if err := m.AddRegulation(reg); err != nil {
			t.Fatalf("add regulation: %v", err)
		}
	}
	if err := m.SetPosition("a", LayoutPosition{X: 10, Y: 20}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := m.SetPosition("b", LayoutPosition{X: -5, Y: 0.5}); err != nil {
		t.Fatalf("set position: %v", err)
	}

	d1, err := NewDataset([]VarID{"a", "b"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	for _, obs := range []Observation{
		{ID: "o1", Name: "steady", Values: []ObsValue{ObsZero, ObsOne}},
		{ID: "o2", Values: []ObsValue{ObsOne, ObsAny}},
	} {
		if err := d1.AddObservation(obs); err != nil {
			t.Fatalf("add observation: %v", err)
		}
	}
	if err := s.AddDataset("d1", d1); err != nil {
		t.Fatalf("add dataset: %v", err)
	}
	d2, err := NewDataset([]VarID{"a", "b", "c"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	if err := d2.AddObservation(Observation{ID: "w1", Values: []ObsValue{ObsOne, ObsZero, ObsAny}}); err != nil {
		t.Fatalf("add observation: %v", err)
	}
	if err := s.AddDataset("d2", d2); err != nil {
		t.Fatalf("add dataset: %v", err)
	}

	props := s.Properties()
	gen, err := NewGenericDynProperty("reach steady", "EF %d1/o1%")
	if err != nil {
		t.Fatalf("new generic dynamic: %v", err)
	}
	if err := props.AddDynamic("reach_steady", gen.WithAnnotation("from data")); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	obsO1 := ObservationID("o1")
	obsO2 := ObservationID("o2")
	dsD1 := DatasetID("d1")
	dsD2 := DatasetID("d2")
	if err := props.AddDynamic("fp", NewFixedPointProperty("fp", &dsD1, &obsO1)); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if err := props.AddDynamic("ts", NewTrapSpaceProperty("ts", &dsD1, nil, true, false)); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if err := props.AddDynamic("tr", NewTrajectoryProperty("tr", &dsD2)); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	ac, err := NewAttractorCountProperty("ac", 1, 2)
	if err != nil {
		t.Fatalf("new attractor count: %v", err)
	}
	if err := props.AddDynamic("ac", ac); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if err := props.AddDynamic("ha", NewHasAttractorProperty("ha", &dsD1, &obsO2)); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}

	genStat, err := NewGenericStatProperty("update shape", "forall x: a | b")
	if err != nil {
		t.Fatalf("new generic static: %v", err)
	}
	if err := props.AddStatic("update_shape", genStat); err != nil {
		t.Fatalf("add static: %v", err)
	}
	inA, inB, inC := VarID("a"), VarID("b"), VarID("c")
	idx0 := 0
	if err := props.AddStatic("re", NewRegulationEssentialProperty("re", &inA, &inB, EssentialityTrue)); err != nil {
		t.Fatalf("add static: %v", err)
	}
	if err := props.AddStatic("rmc", NewRegulationMonotonicContextProperty("rmc", &inC, &inA, MonotonicityInhibition, "a | b")); err != nil {
		t.Fatalf("add static: %v", err)
	}
	if err := props.AddStatic("fe", NewFnInputEssentialProperty("fe", &idx0, &inB, EssentialityTrue)); err != nil {
		t.Fatalf("add static: %v", err)
	}
	if err := props.AddStatic("fmc", NewFnInputMonotonicContextProperty("fmc", &idx0, &inC, MonotonicityActivation, "true")); err != nil {
		t.Fatalf("add static: %v", err)
	}
	return s
}
