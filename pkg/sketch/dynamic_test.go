package sketch

import (
	"errors"
	"testing"
)

func TestGenericDynProperty(t *testing.T) {
	prop, err := NewGenericDynProperty("p", "EF %d1/o1%")
	if err != nil {
		t.Fatalf("new generic: %v", err)
	}
	payload, err := prop.Generic()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.RawFormula != "EF %d1/o1%" {
		t.Fatalf("raw formula not preserved: %q", payload.RawFormula)
	}
	if payload.ProcessedFormula != "EF observation_d1_o1" {
		t.Fatalf("unexpected canonical formula: %q", payload.ProcessedFormula)
	}
	if len(payload.Wildcards) != 1 {
		t.Fatalf("expected 1 wildcard, got %d", len(payload.Wildcards))
	}
	if _, err := NewGenericDynProperty("p", "EF %broken"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAttractorCountBounds(t *testing.T) {
	if _, err := NewAttractorCountProperty("p", 0, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero bound, got %v", err)
	}
	if _, err := NewAttractorCountProperty("p", 3, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for inverted bounds, got %v", err)
	}
	prop, err := NewAttractorCountProperty("p", 1, 1)
	if err != nil {
		t.Fatalf("bounds (1,1) must succeed: %v", err)
	}
	payload, err := prop.AttractorCount()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Minimal != 1 || payload.Maximal != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if err := prop.SetAttractorCount(4, 2); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on mutation, got %v", err)
	}
	if err := prop.SetAttractorCount(2, 4); err != nil {
		t.Fatalf("set attractor count: %v", err)
	}
}

func TestDynPropertyVariantGating(t *testing.T) {
	ds := DatasetID("d1")
	obs := ObservationID("o1")

	fp := NewFixedPointProperty("fp", nil, nil)
	if err := fp.SetDataset(ds); err != nil {
		t.Fatalf("set dataset: %v", err)
	}
	if err := fp.SetObservation(obs); err != nil {
		t.Fatalf("set observation: %v", err)
	}
	if err := fp.SetFormula("true"); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}
	if err := fp.RemoveObservation(); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}

	gen, err := NewGenericDynProperty("g", "true")
	if err != nil {
		t.Fatalf("new generic: %v", err)
	}
	if err := gen.SetDataset(ds); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}
	if err := gen.SetObservation(obs); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}
	if err := gen.SetFormula("EF %d1/o1%"); err != nil {
		t.Fatalf("set formula: %v", err)
	}
	payload, _ := gen.Generic()
	if payload.ProcessedFormula != "EF observation_d1_o1" {
		t.Fatalf("formula update must reprocess wildcards, got %q", payload.ProcessedFormula)
	}
	if err := gen.SetFormula("%broken"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	unchanged, _ := gen.Generic()
	if unchanged.RawFormula != "EF %d1/o1%" {
		t.Fatalf("failed mutation must leave property unchanged, got %q", unchanged.RawFormula)
	}

	ha := NewHasAttractorProperty("ha", &ds, &obs)
	if err := ha.RemoveObservation(); err != nil {
		t.Fatalf("remove observation: %v", err)
	}
	payloadHA, _ := ha.HasAttractor()
	if payloadHA.Observation != nil {
		t.Fatalf("observation must be cleared")
	}

	traj := NewTrajectoryProperty("tr", &ds)
	if err := traj.SetObservation(obs); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}
	if err := traj.SetTrapSpaceDetails(true, false); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected variant mismatch, got %v", err)
	}

	ts := NewTrapSpaceProperty("ts", &ds, &obs, false, false)
	if err := ts.SetTrapSpaceDetails(true, true); err != nil {
		t.Fatalf("set trap space details: %v", err)
	}
	payloadTS, _ := ts.TrapSpace()
	if !payloadTS.Minimal || !payloadTS.NonPercolable {
		t.Fatalf("expected flags set, got %+v", payloadTS)
	}
}

func TestDefaultDynProperties(t *testing.T) {
	cases := []struct {
		variant DynPropertyVariant
		name    string
	}{
		{DynGeneric, "Generic dynamic property"},
		{DynExistsFixedPoint, "Fixed point existence"},
		{DynExistsTrapSpace, "Trap space existence"},
		{DynExistsTrajectory, "Trajectory existence"},
		{DynAttractorCount, "Attractor count"},
		{DynHasAttractor, "Attractor existence"},
	}
	for _, tc := range cases {
		prop, err := DefaultDynProperty(tc.variant)
		if err != nil {
			t.Fatalf("default %s: %v", tc.variant, err)
		}
		if prop.Name() != tc.name {
			t.Fatalf("default %s: expected name %q, got %q", tc.variant, tc.name, prop.Name())
		}
		if prop.Variant() != tc.variant {
			t.Fatalf("default %s: wrong variant %s", tc.variant, prop.Variant())
		}
	}
	if _, err := DefaultDynProperty("bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	ac, _ := DefaultDynProperty(DynAttractorCount)
	payload, _ := ac.AttractorCount()
	if payload.Minimal != 1 || payload.Maximal != 1 {
		t.Fatalf("default attractor count must be (1,1), got %+v", payload)
	}
}

func TestDynPropertyAnnotationCopy(t *testing.T) {
	ds := DatasetID("d1")
	orig := NewTrajectoryProperty("tr", &ds)
	annotated := orig.WithAnnotation("notes")
	if annotated.Annotation() != "notes" || orig.Annotation() != "" {
		t.Fatalf("WithAnnotation must not mutate the receiver")
	}
	other := DatasetID("d2")
	if err := annotated.SetDataset(other); err != nil {
		t.Fatalf("set dataset: %v", err)
	}
	payload, _ := orig.Trajectory()
	if payload.Dataset == nil || *payload.Dataset != "d1" {
		t.Fatalf("copies must not share payloads, got %+v", payload)
	}
	if err := orig.SetName(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if err := orig.SetName("renamed"); err != nil || orig.Name() != "renamed" {
		t.Fatalf("set name: %v", err)
	}
}
