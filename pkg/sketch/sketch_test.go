package sketch

import (
	"errors"
	"reflect"
	"testing"
)

func TestSketchDatasets(t *testing.T) {
	s := NewSketch()
	ds, err := NewDataset([]VarID{"a"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	if err := s.AddDataset("d1", ds); err != nil {
		t.Fatalf("add dataset: %v", err)
	}
	if err := s.AddDataset("d1", ds); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate, got %v", err)
	}
	if err := s.AddDataset("d2", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for nil dataset, got %v", err)
	}
	if err := s.RemoveDataset("missing"); !errors.Is(err, ErrReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
	if got := s.GenerateDatasetID("d1", 0); got != "d1_0" {
		t.Fatalf("expected d1_0, got %q", got)
	}
	if !s.HasDataset("d1") || s.NumDatasets() != 1 {
		t.Fatalf("unexpected dataset state")
	}
	if err := s.RemoveDataset("d1"); err != nil {
		t.Fatalf("remove dataset: %v", err)
	}
}

func TestSketchDatasetIDsSorted(t *testing.T) {
	s := NewSketch()
	for _, id := range []DatasetID{"z", "m", "a"} {
		ds, err := NewDataset(nil)
		if err != nil {
			t.Fatalf("new dataset: %v", err)
		}
		if err := s.AddDataset(id, ds); err != nil {
			t.Fatalf("add dataset: %v", err)
		}
	}
	want := []DatasetID{"a", "m", "z"}
	if got := s.DatasetIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSketchCopyIsDeep(t *testing.T) {
	s := newTestSketch(t)
	cp := s.Copy()

	if err := cp.Model().AddVariable("extra", ""); err != nil {
		t.Fatalf("add variable: %v", err)
	}
	if s.Model().HasVariable("extra") {
		t.Fatalf("model copy must not alias")
	}

	ds, _ := cp.Dataset("d1")
	if err := ds.AddObservation(Observation{ID: "o3", Values: []ObsValue{ObsOne, ObsOne}}); err != nil {
		t.Fatalf("add observation: %v", err)
	}
	orig, _ := s.Dataset("d1")
	if orig.HasObservation("o3") {
		t.Fatalf("dataset copy must not alias")
	}

	if err := cp.Properties().RemoveDynamic("fp"); err != nil {
		t.Fatalf("remove dynamic: %v", err)
	}
	if !s.Properties().HasDynamic("fp") {
		t.Fatalf("property copy must not alias")
	}
}
