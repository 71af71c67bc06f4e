package sketch

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewDatasetValidation(t *testing.T) {
	if _, err := NewDataset([]VarID{"a", "b", "a"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate variable, got %v", err)
	}
	if _, err := NewDataset([]VarID{"a", "1bad"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for invalid id, got %v", err)
	}
	ds, err := NewDataset([]VarID{"a", "b"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	if got := ds.Variables(); !reflect.DeepEqual(got, []VarID{"a", "b"}) {
		t.Fatalf("expected variable order preserved, got %v", got)
	}
}

func TestDatasetObservations(t *testing.T) {
	ds, err := NewDataset([]VarID{"a", "b", "c"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	obs := Observation{ID: "o1", Values: []ObsValue{ObsOne, ObsZero, ObsAny}}
	if err := ds.AddObservation(obs); err != nil {
		t.Fatalf("add observation: %v", err)
	}
	if err := ds.AddObservation(obs); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate id, got %v", err)
	}
	short := Observation{ID: "o2", Values: []ObsValue{ObsOne}}
	if err := ds.AddObservation(short); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for length mismatch, got %v", err)
	}
	bad := Observation{ID: "o3", Values: []ObsValue{ObsOne, "x", ObsZero}}
	if err := ds.AddObservation(bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for invalid value, got %v", err)
	}
	if ds.NumObservations() != 1 {
		t.Fatalf("expected 1 observation, got %d", ds.NumObservations())
	}
	if err := ds.RemoveObservation("missing"); !errors.Is(err, ErrReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
	if err := ds.RemoveObservation("o1"); err != nil {
		t.Fatalf("remove observation: %v", err)
	}
	if ds.NumObservations() != 0 {
		t.Fatalf("expected empty dataset")
	}
}

func TestObsValuesCompactForm(t *testing.T) {
	obs := Observation{ID: "o", Values: []ObsValue{ObsZero, ObsOne, ObsAny, ObsOne}}
	if got := obs.ValuesString(); got != "01*1" {
		t.Fatalf("expected compact form 01*1, got %q", got)
	}
	values, err := ParseObsValues("01*1")
	if err != nil {
		t.Fatalf("parse values: %v", err)
	}
	if !reflect.DeepEqual(values, obs.Values) {
		t.Fatalf("round trip mismatch: %v", values)
	}
	if _, err := ParseObsValues("01x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDatasetCopyIsDeep(t *testing.T) {
	ds, err := NewDataset([]VarID{"a"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	if err := ds.AddObservation(Observation{ID: "o1", Values: []ObsValue{ObsOne}}); err != nil {
		t.Fatalf("add observation: %v", err)
	}
	cp := ds.Copy()
	if err := cp.AddObservation(Observation{ID: "o2", Values: []ObsValue{ObsZero}}); err != nil {
		t.Fatalf("add observation to copy: %v", err)
	}
	if ds.HasObservation("o2") {
		t.Fatalf("copy must not alias the original")
	}
	obs, _ := cp.Observation("o1")
	obs.Values[0] = ObsAny
	reread, _ := cp.Observation("o1")
	if reread.Values[0] != ObsOne {
		t.Fatalf("observation accessor must return a defensive copy")
	}
}
