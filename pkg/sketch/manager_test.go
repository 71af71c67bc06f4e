package sketch

import (
	"errors"
	"reflect"
	"testing"
)

func TestPropertyManagerNamespaces(t *testing.T) {
	m := NewPropertyManager()
	dyn, err := NewGenericDynProperty("d", "true")
	if err != nil {
		t.Fatalf("new dynamic: %v", err)
	}
	stat, err := NewGenericStatProperty("s", "true")
	if err != nil {
		t.Fatalf("new static: %v", err)
	}
	if err := m.AddDynamic("shared", dyn); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if err := m.AddStatic("shared", stat); err != nil {
		t.Fatalf("namespaces must be independent: %v", err)
	}
	if err := m.AddDynamic("shared", dyn); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate, got %v", err)
	}
	if err := m.RemoveDynamic("missing"); !errors.Is(err, ErrReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
	if err := m.SetStatic("missing", stat); !errors.Is(err, ErrReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
	if m.NumDynamic() != 1 || m.NumStatic() != 1 {
		t.Fatalf("unexpected counts %d/%d", m.NumDynamic(), m.NumStatic())
	}
	if err := m.RemoveDynamic("shared"); err != nil {
		t.Fatalf("remove dynamic: %v", err)
	}
	if m.HasDynamic("shared") || !m.HasStatic("shared") {
		t.Fatalf("removal must not cross namespaces")
	}
}

func TestPropertyManagerSortedIDs(t *testing.T) {
	m := NewPropertyManager()
	for _, id := range []DynPropertyID{"c", "a", "b"} {
		prop, err := NewGenericDynProperty(string(id), "true")
		if err != nil {
			t.Fatalf("new dynamic: %v", err)
		}
		if err := m.AddDynamic(id, prop); err != nil {
			t.Fatalf("add dynamic: %v", err)
		}
	}
	want := []DynPropertyID{"a", "b", "c"}
	if got := m.DynamicIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected sorted ids %v, got %v", want, got)
	}
}

func TestGenerateIDVerbatimAndSanitized(t *testing.T) {
	m := NewPropertyManager()
	if got := m.GenerateDynamicID("d", 0); got != "d" {
		t.Fatalf("valid free ideal must be used verbatim, got %q", got)
	}
	if got := m.GenerateDynamicID("-d ??)&    ", 0); got != "d" {
		t.Fatalf("expected sanitized id d, got %q", got)
	}
	if got := m.GenerateDynamicID("99 problems", 0); got != "_99problems" {
		t.Fatalf("digit-leading sanitization must prefix an underscore, got %q", got)
	}
	if got := m.GenerateDynamicID("???", 0); got != "_" {
		t.Fatalf("fully stripped ideal must fall back to underscore, got %q", got)
	}
}

func TestGenerateIDProbesSuffixes(t *testing.T) {
	m := NewPropertyManager()
	prop, err := NewGenericDynProperty("p", "true")
	if err != nil {
		t.Fatalf("new dynamic: %v", err)
	}
	if err := m.AddDynamic("a", prop); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if got := m.GenerateDynamicID("a", 0); got != "a_0" {
		t.Fatalf("expected a_0, got %q", got)
	}
	if err := m.AddDynamic("a_0", prop); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if err := m.AddDynamic("a_1", prop); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	if got := m.GenerateDynamicID("a", 0); got != "a_2" {
		t.Fatalf("expected a_2, got %q", got)
	}
	if got := m.GenerateDynamicID("a", 5); got != "a_5" {
		t.Fatalf("start index must shift the probe, got %q", got)
	}
}

func TestGenerateIDIsPure(t *testing.T) {
	m := NewPropertyManager()
	prop, err := NewGenericStatProperty("p", "true")
	if err != nil {
		t.Fatalf("new static: %v", err)
	}
	if err := m.AddStatic("x", prop); err != nil {
		t.Fatalf("add static: %v", err)
	}
	first := m.GenerateStaticID("x", 0)
	second := m.GenerateStaticID("x", 0)
	if first != second {
		t.Fatalf("generation must not consume state: %q vs %q", first, second)
	}
	if m.HasStatic(first) {
		t.Fatalf("generated id must be free")
	}
}

func TestPropertyManagerCopyIsDeep(t *testing.T) {
	m := NewPropertyManager()
	prop, err := NewGenericDynProperty("p", "true")
	if err != nil {
		t.Fatalf("new dynamic: %v", err)
	}
	if err := m.AddDynamic("p", prop); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	cp := m.Copy()
	if err := cp.RemoveDynamic("p"); err != nil {
		t.Fatalf("remove from copy: %v", err)
	}
	if !m.HasDynamic("p") {
		t.Fatalf("copy must not alias the original")
	}
}
