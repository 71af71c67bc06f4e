package formats

import (
	"encoding/json"
	"errors"
	"testing"

	"sketchcore/pkg/sketch"
)

// buildFixture assembles a sketch exercising every entity kind: named and
// implicit variables, all regulation sign and essentiality combinations,
// update functions, layout, a dataset, and properties of several variants.
// The automatic regulation properties are derived up front so the fixture
// survives an annotated import unchanged.
func buildFixture(t *testing.T) *sketch.Sketch {
	t.Helper()
	s := sketch.NewSketch()
	model := s.Model()
	for _, v := range []struct{ id, name string }{
		{"a", "Sensor"}, {"b", "Relay"}, {"c", "Effector"}, {"d", ""},
	} {
		if err := model.AddVariable(sketch.VarID(v.id), v.name); err != nil {
			t.Fatalf("add variable %s: %v", v.id, err)
		}
	}
	regulations := []sketch.Regulation{
		{Regulator: "a", Target: "b", Sign: sketch.MonotonicityActivation, Observable: sketch.EssentialityTrue},
		{Regulator: "b", Target: "c", Sign: sketch.MonotonicityInhibition, Observable: sketch.EssentialityUnknown},
		{Regulator: "c", Target: "a", Sign: sketch.MonotonicityDual, Observable: sketch.EssentialityFalse},
		{Regulator: "a", Target: "a", Sign: sketch.MonotonicityUnknown, Observable: sketch.EssentialityUnknown},
	}
	for _, reg := range regulations {
		if err := model.AddRegulation(reg); err != nil {
			t.Fatalf("add regulation %s %s: %v", reg.Regulator, reg.Target, err)
		}
	}
	if err := model.SetUpdateFn("a", "b | c"); err != nil {
		t.Fatalf("set update fn: %v", err)
	}
	if err := model.SetUpdateFn("c", "!b"); err != nil {
		t.Fatalf("set update fn: %v", err)
	}
	if err := model.SetPosition("a", sketch.LayoutPosition{X: 1.5, Y: -2.25}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := model.SetPosition("b", sketch.LayoutPosition{X: 0, Y: 3}); err != nil {
		t.Fatalf("set position: %v", err)
	}

	ds, err := sketch.NewDataset([]sketch.VarID{"a", "b", "c"})
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	for _, obs := range []struct{ id, name, values string }{
		{"o1", "first", "101"},
		{"o2", "", "0*1"},
	} {
		values, err := sketch.ParseObsValues(obs.values)
		if err != nil {
			t.Fatalf("parse values: %v", err)
		}
		err = ds.AddObservation(sketch.Observation{ID: sketch.ObservationID(obs.id), Name: obs.name, Values: values})
		if err != nil {
			t.Fatalf("add observation %s: %v", obs.id, err)
		}
	}
	if err := s.AddDataset("d1", ds); err != nil {
		t.Fatalf("add dataset: %v", err)
	}

	dsID := sketch.DatasetID("d1")
	obsID := sketch.ObservationID("o1")
	props := s.Properties()
	if err := props.AddDynamic("steady", sketch.NewFixedPointProperty("Reach steady state", &dsID, &obsID)); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	count, err := sketch.NewAttractorCountProperty("Attractor budget", 1, 3)
	if err != nil {
		t.Fatalf("new attractor count: %v", err)
	}
	if err := props.AddDynamic("budget", count); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	osc, err := sketch.NewGenericDynProperty("Oscillates", "EF (%d1/o1% & EF a)")
	if err != nil {
		t.Fatalf("new generic dynamic: %v", err)
	}
	if err := props.AddDynamic("osc", osc); err != nil {
		t.Fatalf("add dynamic: %v", err)
	}
	gen, err := sketch.NewGenericStatProperty("Monotone core", "a => b")
	if err != nil {
		t.Fatalf("new generic static: %v", err)
	}
	if err := props.AddStatic("core", gen); err != nil {
		t.Fatalf("add static: %v", err)
	}
	s.SetAnnotation("Round-trip `fixture` sketch.")

	if err := deriveRegulationProperties(s); err != nil {
		t.Fatalf("derive regulation properties: %v", err)
	}
	return s
}

func canonicalJSON(t *testing.T, s *sketch.Sketch) string {
	t.Helper()
	buf, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal sketch: %v", err)
	}
	return string(buf)
}

func TestDetectPath(t *testing.T) {
	cases := []struct {
		path string
		want Format
	}{
		{"model.aeon", FormatAnnotated},
		{"dir/model.AEON", FormatAnnotated},
		{"model.json", FormatJSON},
		{"model.sbml", FormatSBML},
		{"model.xml", FormatSBML},
	}
	for _, tc := range cases {
		got, err := DetectPath(tc.path)
		if err != nil {
			t.Fatalf("DetectPath(%q): %v", tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("DetectPath(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
	if _, err := DetectPath("model.txt"); !errors.Is(err, sketch.ErrValidation) {
		t.Fatalf("expected validation error for unknown extension, got %v", err)
	}
}

func TestDetectMediaType(t *testing.T) {
	cases := []struct {
		contentType string
		want        Format
	}{
		{"application/json", FormatJSON},
		{"application/json; charset=utf-8", FormatJSON},
		{"application/xml", FormatSBML},
		{"text/xml", FormatSBML},
		{"application/sbml+xml", FormatSBML},
		{"text/plain", FormatAnnotated},
		{"application/octet-stream", FormatAnnotated},
	}
	for _, tc := range cases {
		got, err := DetectMediaType(tc.contentType)
		if err != nil {
			t.Fatalf("DetectMediaType(%q): %v", tc.contentType, err)
		}
		if got != tc.want {
			t.Fatalf("DetectMediaType(%q) = %s, want %s", tc.contentType, got, tc.want)
		}
	}
	if _, err := DetectMediaType("image/png"); !errors.Is(err, sketch.ErrValidation) {
		t.Fatalf("expected validation error for foreign content type, got %v", err)
	}
	if _, err := DetectMediaType(""); !errors.Is(err, sketch.ErrValidation) {
		t.Fatalf("expected validation error for empty content type, got %v", err)
	}
}

func TestFormatAccessors(t *testing.T) {
	for _, format := range []Format{FormatAnnotated, FormatJSON, FormatSBML} {
		if !format.Valid() {
			t.Fatalf("format %s should be valid", format)
		}
		if format.Ext() == "" {
			t.Fatalf("format %s has no extension", format)
		}
		if format.MediaType() == "" {
			t.Fatalf("format %s has no media type", format)
		}
	}
	if Format("yaml").Valid() {
		t.Fatal("yaml should not be a valid format")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := buildFixture(t)
	data, err := Export(FormatJSON, in)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err := Import(FormatJSON, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := canonicalJSON(t, out), canonicalJSON(t, in); got != want {
		t.Fatalf("round trip changed the sketch:\n got %s\nwant %s", got, want)
	}
}

// The JSON importer must not invent regulation properties: a document
// without them stays without them.
func TestJSONImportDoesNotDeriveProperties(t *testing.T) {
	s := sketch.NewSketch()
	if err := s.Model().AddVariable("a", ""); err != nil {
		t.Fatalf("add variable: %v", err)
	}
	if err := s.Model().AddVariable("b", ""); err != nil {
		t.Fatalf("add variable: %v", err)
	}
	err := s.Model().AddRegulation(sketch.Regulation{
		Regulator: "a", Target: "b",
		Sign: sketch.MonotonicityActivation, Observable: sketch.EssentialityTrue,
	})
	if err != nil {
		t.Fatalf("add regulation: %v", err)
	}
	data, err := Export(FormatJSON, s)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err := Import(FormatJSON, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n := out.Properties().NumStatic(); n != 0 {
		t.Fatalf("expected no static properties after json import, got %d", n)
	}
}

func TestCrossFormatAgreement(t *testing.T) {
	in := buildFixture(t)
	annotated, err := Export(FormatAnnotated, in)
	if err != nil {
		t.Fatalf("export annotated: %v", err)
	}
	jsonDoc, err := Export(FormatJSON, in)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	fromAnnotated, err := Import(FormatAnnotated, annotated)
	if err != nil {
		t.Fatalf("import annotated: %v", err)
	}
	fromJSON, err := Import(FormatJSON, jsonDoc)
	if err != nil {
		t.Fatalf("import json: %v", err)
	}
	if got, want := canonicalJSON(t, fromAnnotated), canonicalJSON(t, fromJSON); got != want {
		t.Fatalf("annotated and json imports disagree:\n got %s\nwant %s", got, want)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := Import(Format("yaml"), nil); !errors.Is(err, sketch.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Export(Format("yaml"), sketch.NewSketch()); !errors.Is(err, sketch.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
