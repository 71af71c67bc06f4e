package formats

import (
	"encoding/xml"
	"fmt"

	"sketchcore/pkg/sketch"
)

// SBML support covers a qualitative-models subset: qualitative species,
// transitions with signed inputs, update function expressions, and layout
// positions. Datasets, properties, and the sketch annotation have no SBML
// representation, so an SBML round-trip preserves the model part only. Like
// the annotated importer, the SBML importer derives the automatic regulation
// properties for typed regulations.

const sbmlNamespace = "http://www.sbml.org/sbml/level3/version1/core"

type sbmlDocument struct {
	XMLName xml.Name  `xml:"sbml"`
	XMLNS   string    `xml:"xmlns,attr"`
	Level   int       `xml:"level,attr"`
	Version int       `xml:"version,attr"`
	Model   sbmlModel `xml:"model"`
}

type sbmlModel struct {
	ID          string           `xml:"id,attr,omitempty"`
	Species     []sbmlSpecies    `xml:"listOfQualitativeSpecies>qualitativeSpecies"`
	Transitions []sbmlTransition `xml:"listOfTransitions>transition"`
	Positions   []sbmlPosition   `xml:"layout>position"`
}

type sbmlSpecies struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr,omitempty"`
}

type sbmlTransition struct {
	ID       string       `xml:"id,attr,omitempty"`
	Inputs   []sbmlInput  `xml:"listOfInputs>input"`
	Outputs  []sbmlOutput `xml:"listOfOutputs>output"`
	Function string       `xml:"updateFunction,omitempty"`
}

type sbmlInput struct {
	Species   string `xml:"qualitativeSpecies,attr"`
	Sign      string `xml:"sign,attr"`
	Essential string `xml:"essential,attr"`
}

type sbmlOutput struct {
	Species string `xml:"qualitativeSpecies,attr"`
}

type sbmlPosition struct {
	Species string  `xml:"species,attr"`
	X       float64 `xml:"x,attr"`
	Y       float64 `xml:"y,attr"`
}

var sbmlSigns = map[sketch.Monotonicity]string{
	sketch.MonotonicityActivation: "positive",
	sketch.MonotonicityInhibition: "negative",
	sketch.MonotonicityDual:       "dual",
	sketch.MonotonicityUnknown:    "unknown",
}

var sbmlSignValues = map[string]sketch.Monotonicity{
	"positive": sketch.MonotonicityActivation,
	"negative": sketch.MonotonicityInhibition,
	"dual":     sketch.MonotonicityDual,
	"unknown":  sketch.MonotonicityUnknown,
}

// encodeSBML renders the model part of the sketch. One transition is written
// per variable that has regulators or an explicit update function.
func encodeSBML(s *sketch.Sketch) ([]byte, error) {
	model := s.Model()
	doc := sbmlDocument{
		XMLNS:   sbmlNamespace,
		Level:   3,
		Version: 1,
		Model:   sbmlModel{ID: "model"},
	}
	for _, v := range model.Variables() {
		doc.Model.Species = append(doc.Model.Species, sbmlSpecies{ID: string(v.ID), Name: v.Name})
	}
	for _, v := range model.Variables() {
		regulators := model.RegulatorsOf(v.ID)
		if len(regulators) == 0 && v.UpdateFn == "" {
			continue
		}
		tr := sbmlTransition{
			ID:       "tr_" + string(v.ID),
			Outputs:  []sbmlOutput{{Species: string(v.ID)}},
			Function: v.UpdateFn,
		}
		for _, regulator := range regulators {
			reg, _ := model.Regulation(regulator, v.ID)
			tr.Inputs = append(tr.Inputs, sbmlInput{
				Species:   string(regulator),
				Sign:      sbmlSigns[reg.Sign],
				Essential: string(reg.Observable),
			})
		}
		doc.Model.Transitions = append(doc.Model.Transitions, tr)
	}
	for _, id := range model.VariableIDs() {
		if pos, ok := model.Position(id); ok {
			doc.Model.Positions = append(doc.Model.Positions, sbmlPosition{
				Species: string(id), X: pos.X, Y: pos.Y,
			})
		}
	}
	buf, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(buf)+1)
	out = append(out, xml.Header...)
	out = append(out, buf...)
	out = append(out, '\n')
	return out, nil
}

// decodeSBML parses the qualitative subset into a fresh sketch. Every
// species referenced by a transition or position must be declared.
func decodeSBML(data []byte) (*sketch.Sketch, error) {
	var doc sbmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: sbml: %s", sketch.ErrValidation, err)
	}
	out := sketch.NewSketch()
	model := out.Model()
	for _, sp := range doc.Model.Species {
		if err := model.AddVariable(sketch.VarID(sp.ID), sp.Name); err != nil {
			return nil, err
		}
	}
	for _, tr := range doc.Model.Transitions {
		if len(tr.Outputs) != 1 {
			return nil, invalidf("sbml transition %q must have exactly one output, got %d", tr.ID, len(tr.Outputs))
		}
		target := sketch.VarID(tr.Outputs[0].Species)
		for _, input := range tr.Inputs {
			sign, ok := sbmlSignValues[input.Sign]
			if !ok {
				return nil, invalidf("sbml transition %q has unknown input sign %q", tr.ID, input.Sign)
			}
			err := model.AddRegulation(sketch.Regulation{
				Regulator:  sketch.VarID(input.Species),
				Target:     target,
				Sign:       sign,
				Observable: sketch.Essentiality(input.Essential),
			})
			if err != nil {
				return nil, err
			}
		}
		if tr.Function != "" {
			if err := model.SetUpdateFn(target, tr.Function); err != nil {
				return nil, err
			}
		}
	}
	for _, pos := range doc.Model.Positions {
		if err := model.SetPosition(sketch.VarID(pos.Species), sketch.LayoutPosition{X: pos.X, Y: pos.Y}); err != nil {
			return nil, err
		}
	}
	if err := deriveRegulationProperties(out); err != nil {
		return nil, err
	}
	return out, nil
}
