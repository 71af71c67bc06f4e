package sketch

import "encoding/json"

// JSON wire form of a sketch. Collections are emitted in sorted ID order so
// the encoding is deterministic; decoding rebuilds the sketch through the
// regular mutating operations so every invariant is re-checked.

type sketchJSON struct {
	Annotation     string             `json:"annotation,omitempty"`
	Model          modelJSON          `json:"model"`
	Datasets       []datasetJSON      `json:"datasets"`
	DynProperties  []dynPropertyJSON  `json:"dyn_properties"`
	StatProperties []statPropertyJSON `json:"stat_properties"`
}

type modelJSON struct {
	Variables   []Variable     `json:"variables"`
	Regulations []Regulation   `json:"regulations"`
	Positions   []positionJSON `json:"positions,omitempty"`
}

type positionJSON struct {
	ID VarID   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type datasetJSON struct {
	ID           DatasetID         `json:"id"`
	Variables    []VarID           `json:"variables"`
	Observations []observationJSON `json:"observations"`
}

type observationJSON struct {
	ID     ObservationID `json:"id"`
	Name   string        `json:"name,omitempty"`
	Values string        `json:"values"`
}

type dynPropertyJSON struct {
	ID             DynPropertyID         `json:"id"`
	Name           string                `json:"name"`
	Annotation     string                `json:"annotation,omitempty"`
	Variant        DynPropertyVariant    `json:"variant"`
	Generic        *GenericDynProp       `json:"generic,omitempty"`
	FixedPoint     *ExistsFixedPointProp `json:"exists_fixed_point,omitempty"`
	TrapSpace      *ExistsTrapSpaceProp  `json:"exists_trap_space,omitempty"`
	Trajectory     *ExistsTrajectoryProp `json:"exists_trajectory,omitempty"`
	AttractorCount *AttractorCountProp   `json:"attractor_count,omitempty"`
	HasAttractor   *HasAttractorProp     `json:"has_attractor,omitempty"`
}

type statPropertyJSON struct {
	ID           StatPropertyID           `json:"id"`
	Name         string                   `json:"name"`
	Annotation   string                   `json:"annotation,omitempty"`
	Variant      StatPropertyVariant      `json:"variant"`
	Generic      *GenericStatProp         `json:"generic,omitempty"`
	RegEssential *RegulationEssentialProp `json:"regulation_essential,omitempty"`
	RegMonotonic *RegulationMonotonicProp `json:"regulation_monotonic,omitempty"`
	FnEssential  *FnInputEssentialProp    `json:"fn_input_essential,omitempty"`
	FnMonotonic  *FnInputMonotonicProp    `json:"fn_input_monotonic,omitempty"`
}

// MarshalJSON encodes the sketch deterministically.
func (s *Sketch) MarshalJSON() ([]byte, error) {
	dto := sketchJSON{
		Annotation: s.annotation,
		Model: modelJSON{
			Variables:   s.model.Variables(),
			Regulations: s.model.Regulations(),
		},
		Datasets:       []datasetJSON{},
		DynProperties:  []dynPropertyJSON{},
		StatProperties: []statPropertyJSON{},
	}
	for _, id := range s.model.VariableIDs() {
		if pos, ok := s.model.Position(id); ok {
			dto.Model.Positions = append(dto.Model.Positions, positionJSON{ID: id, X: pos.X, Y: pos.Y})
		}
	}
	for _, id := range s.DatasetIDs() {
		dto.Datasets = append(dto.Datasets, encodeDataset(id, s.datasets[id]))
	}
	for _, id := range s.properties.DynamicIDs() {
		prop := s.properties.dynamic[id]
		dto.DynProperties = append(dto.DynProperties, encodeDynProperty(id, prop))
	}
	for _, id := range s.properties.StaticIDs() {
		prop := s.properties.static[id]
		dto.StatProperties = append(dto.StatProperties, encodeStatProperty(id, prop))
	}
	return json.Marshal(dto)
}

// UnmarshalJSON decodes a sketch, replaying every element through the
// mutating API. The receiver is only replaced when the whole document is
// valid.
func (s *Sketch) UnmarshalJSON(data []byte) error {
	var dto sketchJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	out := NewSketch()
	out.annotation = dto.Annotation
	for _, v := range dto.Model.Variables {
		if err := out.model.AddVariable(v.ID, v.Name); err != nil {
			return err
		}
		if v.UpdateFn != "" {
			if err := out.model.SetUpdateFn(v.ID, v.UpdateFn); err != nil {
				return err
			}
		}
	}
	for _, reg := range dto.Model.Regulations {
		if err := out.model.AddRegulation(reg); err != nil {
			return err
		}
	}
	for _, pos := range dto.Model.Positions {
		if err := out.model.SetPosition(pos.ID, LayoutPosition{X: pos.X, Y: pos.Y}); err != nil {
			return err
		}
	}
	for _, dj := range dto.Datasets {
		if err := checkIdentifier(string(dj.ID)); err != nil {
			return err
		}
		ds, err := decodeDataset(dj)
		if err != nil {
			return err
		}
		if err := out.AddDataset(dj.ID, ds); err != nil {
			return err
		}
	}
	for _, pj := range dto.DynProperties {
		if err := checkIdentifier(string(pj.ID)); err != nil {
			return err
		}
		prop, err := decodeDynProperty(pj)
		if err != nil {
			return err
		}
		if err := out.properties.AddDynamic(pj.ID, prop); err != nil {
			return err
		}
	}
	for _, pj := range dto.StatProperties {
		if err := checkIdentifier(string(pj.ID)); err != nil {
			return err
		}
		prop, err := decodeStatProperty(pj)
		if err != nil {
			return err
		}
		if err := out.properties.AddStatic(pj.ID, prop); err != nil {
			return err
		}
	}
	*s = *out
	return nil
}

func encodeDataset(id DatasetID, ds *Dataset) datasetJSON {
	dj := datasetJSON{ID: id, Variables: ds.Variables(), Observations: []observationJSON{}}
	for _, obs := range ds.Observations() {
		dj.Observations = append(dj.Observations, observationJSON{
			ID:     obs.ID,
			Name:   obs.Name,
			Values: obs.ValuesString(),
		})
	}
	return dj
}

func decodeDataset(dj datasetJSON) (*Dataset, error) {
	ds, err := NewDataset(dj.Variables)
	if err != nil {
		return nil, err
	}
	for _, oj := range dj.Observations {
		if err := checkIdentifier(string(oj.ID)); err != nil {
			return nil, err
		}
		values, err := ParseObsValues(oj.Values)
		if err != nil {
			return nil, err
		}
		if err := ds.AddObservation(Observation{ID: oj.ID, Name: oj.Name, Values: values}); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func encodeDynProperty(id DynPropertyID, prop DynProperty) dynPropertyJSON {
	out := dynPropertyJSON{
		ID:         id,
		Name:       prop.Name(),
		Annotation: prop.Annotation(),
		Variant:    prop.Variant(),
	}
	switch prop.Variant() {
	case DynGeneric:
		payload, _ := prop.Generic()
		out.Generic = &payload
	case DynExistsFixedPoint:
		payload, _ := prop.FixedPoint()
		out.FixedPoint = &payload
	case DynExistsTrapSpace:
		payload, _ := prop.TrapSpace()
		out.TrapSpace = &payload
	case DynExistsTrajectory:
		payload, _ := prop.Trajectory()
		out.Trajectory = &payload
	case DynAttractorCount:
		payload, _ := prop.AttractorCount()
		out.AttractorCount = &payload
	case DynHasAttractor:
		payload, _ := prop.HasAttractor()
		out.HasAttractor = &payload
	}
	return out
}

func decodeDynProperty(dj dynPropertyJSON) (DynProperty, error) {
	var prop DynProperty
	var err error
	switch dj.Variant {
	case DynGeneric:
		if dj.Generic == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		prop, err = NewGenericDynProperty(dj.Name, dj.Generic.RawFormula)
		if err != nil {
			return DynProperty{}, err
		}
	case DynExistsFixedPoint:
		if dj.FixedPoint == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		if err := checkDatasetRef(dj.FixedPoint.Dataset); err != nil {
			return DynProperty{}, err
		}
		if err := checkObservationRef(dj.FixedPoint.Observation); err != nil {
			return DynProperty{}, err
		}
		prop = NewFixedPointProperty(dj.Name, dj.FixedPoint.Dataset, dj.FixedPoint.Observation)
	case DynExistsTrapSpace:
		if dj.TrapSpace == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		if err := checkDatasetRef(dj.TrapSpace.Dataset); err != nil {
			return DynProperty{}, err
		}
		if err := checkObservationRef(dj.TrapSpace.Observation); err != nil {
			return DynProperty{}, err
		}
		prop = NewTrapSpaceProperty(dj.Name, dj.TrapSpace.Dataset, dj.TrapSpace.Observation, dj.TrapSpace.Minimal, dj.TrapSpace.NonPercolable)
	case DynExistsTrajectory:
		if dj.Trajectory == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		if err := checkDatasetRef(dj.Trajectory.Dataset); err != nil {
			return DynProperty{}, err
		}
		prop = NewTrajectoryProperty(dj.Name, dj.Trajectory.Dataset)
	case DynAttractorCount:
		if dj.AttractorCount == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		prop, err = NewAttractorCountProperty(dj.Name, dj.AttractorCount.Minimal, dj.AttractorCount.Maximal)
		if err != nil {
			return DynProperty{}, err
		}
	case DynHasAttractor:
		if dj.HasAttractor == nil {
			return DynProperty{}, missingPayload(string(dj.ID), string(dj.Variant))
		}
		if err := checkDatasetRef(dj.HasAttractor.Dataset); err != nil {
			return DynProperty{}, err
		}
		if err := checkObservationRef(dj.HasAttractor.Observation); err != nil {
			return DynProperty{}, err
		}
		prop = NewHasAttractorProperty(dj.Name, dj.HasAttractor.Dataset, dj.HasAttractor.Observation)
	default:
		return DynProperty{}, validationf("unknown dynamic property variant %q", dj.Variant)
	}
	prop.SetAnnotation(dj.Annotation)
	return prop, nil
}

func encodeStatProperty(id StatPropertyID, prop StatProperty) statPropertyJSON {
	out := statPropertyJSON{
		ID:         id,
		Name:       prop.Name(),
		Annotation: prop.Annotation(),
		Variant:    prop.Variant(),
	}
	switch prop.Variant() {
	case StatGeneric:
		payload, _ := prop.Generic()
		out.Generic = &payload
	case StatRegulationEssential, StatRegulationEssentialContext:
		payload, _ := prop.RegulationEssential()
		out.RegEssential = &payload
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		payload, _ := prop.RegulationMonotonic()
		out.RegMonotonic = &payload
	case StatFnInputEssential, StatFnInputEssentialContext:
		payload, _ := prop.FnInputEssential()
		out.FnEssential = &payload
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		payload, _ := prop.FnInputMonotonic()
		out.FnMonotonic = &payload
	}
	return out
}

func decodeStatProperty(pj statPropertyJSON) (StatProperty, error) {
	var prop StatProperty
	var err error
	switch pj.Variant {
	case StatGeneric:
		if pj.Generic == nil {
			return StatProperty{}, missingPayload(string(pj.ID), string(pj.Variant))
		}
		prop, err = NewGenericStatProperty(pj.Name, pj.Generic.RawFormula)
		if err != nil {
			return StatProperty{}, err
		}
	case StatRegulationEssential, StatRegulationEssentialContext:
		p := pj.RegEssential
		if p == nil {
			return StatProperty{}, missingPayload(string(pj.ID), string(pj.Variant))
		}
		if err := checkRegulationRefs(p.Input, p.Target); err != nil {
			return StatProperty{}, err
		}
		if !p.Value.Valid() {
			return StatProperty{}, validationf("invalid essentiality %q", p.Value)
		}
		if pj.Variant == StatRegulationEssentialContext {
			if p.Context == nil {
				return StatProperty{}, validationf("static property %q is missing its context", pj.ID)
			}
			prop = NewRegulationEssentialContextProperty(pj.Name, p.Input, p.Target, p.Value, *p.Context)
		} else {
			prop = NewRegulationEssentialProperty(pj.Name, p.Input, p.Target, p.Value)
		}
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		p := pj.RegMonotonic
		if p == nil {
			return StatProperty{}, missingPayload(string(pj.ID), string(pj.Variant))
		}
		if err := checkRegulationRefs(p.Input, p.Target); err != nil {
			return StatProperty{}, err
		}
		if !p.Value.Valid() {
			return StatProperty{}, validationf("invalid monotonicity %q", p.Value)
		}
		if pj.Variant == StatRegulationMonotonicContext {
			if p.Context == nil {
				return StatProperty{}, validationf("static property %q is missing its context", pj.ID)
			}
			prop = NewRegulationMonotonicContextProperty(pj.Name, p.Input, p.Target, p.Value, *p.Context)
		} else {
			prop = NewRegulationMonotonicProperty(pj.Name, p.Input, p.Target, p.Value)
		}
	case StatFnInputEssential, StatFnInputEssentialContext:
		p := pj.FnEssential
		if p == nil {
			return StatProperty{}, missingPayload(string(pj.ID), string(pj.Variant))
		}
		if err := checkFnInputRefs(p.InputIndex, p.Target); err != nil {
			return StatProperty{}, err
		}
		if !p.Value.Valid() {
			return StatProperty{}, validationf("invalid essentiality %q", p.Value)
		}
		if pj.Variant == StatFnInputEssentialContext {
			if p.Context == nil {
				return StatProperty{}, validationf("static property %q is missing its context", pj.ID)
			}
			prop = NewFnInputEssentialContextProperty(pj.Name, p.InputIndex, p.Target, p.Value, *p.Context)
		} else {
			prop = NewFnInputEssentialProperty(pj.Name, p.InputIndex, p.Target, p.Value)
		}
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		p := pj.FnMonotonic
		if p == nil {
			return StatProperty{}, missingPayload(string(pj.ID), string(pj.Variant))
		}
		if err := checkFnInputRefs(p.InputIndex, p.Target); err != nil {
			return StatProperty{}, err
		}
		if !p.Value.Valid() {
			return StatProperty{}, validationf("invalid monotonicity %q", p.Value)
		}
		if pj.Variant == StatFnInputMonotonicContext {
			if p.Context == nil {
				return StatProperty{}, validationf("static property %q is missing its context", pj.ID)
			}
			prop = NewFnInputMonotonicContextProperty(pj.Name, p.InputIndex, p.Target, p.Value, *p.Context)
		} else {
			prop = NewFnInputMonotonicProperty(pj.Name, p.InputIndex, p.Target, p.Value)
		}
	default:
		return StatProperty{}, validationf("unknown static property variant %q", pj.Variant)
	}
	prop.SetAnnotation(pj.Annotation)
	return prop, nil
}

// Single-entity wire forms. The annotated model format embeds one JSON
// payload per entity block, so datasets and properties are also encodable
// standalone.

// MarshalDataset encodes one dataset with its id.
func MarshalDataset(id DatasetID, ds *Dataset) ([]byte, error) {
	return json.Marshal(encodeDataset(id, ds))
}

// UnmarshalDataset decodes a standalone dataset payload, replaying the
// observations through the mutating API.
func UnmarshalDataset(data []byte) (DatasetID, *Dataset, error) {
	var dj datasetJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return "", nil, err
	}
	if err := checkIdentifier(string(dj.ID)); err != nil {
		return "", nil, err
	}
	ds, err := decodeDataset(dj)
	if err != nil {
		return "", nil, err
	}
	return dj.ID, ds, nil
}

// MarshalDynProperty encodes one dynamic property with its id.
func MarshalDynProperty(id DynPropertyID, prop DynProperty) ([]byte, error) {
	return json.Marshal(encodeDynProperty(id, prop))
}

// UnmarshalDynProperty decodes a standalone dynamic property payload.
func UnmarshalDynProperty(data []byte) (DynPropertyID, DynProperty, error) {
	var dj dynPropertyJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return "", DynProperty{}, err
	}
	if err := checkIdentifier(string(dj.ID)); err != nil {
		return "", DynProperty{}, err
	}
	prop, err := decodeDynProperty(dj)
	if err != nil {
		return "", DynProperty{}, err
	}
	return dj.ID, prop, nil
}

// MarshalStatProperty encodes one static property with its id.
func MarshalStatProperty(id StatPropertyID, prop StatProperty) ([]byte, error) {
	return json.Marshal(encodeStatProperty(id, prop))
}

// UnmarshalStatProperty decodes a standalone static property payload.
func UnmarshalStatProperty(data []byte) (StatPropertyID, StatProperty, error) {
	var pj statPropertyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return "", StatProperty{}, err
	}
	if err := checkIdentifier(string(pj.ID)); err != nil {
		return "", StatProperty{}, err
	}
	prop, err := decodeStatProperty(pj)
	if err != nil {
		return "", StatProperty{}, err
	}
	return pj.ID, prop, nil
}

func missingPayload(id, variant string) error {
	return validationf("property %q is missing its %s payload", id, variant)
}

func checkDatasetRef(id *DatasetID) error {
	if id == nil {
		return nil
	}
	return checkIdentifier(string(*id))
}

func checkObservationRef(id *ObservationID) error {
	if id == nil {
		return nil
	}
	return checkIdentifier(string(*id))
}

func checkRegulationRefs(input, target *VarID) error {
	if input != nil {
		if err := checkIdentifier(string(*input)); err != nil {
			return err
		}
	}
	if target != nil {
		if err := checkIdentifier(string(*target)); err != nil {
			return err
		}
	}
	return nil
}

func checkFnInputRefs(index *int, target *VarID) error {
	if index != nil && *index < 0 {
		return validationf("input index must not be negative")
	}
	if target != nil {
		return checkIdentifier(string(*target))
	}
	return nil
}
