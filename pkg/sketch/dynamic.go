package sketch

// DynPropertyVariant tags the kind of a dynamic property.
type DynPropertyVariant string

// Dynamic property variants.
const (
	DynGeneric          DynPropertyVariant = "generic"
	DynExistsFixedPoint DynPropertyVariant = "exists_fixed_point"
	DynExistsTrapSpace  DynPropertyVariant = "exists_trap_space"
	DynExistsTrajectory DynPropertyVariant = "exists_trajectory"
	DynAttractorCount   DynPropertyVariant = "attractor_count"
	DynHasAttractor     DynPropertyVariant = "has_attractor"
)

// GenericDynProp carries a raw HCTL formula, its canonical form after
// wildcard substitution, and the resolved wildcards. The canonical form is
// what the engine evaluates; the raw form is what users see and what gets
// re-serialized.
type GenericDynProp struct {
	RawFormula       string                `json:"raw_formula"`
	ProcessedFormula string                `json:"processed_formula"`
	Wildcards        []WildcardProposition `json:"wildcards,omitempty"`
}

// ExistsFixedPointProp asserts existence of a fixed point matching an
// observation.
type ExistsFixedPointProp struct {
	Dataset     *DatasetID     `json:"dataset,omitempty"`
	Observation *ObservationID `json:"observation,omitempty"`
}

// ExistsTrapSpaceProp asserts existence of a trap space matching an
// observation, optionally required to be minimal or non-percolable.
type ExistsTrapSpaceProp struct {
	Dataset       *DatasetID     `json:"dataset,omitempty"`
	Observation   *ObservationID `json:"observation,omitempty"`
	Minimal       bool           `json:"minimal"`
	NonPercolable bool           `json:"nonpercolable"`
}

// ExistsTrajectoryProp asserts existence of a trajectory through the
// observations of a dataset, in order.
type ExistsTrajectoryProp struct {
	Dataset *DatasetID `json:"dataset,omitempty"`
}

// AttractorCountProp bounds the number of attractors, inclusive on both
// ends. Both bounds are positive and Minimal <= Maximal.
type AttractorCountProp struct {
	Minimal int `json:"minimal"`
	Maximal int `json:"maximal"`
}

// HasAttractorProp asserts existence of an attractor matching an
// observation, or any attractor when the references are empty.
type HasAttractorProp struct {
	Dataset     *DatasetID     `json:"dataset,omitempty"`
	Observation *ObservationID `json:"observation,omitempty"`
}

// DynProperty is one dynamic property: a name, a free-text annotation, and a
// tagged variant. The accessible fields of a property are exactly those
// implied by its variant tag; mutators on the wrong variant fail and leave
// the property unchanged.
type DynProperty struct {
	name           string
	annotation     string
	variant        DynPropertyVariant
	generic        *GenericDynProp
	fixedPoint     *ExistsFixedPointProp
	trapSpace      *ExistsTrapSpaceProp
	trajectory     *ExistsTrajectoryProp
	attractorCount *AttractorCountProp
	hasAttractor   *HasAttractorProp
}

func checkAttractorBounds(minimal, maximal int) error {
	if minimal > maximal {
		return validationf("minimal attractor count cannot be larger than maximal")
	}
	if minimal <= 0 || maximal <= 0 {
		return validationf("attractor count must be larger than 0")
	}
	return nil
}

// NewGenericDynProperty builds a generic dynamic property from a raw HCTL
// formula, canonicalizing its wildcard references.
func NewGenericDynProperty(name, rawFormula string) (DynProperty, error) {
	processed, wildcards, err := ProcessWildcards(rawFormula)
	if err != nil {
		return DynProperty{}, err
	}
	return DynProperty{
		name:    name,
		variant: DynGeneric,
		generic: &GenericDynProp{
			RawFormula:       rawFormula,
			ProcessedFormula: processed,
			Wildcards:        wildcards,
		},
	}, nil
}

// NewFixedPointProperty builds an exists-fixed-point property. Both
// references are optional and may be filled in later.
func NewFixedPointProperty(name string, dataset *DatasetID, observation *ObservationID) DynProperty {
	return DynProperty{
		name:       name,
		variant:    DynExistsFixedPoint,
		fixedPoint: &ExistsFixedPointProp{Dataset: dataset, Observation: observation},
	}
}

// NewTrapSpaceProperty builds an exists-trap-space property.
func NewTrapSpaceProperty(name string, dataset *DatasetID, observation *ObservationID, minimal, nonPercolable bool) DynProperty {
	return DynProperty{
		name:    name,
		variant: DynExistsTrapSpace,
		trapSpace: &ExistsTrapSpaceProp{
			Dataset:       dataset,
			Observation:   observation,
			Minimal:       minimal,
			NonPercolable: nonPercolable,
		},
	}
}

// NewTrajectoryProperty builds an exists-trajectory property.
func NewTrajectoryProperty(name string, dataset *DatasetID) DynProperty {
	return DynProperty{
		name:       name,
		variant:    DynExistsTrajectory,
		trajectory: &ExistsTrajectoryProp{Dataset: dataset},
	}
}

// NewAttractorCountProperty builds an attractor-count property. Construction
// fails when minimal > maximal or either bound is zero.
func NewAttractorCountProperty(name string, minimal, maximal int) (DynProperty, error) {
	if err := checkAttractorBounds(minimal, maximal); err != nil {
		return DynProperty{}, err
	}
	return DynProperty{
		name:           name,
		variant:        DynAttractorCount,
		attractorCount: &AttractorCountProp{Minimal: minimal, Maximal: maximal},
	}, nil
}

// NewHasAttractorProperty builds a has-attractor property.
func NewHasAttractorProperty(name string, dataset *DatasetID, observation *ObservationID) DynProperty {
	return DynProperty{
		name:         name,
		variant:      DynHasAttractor,
		hasAttractor: &HasAttractorProp{Dataset: dataset, Observation: observation},
	}
}

// DefaultDynProperty returns the default instance of the given variant, the
// one editors offer before the user fills in details.
func DefaultDynProperty(variant DynPropertyVariant) (DynProperty, error) {
	switch variant {
	case DynGeneric:
		return NewGenericDynProperty("Generic dynamic property", "true")
	case DynExistsFixedPoint:
		return NewFixedPointProperty("Fixed point existence", nil, nil), nil
	case DynExistsTrapSpace:
		return NewTrapSpaceProperty("Trap space existence", nil, nil, false, false), nil
	case DynExistsTrajectory:
		return NewTrajectoryProperty("Trajectory existence", nil), nil
	case DynAttractorCount:
		return NewAttractorCountProperty("Attractor count", 1, 1)
	case DynHasAttractor:
		return NewHasAttractorProperty("Attractor existence", nil, nil), nil
	}
	return DynProperty{}, validationf("unknown dynamic property variant %q", variant)
}

// Name returns the property's display name.
func (p *DynProperty) Name() string { return p.name }

// Annotation returns the property's free-text annotation.
func (p *DynProperty) Annotation() string { return p.annotation }

// Variant returns the property's variant tag.
func (p *DynProperty) Variant() DynPropertyVariant { return p.variant }

// SetName updates the display name.
func (p *DynProperty) SetName(name string) error {
	if name == "" {
		return validationf("property name must not be empty")
	}
	p.name = name
	return nil
}

// SetAnnotation replaces the annotation in place.
func (p *DynProperty) SetAnnotation(annotation string) { p.annotation = annotation }

// WithAnnotation returns a copy of the property with the annotation
// replaced. Annotation carries no semantic weight for inference.
func (p DynProperty) WithAnnotation(annotation string) DynProperty {
	out := p.copy()
	out.annotation = annotation
	return out
}

// SetDataset updates the dataset reference on variants that carry one.
func (p *DynProperty) SetDataset(id DatasetID) error {
	ref := &id
	switch p.variant {
	case DynExistsFixedPoint:
		p.fixedPoint.Dataset = ref
	case DynExistsTrapSpace:
		p.trapSpace.Dataset = ref
	case DynExistsTrajectory:
		p.trajectory.Dataset = ref
	case DynHasAttractor:
		p.hasAttractor.Dataset = ref
	default:
		return variantf("%s property has no dataset field", p.variant)
	}
	return nil
}

// SetObservation updates the observation reference on variants that carry one.
func (p *DynProperty) SetObservation(id ObservationID) error {
	ref := &id
	switch p.variant {
	case DynExistsFixedPoint:
		p.fixedPoint.Observation = ref
	case DynExistsTrapSpace:
		p.trapSpace.Observation = ref
	case DynHasAttractor:
		p.hasAttractor.Observation = ref
	default:
		return variantf("%s property has no observation field", p.variant)
	}
	return nil
}

// RemoveObservation clears the observation reference of a has-attractor
// property, widening it to any attractor.
func (p *DynProperty) RemoveObservation() error {
	if p.variant != DynHasAttractor {
		return variantf("%s property has no observation to remove", p.variant)
	}
	p.hasAttractor.Observation = nil
	return nil
}

// SetFormula replaces the formula of a generic property, reprocessing its
// wildcards. The property is unchanged when processing fails.
func (p *DynProperty) SetFormula(rawFormula string) error {
	if p.variant != DynGeneric {
		return variantf("%s property has no formula to update", p.variant)
	}
	processed, wildcards, err := ProcessWildcards(rawFormula)
	if err != nil {
		return err
	}
	p.generic.RawFormula = rawFormula
	p.generic.ProcessedFormula = processed
	p.generic.Wildcards = wildcards
	return nil
}

// SetAttractorCount updates the bounds of an attractor-count property,
// re-validating them.
func (p *DynProperty) SetAttractorCount(minimal, maximal int) error {
	if p.variant != DynAttractorCount {
		return variantf("%s property has no attractor count", p.variant)
	}
	if err := checkAttractorBounds(minimal, maximal); err != nil {
		return err
	}
	p.attractorCount.Minimal = minimal
	p.attractorCount.Maximal = maximal
	return nil
}

// SetTrapSpaceDetails updates the minimality flags of a trap-space property.
func (p *DynProperty) SetTrapSpaceDetails(minimal, nonPercolable bool) error {
	if p.variant != DynExistsTrapSpace {
		return variantf("%s property has no trap space details", p.variant)
	}
	p.trapSpace.Minimal = minimal
	p.trapSpace.NonPercolable = nonPercolable
	return nil
}

// Generic returns the payload of a generic property.
func (p *DynProperty) Generic() (GenericDynProp, error) {
	if p.variant != DynGeneric {
		return GenericDynProp{}, variantf("%s property is not generic", p.variant)
	}
	out := *p.generic
	out.Wildcards = copyWildcards(p.generic.Wildcards)
	return out, nil
}

// FixedPoint returns the payload of an exists-fixed-point property.
func (p *DynProperty) FixedPoint() (ExistsFixedPointProp, error) {
	if p.variant != DynExistsFixedPoint {
		return ExistsFixedPointProp{}, variantf("%s property is not exists-fixed-point", p.variant)
	}
	out := *p.fixedPoint
	out.Dataset = copyDatasetRef(out.Dataset)
	out.Observation = copyObservationRef(out.Observation)
	return out, nil
}

// TrapSpace returns the payload of an exists-trap-space property.
func (p *DynProperty) TrapSpace() (ExistsTrapSpaceProp, error) {
	if p.variant != DynExistsTrapSpace {
		return ExistsTrapSpaceProp{}, variantf("%s property is not exists-trap-space", p.variant)
	}
	out := *p.trapSpace
	out.Dataset = copyDatasetRef(out.Dataset)
	out.Observation = copyObservationRef(out.Observation)
	return out, nil
}

// Trajectory returns the payload of an exists-trajectory property.
func (p *DynProperty) Trajectory() (ExistsTrajectoryProp, error) {
	if p.variant != DynExistsTrajectory {
		return ExistsTrajectoryProp{}, variantf("%s property is not exists-trajectory", p.variant)
	}
	out := *p.trajectory
	out.Dataset = copyDatasetRef(out.Dataset)
	return out, nil
}

// AttractorCount returns the payload of an attractor-count property.
func (p *DynProperty) AttractorCount() (AttractorCountProp, error) {
	if p.variant != DynAttractorCount {
		return AttractorCountProp{}, variantf("%s property is not attractor-count", p.variant)
	}
	return *p.attractorCount, nil
}

// HasAttractor returns the payload of a has-attractor property.
func (p *DynProperty) HasAttractor() (HasAttractorProp, error) {
	if p.variant != DynHasAttractor {
		return HasAttractorProp{}, variantf("%s property is not has-attractor", p.variant)
	}
	out := *p.hasAttractor
	out.Dataset = copyDatasetRef(out.Dataset)
	out.Observation = copyObservationRef(out.Observation)
	return out, nil
}

func (p DynProperty) copy() DynProperty {
	out := p
	switch p.variant {
	case DynGeneric:
		g := *p.generic
		g.Wildcards = copyWildcards(p.generic.Wildcards)
		out.generic = &g
	case DynExistsFixedPoint:
		fp := *p.fixedPoint
		fp.Dataset = copyDatasetRef(fp.Dataset)
		fp.Observation = copyObservationRef(fp.Observation)
		out.fixedPoint = &fp
	case DynExistsTrapSpace:
		ts := *p.trapSpace
		ts.Dataset = copyDatasetRef(ts.Dataset)
		ts.Observation = copyObservationRef(ts.Observation)
		out.trapSpace = &ts
	case DynExistsTrajectory:
		tr := *p.trajectory
		tr.Dataset = copyDatasetRef(tr.Dataset)
		out.trajectory = &tr
	case DynAttractorCount:
		ac := *p.attractorCount
		out.attractorCount = &ac
	case DynHasAttractor:
		ha := *p.hasAttractor
		ha.Dataset = copyDatasetRef(ha.Dataset)
		ha.Observation = copyObservationRef(ha.Observation)
		out.hasAttractor = &ha
	}
	return out
}

func copyWildcards(in []WildcardProposition) []WildcardProposition {
	if in == nil {
		return nil
	}
	out := make([]WildcardProposition, len(in))
	for i, w := range in {
		out[i] = w.copy()
	}
	return out
}

func copyDatasetRef(in *DatasetID) *DatasetID {
	if in == nil {
		return nil
	}
	id := *in
	return &id
}

func copyObservationRef(in *ObservationID) *ObservationID {
	if in == nil {
		return nil
	}
	id := *in
	return &id
}
