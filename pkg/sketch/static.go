package sketch

import "fmt"

// StatPropertyVariant tags the kind of a static property.
type StatPropertyVariant string

// Static property variants. Context variants carry an additional
// sub-space restriction formula.
const (
	StatGeneric                    StatPropertyVariant = "generic"
	StatRegulationEssential        StatPropertyVariant = "regulation_essential"
	StatRegulationEssentialContext StatPropertyVariant = "regulation_essential_context"
	StatRegulationMonotonic        StatPropertyVariant = "regulation_monotonic"
	StatRegulationMonotonicContext StatPropertyVariant = "regulation_monotonic_context"
	StatFnInputEssential           StatPropertyVariant = "fn_input_essential"
	StatFnInputEssentialContext    StatPropertyVariant = "fn_input_essential_context"
	StatFnInputMonotonic           StatPropertyVariant = "fn_input_monotonic"
	StatFnInputMonotonicContext    StatPropertyVariant = "fn_input_monotonic_context"
)

// GenericStatProp carries a raw first-order formula, its canonical form
// after wildcard substitution, and the resolved wildcards.
type GenericStatProp struct {
	RawFormula       string                `json:"raw_formula"`
	ProcessedFormula string                `json:"processed_formula"`
	Wildcards        []WildcardProposition `json:"wildcards,omitempty"`
}

// RegulationEssentialProp constrains the essentiality of a regulation
// between two variables. Context is only meaningful on the context variant.
type RegulationEssentialProp struct {
	Input   *VarID       `json:"input,omitempty"`
	Target  *VarID       `json:"target,omitempty"`
	Value   Essentiality `json:"value"`
	Context *string      `json:"context,omitempty"`
}

// RegulationMonotonicProp constrains the monotonicity of a regulation
// between two variables.
type RegulationMonotonicProp struct {
	Input   *VarID       `json:"input,omitempty"`
	Target  *VarID       `json:"target,omitempty"`
	Value   Monotonicity `json:"value"`
	Context *string      `json:"context,omitempty"`
}

// FnInputEssentialProp constrains the essentiality of the update function
// input at a given position in the target's regulator list.
type FnInputEssentialProp struct {
	InputIndex *int         `json:"input_index,omitempty"`
	Target     *VarID       `json:"target,omitempty"`
	Value      Essentiality `json:"value"`
	Context    *string      `json:"context,omitempty"`
}

// FnInputMonotonicProp constrains the monotonicity of the update function
// input at a given position in the target's regulator list.
type FnInputMonotonicProp struct {
	InputIndex *int         `json:"input_index,omitempty"`
	Target     *VarID       `json:"target,omitempty"`
	Value      Monotonicity `json:"value"`
	Context    *string      `json:"context,omitempty"`
}

// StatProperty is one static property: a name, a free-text annotation, and
// a tagged variant. Mutators on the wrong variant fail and leave the
// property unchanged.
type StatProperty struct {
	name         string
	annotation   string
	variant      StatPropertyVariant
	generic      *GenericStatProp
	regEssential *RegulationEssentialProp
	regMonotonic *RegulationMonotonicProp
	fnEssential  *FnInputEssentialProp
	fnMonotonic  *FnInputMonotonicProp
}

// NewGenericStatProperty builds a generic static property from a raw
// first-order formula, canonicalizing its wildcard references.
func NewGenericStatProperty(name, rawFormula string) (StatProperty, error) {
	processed, wildcards, err := ProcessWildcards(rawFormula)
	if err != nil {
		return StatProperty{}, err
	}
	return StatProperty{
		name:    name,
		variant: StatGeneric,
		generic: &GenericStatProp{
			RawFormula:       rawFormula,
			ProcessedFormula: processed,
			Wildcards:        wildcards,
		},
	}, nil
}

// NewRegulationEssentialProperty builds a regulation essentiality property.
// Both references are optional and may be filled in later.
func NewRegulationEssentialProperty(name string, input, target *VarID, value Essentiality) StatProperty {
	return StatProperty{
		name:         name,
		variant:      StatRegulationEssential,
		regEssential: &RegulationEssentialProp{Input: input, Target: target, Value: value},
	}
}

// NewRegulationEssentialContextProperty builds a regulation essentiality
// property scoped to a context formula.
func NewRegulationEssentialContextProperty(name string, input, target *VarID, value Essentiality, context string) StatProperty {
	return StatProperty{
		name:         name,
		variant:      StatRegulationEssentialContext,
		regEssential: &RegulationEssentialProp{Input: input, Target: target, Value: value, Context: &context},
	}
}

// NewRegulationMonotonicProperty builds a regulation monotonicity property.
func NewRegulationMonotonicProperty(name string, input, target *VarID, value Monotonicity) StatProperty {
	return StatProperty{
		name:         name,
		variant:      StatRegulationMonotonic,
		regMonotonic: &RegulationMonotonicProp{Input: input, Target: target, Value: value},
	}
}

// NewRegulationMonotonicContextProperty builds a regulation monotonicity
// property scoped to a context formula.
func NewRegulationMonotonicContextProperty(name string, input, target *VarID, value Monotonicity, context string) StatProperty {
	return StatProperty{
		name:         name,
		variant:      StatRegulationMonotonicContext,
		regMonotonic: &RegulationMonotonicProp{Input: input, Target: target, Value: value, Context: &context},
	}
}

// NewFnInputEssentialProperty builds a function input essentiality property.
func NewFnInputEssentialProperty(name string, inputIndex *int, target *VarID, value Essentiality) StatProperty {
	return StatProperty{
		name:        name,
		variant:     StatFnInputEssential,
		fnEssential: &FnInputEssentialProp{InputIndex: inputIndex, Target: target, Value: value},
	}
}

// NewFnInputEssentialContextProperty builds a function input essentiality
// property scoped to a context formula.
func NewFnInputEssentialContextProperty(name string, inputIndex *int, target *VarID, value Essentiality, context string) StatProperty {
	return StatProperty{
		name:        name,
		variant:     StatFnInputEssentialContext,
		fnEssential: &FnInputEssentialProp{InputIndex: inputIndex, Target: target, Value: value, Context: &context},
	}
}

// NewFnInputMonotonicProperty builds a function input monotonicity property.
func NewFnInputMonotonicProperty(name string, inputIndex *int, target *VarID, value Monotonicity) StatProperty {
	return StatProperty{
		name:        name,
		variant:     StatFnInputMonotonic,
		fnMonotonic: &FnInputMonotonicProp{InputIndex: inputIndex, Target: target, Value: value},
	}
}

// NewFnInputMonotonicContextProperty builds a function input monotonicity
// property scoped to a context formula.
func NewFnInputMonotonicContextProperty(name string, inputIndex *int, target *VarID, value Monotonicity, context string) StatProperty {
	return StatProperty{
		name:        name,
		variant:     StatFnInputMonotonicContext,
		fnMonotonic: &FnInputMonotonicProp{InputIndex: inputIndex, Target: target, Value: value, Context: &context},
	}
}

// DefaultStatProperty returns the default instance of the given variant.
func DefaultStatProperty(variant StatPropertyVariant) (StatProperty, error) {
	switch variant {
	case StatGeneric:
		return NewGenericStatProperty("New generic static property", "true")
	case StatRegulationEssential:
		return NewRegulationEssentialProperty("Regulation essentiality (generated)", nil, nil, EssentialityUnknown), nil
	case StatRegulationEssentialContext:
		return NewRegulationEssentialContextProperty("New regulation essentiality property", nil, nil, EssentialityUnknown, "true"), nil
	case StatRegulationMonotonic:
		return NewRegulationMonotonicProperty("Regulation monotonicity (generated)", nil, nil, MonotonicityUnknown), nil
	case StatRegulationMonotonicContext:
		return NewRegulationMonotonicContextProperty("New regulation monotonicity property", nil, nil, MonotonicityUnknown, "true"), nil
	case StatFnInputEssential:
		return NewFnInputEssentialProperty("Fn input essentiality (generated)", nil, nil, EssentialityUnknown), nil
	case StatFnInputEssentialContext:
		return NewFnInputEssentialContextProperty("New fn input essentiality property", nil, nil, EssentialityUnknown, "true"), nil
	case StatFnInputMonotonic:
		return NewFnInputMonotonicProperty("Fn input monotonicity (generated)", nil, nil, MonotonicityUnknown), nil
	case StatFnInputMonotonicContext:
		return NewFnInputMonotonicContextProperty("New fn input monotonicity property", nil, nil, MonotonicityUnknown, "true"), nil
	}
	return StatProperty{}, validationf("unknown static property variant %q", variant)
}

// AutoMonotonicityProperty builds the automatically generated monotonicity
// property for a regulation, under its deterministic ID.
func AutoMonotonicityProperty(regulator, target VarID, value Monotonicity) (StatPropertyID, StatProperty) {
	id := StatPropertyID(fmt.Sprintf("monotonicity_%s_%s", regulator, target))
	return id, NewRegulationMonotonicProperty("Regulation monotonicity property", &regulator, &target, value)
}

// AutoEssentialityProperty builds the automatically generated essentiality
// property for a regulation, under its deterministic ID.
func AutoEssentialityProperty(regulator, target VarID, value Essentiality) (StatPropertyID, StatProperty) {
	id := StatPropertyID(fmt.Sprintf("essentiality_%s_%s", regulator, target))
	return id, NewRegulationEssentialProperty("Regulation essentiality property", &regulator, &target, value)
}

// Name returns the property's display name.
func (p *StatProperty) Name() string { return p.name }

// Annotation returns the property's free-text annotation.
func (p *StatProperty) Annotation() string { return p.annotation }

// Variant returns the property's variant tag.
func (p *StatProperty) Variant() StatPropertyVariant { return p.variant }

// SetName updates the display name.
func (p *StatProperty) SetName(name string) error {
	if name == "" {
		return validationf("property name must not be empty")
	}
	p.name = name
	return nil
}

// SetAnnotation replaces the annotation in place.
func (p *StatProperty) SetAnnotation(annotation string) { p.annotation = annotation }

// WithAnnotation returns a copy of the property with the annotation replaced.
func (p StatProperty) WithAnnotation(annotation string) StatProperty {
	out := p.copy()
	out.annotation = annotation
	return out
}

// SetInputVar updates the regulator reference on regulation variants.
func (p *StatProperty) SetInputVar(id VarID) error {
	ref := &id
	switch p.variant {
	case StatRegulationEssential, StatRegulationEssentialContext:
		p.regEssential.Input = ref
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		p.regMonotonic.Input = ref
	default:
		return variantf("%s property has no input variable field", p.variant)
	}
	return nil
}

// SetInputIndex updates the input position on function input variants.
func (p *StatProperty) SetInputIndex(index int) error {
	if index < 0 {
		return validationf("input index must not be negative")
	}
	ref := &index
	switch p.variant {
	case StatFnInputEssential, StatFnInputEssentialContext:
		p.fnEssential.InputIndex = ref
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		p.fnMonotonic.InputIndex = ref
	default:
		return variantf("%s property has no input index field", p.variant)
	}
	return nil
}

// SetTargetVar updates the target reference on regulation variants.
func (p *StatProperty) SetTargetVar(id VarID) error {
	ref := &id
	switch p.variant {
	case StatRegulationEssential, StatRegulationEssentialContext:
		p.regEssential.Target = ref
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		p.regMonotonic.Target = ref
	default:
		return variantf("%s property has no target variable field", p.variant)
	}
	return nil
}

// SetTargetFn updates the target reference on function input variants. The
// target names the variable whose update function the property constrains.
func (p *StatProperty) SetTargetFn(id VarID) error {
	ref := &id
	switch p.variant {
	case StatFnInputEssential, StatFnInputEssentialContext:
		p.fnEssential.Target = ref
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		p.fnMonotonic.Target = ref
	default:
		return variantf("%s property has no target function field", p.variant)
	}
	return nil
}

// SetMonotonicity updates the constrained value on monotonicity variants.
func (p *StatProperty) SetMonotonicity(value Monotonicity) error {
	if !value.Valid() {
		return validationf("invalid monotonicity %q", value)
	}
	switch p.variant {
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		p.regMonotonic.Value = value
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		p.fnMonotonic.Value = value
	default:
		return variantf("%s property has no monotonicity field", p.variant)
	}
	return nil
}

// SetEssentiality updates the constrained value on essentiality variants.
func (p *StatProperty) SetEssentiality(value Essentiality) error {
	if !value.Valid() {
		return validationf("invalid essentiality %q", value)
	}
	switch p.variant {
	case StatRegulationEssential, StatRegulationEssentialContext:
		p.regEssential.Value = value
	case StatFnInputEssential, StatFnInputEssentialContext:
		p.fnEssential.Value = value
	default:
		return variantf("%s property has no essentiality field", p.variant)
	}
	return nil
}

// SetContext updates the restriction formula on context variants.
func (p *StatProperty) SetContext(context string) error {
	ref := &context
	switch p.variant {
	case StatRegulationEssentialContext:
		p.regEssential.Context = ref
	case StatRegulationMonotonicContext:
		p.regMonotonic.Context = ref
	case StatFnInputEssentialContext:
		p.fnEssential.Context = ref
	case StatFnInputMonotonicContext:
		p.fnMonotonic.Context = ref
	default:
		return variantf("%s property has no context field", p.variant)
	}
	return nil
}

// SetFormula replaces the formula of a generic property, reprocessing its
// wildcards. The property is unchanged when processing fails.
func (p *StatProperty) SetFormula(rawFormula string) error {
	if p.variant != StatGeneric {
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

// Generic returns the payload of a generic property.
func (p *StatProperty) Generic() (GenericStatProp, error) {
	if p.variant != StatGeneric {
		return GenericStatProp{}, variantf("%s property is not generic", p.variant)
	}
	out := *p.generic
	out.Wildcards = copyWildcards(p.generic.Wildcards)
	return out, nil
}

// RegulationEssential returns the payload of a regulation essentiality
// property, plain or context variant.
func (p *StatProperty) RegulationEssential() (RegulationEssentialProp, error) {
	switch p.variant {
	case StatRegulationEssential, StatRegulationEssentialContext:
		out := *p.regEssential
		out.Input = copyVarRef(out.Input)
		out.Target = copyVarRef(out.Target)
		out.Context = copyStringRef(out.Context)
		return out, nil
	}
	return RegulationEssentialProp{}, variantf("%s property is not regulation-essential", p.variant)
}

// RegulationMonotonic returns the payload of a regulation monotonicity
// property, plain or context variant.
func (p *StatProperty) RegulationMonotonic() (RegulationMonotonicProp, error) {
	switch p.variant {
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		out := *p.regMonotonic
		out.Input = copyVarRef(out.Input)
		out.Target = copyVarRef(out.Target)
		out.Context = copyStringRef(out.Context)
		return out, nil
	}
	return RegulationMonotonicProp{}, variantf("%s property is not regulation-monotonic", p.variant)
}

// FnInputEssential returns the payload of a function input essentiality
// property, plain or context variant.
func (p *StatProperty) FnInputEssential() (FnInputEssentialProp, error) {
	switch p.variant {
	case StatFnInputEssential, StatFnInputEssentialContext:
		out := *p.fnEssential
		out.InputIndex = copyIntRef(out.InputIndex)
		out.Target = copyVarRef(out.Target)
		out.Context = copyStringRef(out.Context)
		return out, nil
	}
	return FnInputEssentialProp{}, variantf("%s property is not fn-input-essential", p.variant)
}

// FnInputMonotonic returns the payload of a function input monotonicity
// property, plain or context variant.
func (p *StatProperty) FnInputMonotonic() (FnInputMonotonicProp, error) {
	switch p.variant {
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		out := *p.fnMonotonic
		out.InputIndex = copyIntRef(out.InputIndex)
		out.Target = copyVarRef(out.Target)
		out.Context = copyStringRef(out.Context)
		return out, nil
	}
	return FnInputMonotonicProp{}, variantf("%s property is not fn-input-monotonic", p.variant)
}

// RegulatorAndTarget returns the regulator and target references of any
// regulation variant.
func (p *StatProperty) RegulatorAndTarget() (input, target *VarID, err error) {
	switch p.variant {
	case StatRegulationEssential, StatRegulationEssentialContext:
		return copyVarRef(p.regEssential.Input), copyVarRef(p.regEssential.Target), nil
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		return copyVarRef(p.regMonotonic.Input), copyVarRef(p.regMonotonic.Target), nil
	}
	return nil, nil, variantf("%s property has no regulator and target fields", p.variant)
}

// FunctionAndIndex returns the target function and input position references
// of any function input variant.
func (p *StatProperty) FunctionAndIndex() (target *VarID, index *int, err error) {
	switch p.variant {
	case StatFnInputEssential, StatFnInputEssentialContext:
		return copyVarRef(p.fnEssential.Target), copyIntRef(p.fnEssential.InputIndex), nil
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		return copyVarRef(p.fnMonotonic.Target), copyIntRef(p.fnMonotonic.InputIndex), nil
	}
	return nil, nil, variantf("%s property has no function and index fields", p.variant)
}

// AssertFilled fails when a reference field required for template
// compilation is still unset.
func (p *StatProperty) AssertFilled() error {
	switch p.variant {
	case StatGeneric:
	case StatRegulationEssential, StatRegulationEssentialContext:
		if p.regEssential.Input == nil || p.regEssential.Target == nil {
			return validationf("property %q has an unfilled required field", p.name)
		}
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		if p.regMonotonic.Input == nil || p.regMonotonic.Target == nil {
			return validationf("property %q has an unfilled required field", p.name)
		}
	case StatFnInputEssential, StatFnInputEssentialContext:
		if p.fnEssential.InputIndex == nil || p.fnEssential.Target == nil {
			return validationf("property %q has an unfilled required field", p.name)
		}
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		if p.fnMonotonic.InputIndex == nil || p.fnMonotonic.Target == nil {
			return validationf("property %q has an unfilled required field", p.name)
		}
	}
	return nil
}

func (p StatProperty) copy() StatProperty {
	out := p
	switch p.variant {
	case StatGeneric:
		g := *p.generic
		g.Wildcards = copyWildcards(p.generic.Wildcards)
		out.generic = &g
	case StatRegulationEssential, StatRegulationEssentialContext:
		re := *p.regEssential
		re.Input = copyVarRef(re.Input)
		re.Target = copyVarRef(re.Target)
		re.Context = copyStringRef(re.Context)
		out.regEssential = &re
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		rm := *p.regMonotonic
		rm.Input = copyVarRef(rm.Input)
		rm.Target = copyVarRef(rm.Target)
		rm.Context = copyStringRef(rm.Context)
		out.regMonotonic = &rm
	case StatFnInputEssential, StatFnInputEssentialContext:
		fe := *p.fnEssential
		fe.InputIndex = copyIntRef(fe.InputIndex)
		fe.Target = copyVarRef(fe.Target)
		fe.Context = copyStringRef(fe.Context)
		out.fnEssential = &fe
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		fm := *p.fnMonotonic
		fm.InputIndex = copyIntRef(fm.InputIndex)
		fm.Target = copyVarRef(fm.Target)
		fm.Context = copyStringRef(fm.Context)
		out.fnMonotonic = &fm
	}
	return out
}

func copyVarRef(in *VarID) *VarID {
	if in == nil {
		return nil
	}
	id := *in
	return &id
}

func copyIntRef(in *int) *int {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func copyStringRef(in *string) *string {
	if in == nil {
		return nil
	}
	s := *in
	return &s
}
