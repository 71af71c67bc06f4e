package sketch

import "sort"

// Monotonicity describes the direction in which a regulator influences its
// target's update outcome.
type Monotonicity string

// Monotonicity values accepted by regulations and monotonicity properties.
const (
	// MonotonicityActivation means increasing the regulator can only increase the target.
	MonotonicityActivation Monotonicity = "activation"
	// MonotonicityInhibition means increasing the regulator can only decrease the target.
	MonotonicityInhibition Monotonicity = "inhibition"
	// MonotonicityDual means the regulator acts in both directions.
	MonotonicityDual Monotonicity = "dual"
	// MonotonicityUnknown leaves the direction unconstrained.
	MonotonicityUnknown Monotonicity = "unknown"
)

// Valid reports whether m is one of the enumerated monotonicity values.
func (m Monotonicity) Valid() bool {
	switch m {
	case MonotonicityActivation, MonotonicityInhibition, MonotonicityDual, MonotonicityUnknown:
		return true
	}
	return false
}

// Essentiality describes whether a regulator's value ever changes its
// target's update outcome.
type Essentiality string

// Essentiality values accepted by regulations and essentiality properties.
const (
	// EssentialityTrue means the input is observable in the update function.
	EssentialityTrue Essentiality = "true"
	// EssentialityFalse means the input never changes the update outcome.
	EssentialityFalse Essentiality = "false"
	// EssentialityUnknown leaves essentiality unconstrained.
	EssentialityUnknown Essentiality = "unknown"
)

// Valid reports whether e is one of the enumerated essentiality values.
func (e Essentiality) Valid() bool {
	switch e {
	case EssentialityTrue, EssentialityFalse, EssentialityUnknown:
		return true
	}
	return false
}

// Variable is a named network variable with an optional update function
// expression. An empty UpdateFn means the function is unspecified and the
// engine derives an implicit parametrised function over the variable's
// declared regulators.
type Variable struct {
	ID       VarID  `json:"id"`
	Name     string `json:"name"`
	UpdateFn string `json:"update_fn,omitempty"`
}

// Regulation is a structural edge stating that Regulator influences Target,
// optionally constrained by sign and observability.
type Regulation struct {
	Regulator  VarID        `json:"regulator"`
	Target     VarID        `json:"target"`
	Sign       Monotonicity `json:"sign"`
	Observable Essentiality `json:"observable"`
}

// LayoutPosition is a 2D position preserved for layout round-tripping.
type LayoutPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type regulationKey struct {
	regulator VarID
	target    VarID
}

// ModelState holds the structural part of a sketch: variables, regulations,
// update functions, and layout positions. All mutation goes through methods
// so per-scope uniqueness and reference integrity hold at every point.
type ModelState struct {
	variables   map[VarID]Variable
	regulations map[regulationKey]Regulation
	positions   map[VarID]LayoutPosition
}

// NewModelState returns an empty model.
func NewModelState() *ModelState {
	return &ModelState{
		variables:   make(map[VarID]Variable),
		regulations: make(map[regulationKey]Regulation),
		positions:   make(map[VarID]LayoutPosition),
	}
}

// AddVariable registers a new variable. The name defaults to the identifier
// when empty.
func (m *ModelState) AddVariable(id VarID, name string) error {
	if err := checkIdentifier(string(id)); err != nil {
		return err
	}
	if _, ok := m.variables[id]; ok {
		return validationf("variable %q already present", id)
	}
	if name == "" {
		name = string(id)
	}
	m.variables[id] = Variable{ID: id, Name: name}
	return nil
}

// RemoveVariable deletes a variable together with its regulations, update
// function, and layout position.
func (m *ModelState) RemoveVariable(id VarID) error {
	if _, ok := m.variables[id]; !ok {
		return referencef("variable %q not found", id)
	}
	delete(m.variables, id)
	delete(m.positions, id)
	for key := range m.regulations {
		if key.regulator == id || key.target == id {
			delete(m.regulations, key)
		}
	}
	return nil
}

// SetVariableName renames an existing variable.
func (m *ModelState) SetVariableName(id VarID, name string) error {
	v, ok := m.variables[id]
	if !ok {
		return referencef("variable %q not found", id)
	}
	if name == "" {
		return validationf("variable name must not be empty")
	}
	v.Name = name
	m.variables[id] = v
	return nil
}

// SetUpdateFn stores the update function expression of a variable. The
// expression itself is opaque at this layer; the engine validates it.
func (m *ModelState) SetUpdateFn(id VarID, fn string) error {
	v, ok := m.variables[id]
	if !ok {
		return referencef("variable %q not found", id)
	}
	v.UpdateFn = fn
	m.variables[id] = v
	return nil
}

// Variable looks up a variable by identifier.
func (m *ModelState) Variable(id VarID) (Variable, bool) {
	v, ok := m.variables[id]
	return v, ok
}

// HasVariable reports whether id names a variable of the model.
func (m *ModelState) HasVariable(id VarID) bool {
	_, ok := m.variables[id]
	return ok
}

// NumVariables returns the number of variables.
func (m *ModelState) NumVariables() int { return len(m.variables) }

// VariableIDs returns all variable identifiers sorted alphabetically.
func (m *ModelState) VariableIDs() []VarID {
	ids := make([]VarID, 0, len(m.variables))
	for id := range m.variables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Variables returns all variables sorted by identifier.
func (m *ModelState) Variables() []Variable {
	out := make([]Variable, 0, len(m.variables))
	for _, id := range m.VariableIDs() {
		out = append(out, m.variables[id])
	}
	return out
}

// AddRegulation registers a structural edge. Both endpoints must exist and
// at most one regulation per (regulator, target) pair is allowed. Empty sign
// and observability default to unknown.
func (m *ModelState) AddRegulation(reg Regulation) error {
	if !m.HasVariable(reg.Regulator) {
		return referencef("regulator %q not found", reg.Regulator)
	}
	if !m.HasVariable(reg.Target) {
		return referencef("regulation target %q not found", reg.Target)
	}
	if reg.Sign == "" {
		reg.Sign = MonotonicityUnknown
	}
	if reg.Observable == "" {
		reg.Observable = EssentialityUnknown
	}
	if !reg.Sign.Valid() {
		return validationf("invalid regulation sign %q", reg.Sign)
	}
	if !reg.Observable.Valid() {
		return validationf("invalid regulation observability %q", reg.Observable)
	}
	key := regulationKey{regulator: reg.Regulator, target: reg.Target}
	if _, ok := m.regulations[key]; ok {
		return validationf("regulation %s -> %s already present", reg.Regulator, reg.Target)
	}
	m.regulations[key] = reg
	return nil
}

// RemoveRegulation deletes the edge between regulator and target.
func (m *ModelState) RemoveRegulation(regulator, target VarID) error {
	key := regulationKey{regulator: regulator, target: target}
	if _, ok := m.regulations[key]; !ok {
		return referencef("regulation %s -> %s not found", regulator, target)
	}
	delete(m.regulations, key)
	return nil
}

// Regulation looks up the edge between regulator and target.
func (m *ModelState) Regulation(regulator, target VarID) (Regulation, bool) {
	reg, ok := m.regulations[regulationKey{regulator: regulator, target: target}]
	return reg, ok
}

// Regulations returns all edges sorted by (regulator, target).
func (m *ModelState) Regulations() []Regulation {
	out := make([]Regulation, 0, len(m.regulations))
	for _, reg := range m.regulations {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Regulator != out[j].Regulator {
			return out[i].Regulator < out[j].Regulator
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// RegulatorsOf returns the sorted regulators of target. Used to derive
// implicit update functions.
func (m *ModelState) RegulatorsOf(target VarID) []VarID {
	var out []VarID
	for key := range m.regulations {
		if key.target == target {
			out = append(out, key.regulator)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetPosition stores the layout position of a variable.
func (m *ModelState) SetPosition(id VarID, pos LayoutPosition) error {
	if !m.HasVariable(id) {
		return referencef("variable %q not found", id)
	}
	m.positions[id] = pos
	return nil
}

// Position returns the layout position of a variable, if one was set.
func (m *ModelState) Position(id VarID) (LayoutPosition, bool) {
	pos, ok := m.positions[id]
	return pos, ok
}

// Copy returns a deep copy of the model.
func (m *ModelState) Copy() *ModelState {
	out := NewModelState()
	for id, v := range m.variables {
		out.variables[id] = v
	}
	for key, reg := range m.regulations {
		out.regulations[key] = reg
	}
	for id, pos := range m.positions {
		out.positions[id] = pos
	}
	return out
}
