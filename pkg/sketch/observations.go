package sketch

import (
	"sort"
	"strings"
)

// ObsValue is one component of an observation vector.
type ObsValue string

// Observation vector values. The wildcard value leaves a variable
// unconstrained by the observation.
const (
	ObsZero ObsValue = "0"
	ObsOne  ObsValue = "1"
	ObsAny  ObsValue = "*"
)

// Valid reports whether v is one of the enumerated observation values.
func (v ObsValue) Valid() bool {
	switch v {
	case ObsZero, ObsOne, ObsAny:
		return true
	}
	return false
}

// Observation is a single measured (or partially measured) network state,
// aligned with the owning dataset's variable order.
type Observation struct {
	ID     ObservationID `json:"id"`
	Name   string        `json:"name,omitempty"`
	Values []ObsValue    `json:"values"`
}

// ValuesString renders the observation vector in its compact form, one
// character per variable, e.g. "01*1".
func (o Observation) ValuesString() string {
	var b strings.Builder
	b.Grow(len(o.Values))
	for _, v := range o.Values {
		b.WriteString(string(v))
	}
	return b.String()
}

// ParseObsValues parses the compact observation vector form produced by
// ValuesString.
func ParseObsValues(raw string) ([]ObsValue, error) {
	values := make([]ObsValue, 0, len(raw))
	for _, r := range raw {
		v := ObsValue(r)
		if !v.Valid() {
			return nil, validationf("invalid observation value %q", string(r))
		}
		values = append(values, v)
	}
	return values, nil
}

// Dataset groups observations over a fixed ordered list of variables.
type Dataset struct {
	variables    []VarID
	observations map[ObservationID]Observation
}

// NewDataset constructs an empty dataset over the given variables. Variable
// identifiers must be valid and unique within the dataset.
func NewDataset(variables []VarID) (*Dataset, error) {
	seen := make(map[VarID]struct{}, len(variables))
	for _, v := range variables {
		if err := checkIdentifier(string(v)); err != nil {
			return nil, err
		}
		if _, dup := seen[v]; dup {
			return nil, validationf("dataset variable %q listed twice", v)
		}
		seen[v] = struct{}{}
	}
	return &Dataset{
		variables:    append([]VarID(nil), variables...),
		observations: make(map[ObservationID]Observation),
	}, nil
}

// Variables returns the dataset's variable order.
func (d *Dataset) Variables() []VarID {
	return append([]VarID(nil), d.variables...)
}

// AddObservation stores an observation. The identifier must be unused and
// the value vector must match the dataset's variable count.
func (d *Dataset) AddObservation(obs Observation) error {
	if err := checkIdentifier(string(obs.ID)); err != nil {
		return err
	}
	if _, ok := d.observations[obs.ID]; ok {
		return validationf("observation %q already present", obs.ID)
	}
	if len(obs.Values) != len(d.variables) {
		return validationf("observation %q has %d values, dataset has %d variables",
			obs.ID, len(obs.Values), len(d.variables))
	}
	for _, v := range obs.Values {
		if !v.Valid() {
			return validationf("observation %q has invalid value %q", obs.ID, v)
		}
	}
	obs.Values = append([]ObsValue(nil), obs.Values...)
	d.observations[obs.ID] = obs
	return nil
}

// RemoveObservation deletes an observation.
func (d *Dataset) RemoveObservation(id ObservationID) error {
	if _, ok := d.observations[id]; !ok {
		return referencef("observation %q not found", id)
	}
	delete(d.observations, id)
	return nil
}

// Observation looks up an observation by identifier.
func (d *Dataset) Observation(id ObservationID) (Observation, bool) {
	obs, ok := d.observations[id]
	if !ok {
		return Observation{}, false
	}
	obs.Values = append([]ObsValue(nil), obs.Values...)
	return obs, true
}

// HasObservation reports whether id names an observation of the dataset.
func (d *Dataset) HasObservation(id ObservationID) bool {
	_, ok := d.observations[id]
	return ok
}

// NumObservations returns the number of stored observations.
func (d *Dataset) NumObservations() int { return len(d.observations) }

// ObservationIDs returns all observation identifiers sorted alphabetically.
func (d *Dataset) ObservationIDs() []ObservationID {
	ids := make([]ObservationID, 0, len(d.observations))
	for id := range d.observations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Observations returns all observations sorted by identifier.
func (d *Dataset) Observations() []Observation {
	out := make([]Observation, 0, len(d.observations))
	for _, id := range d.ObservationIDs() {
		obs := d.observations[id]
		obs.Values = append([]ObsValue(nil), obs.Values...)
		out = append(out, obs)
	}
	return out
}

// Copy returns a deep copy of the dataset.
func (d *Dataset) Copy() *Dataset {
	out := &Dataset{
		variables:    append([]VarID(nil), d.variables...),
		observations: make(map[ObservationID]Observation, len(d.observations)),
	}
	for id, obs := range d.observations {
		obs.Values = append([]ObsValue(nil), obs.Values...)
		out.observations[id] = obs
	}
	return out
}
