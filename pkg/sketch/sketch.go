// Package sketch defines the Boolean network sketch: the regulatory model,
// experimental datasets, and the static and dynamic properties that together
// constrain the space of admissible parameterizations.
package sketch

import "sort"

// Sketch aggregates one model, its datasets, and its properties. All edits
// go through the aggregate or its sub-components; identifiers are unique
// within their namespace.
type Sketch struct {
	model      *ModelState
	datasets   map[DatasetID]*Dataset
	properties *PropertyManager
	annotation string
}

// NewSketch returns an empty sketch.
func NewSketch() *Sketch {
	return &Sketch{
		model:      NewModelState(),
		datasets:   make(map[DatasetID]*Dataset),
		properties: NewPropertyManager(),
	}
}

// Model returns the sketch's regulatory model.
func (s *Sketch) Model() *ModelState { return s.model }

// Properties returns the sketch's property manager.
func (s *Sketch) Properties() *PropertyManager { return s.properties }

// Annotation returns the sketch-level free-text annotation.
func (s *Sketch) Annotation() string { return s.annotation }

// SetAnnotation replaces the sketch-level annotation.
func (s *Sketch) SetAnnotation(annotation string) { s.annotation = annotation }

// AddDataset registers a dataset under a fresh identifier.
func (s *Sketch) AddDataset(id DatasetID, ds *Dataset) error {
	if ds == nil {
		return validationf("dataset %q must not be nil", id)
	}
	if _, ok := s.datasets[id]; ok {
		return validationf("dataset %q already exists", id)
	}
	s.datasets[id] = ds
	return nil
}

// RemoveDataset deletes a dataset.
func (s *Sketch) RemoveDataset(id DatasetID) error {
	if _, ok := s.datasets[id]; !ok {
		return referencef("dataset %q not found", id)
	}
	delete(s.datasets, id)
	return nil
}

// Dataset returns the dataset under id. The returned dataset is live, edits
// on it are visible through the sketch.
func (s *Sketch) Dataset(id DatasetID) (*Dataset, bool) {
	ds, ok := s.datasets[id]
	return ds, ok
}

// HasDataset reports whether a dataset exists under id.
func (s *Sketch) HasDataset(id DatasetID) bool {
	_, ok := s.datasets[id]
	return ok
}

// NumDatasets returns the number of datasets.
func (s *Sketch) NumDatasets() int { return len(s.datasets) }

// DatasetIDs returns all dataset identifiers in sorted order.
func (s *Sketch) DatasetIDs() []DatasetID {
	ids := make([]DatasetID, 0, len(s.datasets))
	for id := range s.datasets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GenerateDatasetID derives a fresh dataset identifier from an ideal
// candidate. Numbered suffixes are probed from startIndex upward.
func (s *Sketch) GenerateDatasetID(ideal string, startIndex int) DatasetID {
	raw := generateID(ideal, startIndex, func(candidate string) bool {
		_, ok := s.datasets[DatasetID(candidate)]
		return ok
	})
	return DatasetID(raw)
}

// Copy returns a deep copy of the sketch.
func (s *Sketch) Copy() *Sketch {
	out := NewSketch()
	out.model = s.model.Copy()
	out.properties = s.properties.Copy()
	out.annotation = s.annotation
	for id, ds := range s.datasets {
		out.datasets[id] = ds.Copy()
	}
	return out
}
