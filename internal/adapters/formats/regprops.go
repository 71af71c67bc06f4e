package formats

import "sketchcore/pkg/sketch"

// deriveRegulationProperties adds the automatic monotonicity and
// essentiality properties for every regulation whose sign or observability
// is constrained. A property id already taken, typically restored from an
// entity block of the same document, is left untouched.
func deriveRegulationProperties(s *sketch.Sketch) error {
	props := s.Properties()
	for _, reg := range s.Model().Regulations() {
		if reg.Sign != sketch.MonotonicityUnknown {
			id, prop := sketch.AutoMonotonicityProperty(reg.Regulator, reg.Target, reg.Sign)
			if !props.HasStatic(id) {
				if err := props.AddStatic(id, prop); err != nil {
					return err
				}
			}
		}
		if reg.Observable != sketch.EssentialityUnknown {
			id, prop := sketch.AutoEssentialityProperty(reg.Regulator, reg.Target, reg.Observable)
			if !props.HasStatic(id) {
				if err := props.AddStatic(id, prop); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
