package sketch

import "sort"

// PropertyManager owns the dynamic and static properties of a sketch. The
// two namespaces are independent: a dynamic and a static property may share
// an identifier.
type PropertyManager struct {
	dynamic map[DynPropertyID]DynProperty
	static  map[StatPropertyID]StatProperty
}

// NewPropertyManager returns an empty manager.
func NewPropertyManager() *PropertyManager {
	return &PropertyManager{
		dynamic: make(map[DynPropertyID]DynProperty),
		static:  make(map[StatPropertyID]StatProperty),
	}
}

// AddDynamic registers a dynamic property under a fresh identifier.
func (m *PropertyManager) AddDynamic(id DynPropertyID, prop DynProperty) error {
	if _, ok := m.dynamic[id]; ok {
		return validationf("dynamic property %q already exists", id)
	}
	m.dynamic[id] = prop.copy()
	return nil
}

// SetDynamic replaces an existing dynamic property.
func (m *PropertyManager) SetDynamic(id DynPropertyID, prop DynProperty) error {
	if _, ok := m.dynamic[id]; !ok {
		return referencef("dynamic property %q not found", id)
	}
	m.dynamic[id] = prop.copy()
	return nil
}

// RemoveDynamic deletes a dynamic property.
func (m *PropertyManager) RemoveDynamic(id DynPropertyID) error {
	if _, ok := m.dynamic[id]; !ok {
		return referencef("dynamic property %q not found", id)
	}
	delete(m.dynamic, id)
	return nil
}

// Dynamic returns the dynamic property under id.
func (m *PropertyManager) Dynamic(id DynPropertyID) (DynProperty, bool) {
	prop, ok := m.dynamic[id]
	if !ok {
		return DynProperty{}, false
	}
	return prop.copy(), true
}

// HasDynamic reports whether a dynamic property exists under id.
func (m *PropertyManager) HasDynamic(id DynPropertyID) bool {
	_, ok := m.dynamic[id]
	return ok
}

// NumDynamic returns the number of dynamic properties.
func (m *PropertyManager) NumDynamic() int { return len(m.dynamic) }

// DynamicIDs returns all dynamic property identifiers in sorted order.
func (m *PropertyManager) DynamicIDs() []DynPropertyID {
	ids := make([]DynPropertyID, 0, len(m.dynamic))
	for id := range m.dynamic {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddStatic registers a static property under a fresh identifier.
func (m *PropertyManager) AddStatic(id StatPropertyID, prop StatProperty) error {
	if _, ok := m.static[id]; ok {
		return validationf("static property %q already exists", id)
	}
	m.static[id] = prop.copy()
	return nil
}

// SetStatic replaces an existing static property.
func (m *PropertyManager) SetStatic(id StatPropertyID, prop StatProperty) error {
	if _, ok := m.static[id]; !ok {
		return referencef("static property %q not found", id)
	}
	m.static[id] = prop.copy()
	return nil
}

// RemoveStatic deletes a static property.
func (m *PropertyManager) RemoveStatic(id StatPropertyID) error {
	if _, ok := m.static[id]; !ok {
		return referencef("static property %q not found", id)
	}
	delete(m.static, id)
	return nil
}

// Static returns the static property under id.
func (m *PropertyManager) Static(id StatPropertyID) (StatProperty, bool) {
	prop, ok := m.static[id]
	if !ok {
		return StatProperty{}, false
	}
	return prop.copy(), true
}

// HasStatic reports whether a static property exists under id.
func (m *PropertyManager) HasStatic(id StatPropertyID) bool {
	_, ok := m.static[id]
	return ok
}

// NumStatic returns the number of static properties.
func (m *PropertyManager) NumStatic() int { return len(m.static) }

// StaticIDs returns all static property identifiers in sorted order.
func (m *PropertyManager) StaticIDs() []StatPropertyID {
	ids := make([]StatPropertyID, 0, len(m.static))
	for id := range m.static {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GenerateDynamicID derives a fresh dynamic property identifier from an
// ideal candidate. Numbered suffixes are probed from startIndex upward.
func (m *PropertyManager) GenerateDynamicID(ideal string, startIndex int) DynPropertyID {
	raw := generateID(ideal, startIndex, func(candidate string) bool {
		_, ok := m.dynamic[DynPropertyID(candidate)]
		return ok
	})
	return DynPropertyID(raw)
}

// GenerateStaticID derives a fresh static property identifier from an
// ideal candidate. Numbered suffixes are probed from startIndex upward.
func (m *PropertyManager) GenerateStaticID(ideal string, startIndex int) StatPropertyID {
	raw := generateID(ideal, startIndex, func(candidate string) bool {
		_, ok := m.static[StatPropertyID(candidate)]
		return ok
	})
	return StatPropertyID(raw)
}

// Copy returns a deep copy of the manager.
func (m *PropertyManager) Copy() *PropertyManager {
	out := NewPropertyManager()
	for id, prop := range m.dynamic {
		out.dynamic[id] = prop.copy()
	}
	for id, prop := range m.static {
		out.static[id] = prop.copy()
	}
	return out
}
