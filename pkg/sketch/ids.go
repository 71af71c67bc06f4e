package sketch

import (
	"fmt"
	"regexp"
	"strings"
)

// Identifier grammar shared by every namespace. IDs are immutable once
// constructed and compare by their underlying string.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether raw satisfies the identifier grammar.
func IsValidIdentifier(raw string) bool {
	return identifierPattern.MatchString(raw)
}

func checkIdentifier(raw string) error {
	if !IsValidIdentifier(raw) {
		return validationf("invalid identifier %q", raw)
	}
	return nil
}

// VarID identifies a network variable.
type VarID string

// DatasetID identifies a dataset within a sketch.
type DatasetID string

// ObservationID identifies an observation within a dataset.
type ObservationID string

// DynPropertyID identifies a dynamic property within the property manager.
type DynPropertyID string

// StatPropertyID identifies a static property within the property manager.
type StatPropertyID string

// NewVarID validates raw and returns it as a variable identifier.
func NewVarID(raw string) (VarID, error) {
	if err := checkIdentifier(raw); err != nil {
		return "", err
	}
	return VarID(raw), nil
}

// NewDatasetID validates raw and returns it as a dataset identifier.
func NewDatasetID(raw string) (DatasetID, error) {
	if err := checkIdentifier(raw); err != nil {
		return "", err
	}
	return DatasetID(raw), nil
}

// NewObservationID validates raw and returns it as an observation identifier.
func NewObservationID(raw string) (ObservationID, error) {
	if err := checkIdentifier(raw); err != nil {
		return "", err
	}
	return ObservationID(raw), nil
}

// NewDynPropertyID validates raw and returns it as a dynamic property identifier.
func NewDynPropertyID(raw string) (DynPropertyID, error) {
	if err := checkIdentifier(raw); err != nil {
		return "", err
	}
	return DynPropertyID(raw), nil
}

// NewStatPropertyID validates raw and returns it as a static property identifier.
func NewStatPropertyID(raw string) (StatPropertyID, error) {
	if err := checkIdentifier(raw); err != nil {
		return "", err
	}
	return StatPropertyID(raw), nil
}

func (id VarID) String() string { return string(id) }

func (id DatasetID) String() string { return string(id) }

func (id ObservationID) String() string { return string(id) }

func (id DynPropertyID) String() string { return string(id) }

func (id StatPropertyID) String() string { return string(id) }

// generateID deterministically derives a fresh identifier from an ideal
// candidate. The ideal is used verbatim when valid and free; otherwise it is
// sanitized by dropping every character outside the identifier grammar, and
// when the sanitized form is taken too, numbered suffixes are probed from
// startIndex upward until a free one is found. Same inputs and same taken
// set always produce the same output.
func generateID(ideal string, startIndex int, taken func(string) bool) string {
	if IsValidIdentifier(ideal) && !taken(ideal) {
		return ideal
	}
	sanitized := sanitizeIdentifier(ideal)
	if !taken(sanitized) {
		return sanitized
	}
	for i := startIndex; ; i++ {
		candidate := fmt.Sprintf("%s_%d", sanitized, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// sanitizeIdentifier keeps ASCII letters, digits and underscores, then
// prefixes an underscore when the result would be empty or start with a
// digit. The output always satisfies the identifier grammar.
func sanitizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	return out
}
