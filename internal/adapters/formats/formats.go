// Package formats converts sketches to and from the supported interchange
// encodings: the annotated text format, the JSON document schema, and an
// SBML-qual subset. The annotated and JSON encodings carry the whole sketch;
// SBML carries only the model part (variables, regulations, update functions,
// layout).
package formats

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"sketchcore/pkg/sketch"
)

// Format identifies one of the supported sketch encodings.
type Format string

// Supported encodings.
const (
	FormatAnnotated Format = "annotated"
	FormatJSON      Format = "json"
	FormatSBML      Format = "sbml"
)

// Valid reports whether f is one of the supported encodings.
func (f Format) Valid() bool {
	switch f {
	case FormatAnnotated, FormatJSON, FormatSBML:
		return true
	}
	return false
}

func (f Format) String() string { return string(f) }

// Ext returns the canonical file extension of the format.
func (f Format) Ext() string {
	switch f {
	case FormatAnnotated:
		return ".aeon"
	case FormatJSON:
		return ".json"
	case FormatSBML:
		return ".sbml"
	}
	return ""
}

// MediaType returns the content type served for exports in this format.
func (f Format) MediaType() string {
	switch f {
	case FormatAnnotated:
		return "text/plain; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatSBML:
		return "application/sbml+xml"
	}
	return ""
}

// DetectPath derives the format from a file name's extension.
func DetectPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".aeon":
		return FormatAnnotated, nil
	case ".json":
		return FormatJSON, nil
	case ".sbml", ".xml":
		return FormatSBML, nil
	}
	return "", invalidf("cannot derive a sketch format from %q, want .aeon, .json, .sbml or .xml", path)
}

// DetectMediaType derives the format from an HTTP content type. Parameters
// such as charset are tolerated and ignored.
func DetectMediaType(contentType string) (Format, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", invalidf("malformed content type %q", contentType)
	}
	switch mt {
	case "application/json":
		return FormatJSON, nil
	case "application/xml", "text/xml", "application/sbml+xml":
		return FormatSBML, nil
	case "text/plain", "application/octet-stream":
		return FormatAnnotated, nil
	}
	return "", invalidf("no sketch format serves content type %q", contentType)
}

// Import parses data in the given format into a fresh sketch. The annotated
// and SBML importers derive the automatic regulation properties for every
// typed regulation; the JSON importer restores the document verbatim.
func Import(format Format, data []byte) (*sketch.Sketch, error) {
	switch format {
	case FormatAnnotated:
		return decodeAnnotated(data)
	case FormatJSON:
		return decodeJSON(data)
	case FormatSBML:
		return decodeSBML(data)
	}
	return nil, invalidf("unsupported sketch format %q", format)
}

// Export renders the sketch in the given format.
func Export(format Format, s *sketch.Sketch) ([]byte, error) {
	switch format {
	case FormatAnnotated:
		return encodeAnnotated(s)
	case FormatJSON:
		return encodeJSON(s)
	case FormatSBML:
		return encodeSBML(s)
	}
	return nil, invalidf("unsupported sketch format %q", format)
}

func decodeJSON(data []byte) (*sketch.Sketch, error) {
	out := sketch.NewSketch()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeJSON(s *sketch.Sketch) ([]byte, error) {
	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sketch.ErrValidation, fmt.Sprintf(format, args...))
}
