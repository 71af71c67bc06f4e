package formats

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"sketchcore/pkg/sketch"
)

// The annotated text format is a plain Boolean-network description enriched
// with #-prefixed annotation lines. Plain lines are regulations
// ("a ->? b") and update functions ("$a: b | c"). Layout lines have the
// shape "#position:ID:X,Y". Entity blocks have the shape
// "#!entity_type:ID:#`payload`#" with a single-line JSON payload. Any other
// #-prefixed line is ignored.
//
// A regulation arrow is "-" followed by a sign character and an optional
// essentiality suffix. Signs: ">" activation, "|" inhibition, "D" dual,
// "?" unknown. Suffixes: none for essential, "?" for unknown essentiality,
// "!" for explicitly non-essential.

// Entity block types understood by the importer.
const (
	entityVariable = "variable"
	entityDataset  = "dataset"
	entityStatic   = "static_property"
	entityDynamic  = "dynamic_property"
	entitySketch   = "sketch"

	// Identifier of the sketch-level annotation block.
	sketchAnnotationID = "annotation"
)

var regulationLine = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\s*-([>|D?])([?!]?)\s*([a-zA-Z_][a-zA-Z0-9_]*)$`)

var signRunes = map[sketch.Monotonicity]string{
	sketch.MonotonicityActivation: ">",
	sketch.MonotonicityInhibition: "|",
	sketch.MonotonicityDual:       "D",
	sketch.MonotonicityUnknown:    "?",
}

var signValues = map[string]sketch.Monotonicity{
	">": sketch.MonotonicityActivation,
	"|": sketch.MonotonicityInhibition,
	"D": sketch.MonotonicityDual,
	"?": sketch.MonotonicityUnknown,
}

var essentialitySuffixes = map[sketch.Essentiality]string{
	sketch.EssentialityTrue:    "",
	sketch.EssentialityUnknown: "?",
	sketch.EssentialityFalse:   "!",
}

var essentialityValues = map[string]sketch.Essentiality{
	"":  sketch.EssentialityTrue,
	"?": sketch.EssentialityUnknown,
	"!": sketch.EssentialityFalse,
}

// encodeAnnotated renders the sketch as annotated text: the plain model part
// first, then layout lines, then entity blocks grouped by type with IDs in
// alphabetical order.
func encodeAnnotated(s *sketch.Sketch) ([]byte, error) {
	var b strings.Builder
	model := s.Model()

	for _, reg := range model.Regulations() {
		fmt.Fprintf(&b, "%s -%s%s %s\n",
			reg.Regulator, signRunes[reg.Sign], essentialitySuffixes[reg.Observable], reg.Target)
	}
	for _, v := range model.Variables() {
		if v.UpdateFn == "" {
			continue
		}
		if strings.ContainsAny(v.UpdateFn, "\n\r") {
			return nil, invalidf("update function of %q spans multiple lines", v.ID)
		}
		fmt.Fprintf(&b, "$%s: %s\n", v.ID, v.UpdateFn)
	}
	for _, id := range model.VariableIDs() {
		pos, ok := model.Position(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "#position:%s:%s,%s\n", id, formatCoord(pos.X), formatCoord(pos.Y))
	}

	for _, id := range s.DatasetIDs() {
		ds, _ := s.Dataset(id)
		payload, err := sketch.MarshalDataset(id, ds)
		if err != nil {
			return nil, err
		}
		writeEntity(&b, entityDataset, string(id), payload)
	}
	props := s.Properties()
	for _, id := range props.DynamicIDs() {
		prop, _ := props.Dynamic(id)
		payload, err := sketch.MarshalDynProperty(id, prop)
		if err != nil {
			return nil, err
		}
		writeEntity(&b, entityDynamic, string(id), payload)
	}
	if s.Annotation() != "" {
		payload, err := json.Marshal(s.Annotation())
		if err != nil {
			return nil, err
		}
		writeEntity(&b, entitySketch, sketchAnnotationID, payload)
	}
	for _, id := range props.StaticIDs() {
		prop, _ := props.Static(id)
		payload, err := sketch.MarshalStatProperty(id, prop)
		if err != nil {
			return nil, err
		}
		writeEntity(&b, entityStatic, string(id), payload)
	}
	for _, v := range model.Variables() {
		payload, err := json.Marshal(sketch.Variable{ID: v.ID, Name: v.Name})
		if err != nil {
			return nil, err
		}
		writeEntity(&b, entityVariable, string(v.ID), payload)
	}
	return []byte(b.String()), nil
}

func writeEntity(b *strings.Builder, entityType, id string, payload []byte) {
	fmt.Fprintf(b, "#!%s:%s:#`%s`#\n", entityType, id, payload)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// decodeAnnotated parses annotated text into a sketch. Variables declared by
// entity blocks come first; endpoints of plain lines that have no block are
// created with their identifier as name. After all blocks are applied the
// automatic regulation properties are derived for every typed regulation
// that does not already carry one.
func decodeAnnotated(data []byte) (*sketch.Sketch, error) {
	doc, err := parseAnnotated(data)
	if err != nil {
		return nil, err
	}
	out := sketch.NewSketch()
	model := out.Model()

	for _, id := range doc.ids(entityVariable) {
		var v sketch.Variable
		payload := doc.entities[entityVariable][id]
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, invalidf("variable block %q: %v", id, err)
		}
		if v.ID != "" && string(v.ID) != id {
			return nil, invalidf("variable block %q carries id %q", id, v.ID)
		}
		if err := model.AddVariable(sketch.VarID(id), v.Name); err != nil {
			return nil, err
		}
	}
	for _, reg := range doc.regulations {
		ensureVariable(model, reg.Regulator)
		ensureVariable(model, reg.Target)
		if err := model.AddRegulation(reg); err != nil {
			return nil, err
		}
	}
	for _, upd := range doc.updates {
		ensureVariable(model, upd.id)
		if err := model.SetUpdateFn(upd.id, upd.fn); err != nil {
			return nil, err
		}
	}
	for _, pos := range doc.positions {
		if err := model.SetPosition(pos.id, sketch.LayoutPosition{X: pos.x, Y: pos.y}); err != nil {
			return nil, err
		}
	}

	for _, id := range doc.ids(entityDataset) {
		payload := doc.entities[entityDataset][id]
		got, ds, err := sketch.UnmarshalDataset([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("dataset block %q: %w", id, err)
		}
		if string(got) != id {
			return nil, invalidf("dataset block %q carries id %q", id, got)
		}
		if err := out.AddDataset(got, ds); err != nil {
			return nil, err
		}
	}
	for _, id := range doc.ids(entityStatic) {
		payload := doc.entities[entityStatic][id]
		got, prop, err := sketch.UnmarshalStatProperty([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("static property block %q: %w", id, err)
		}
		if string(got) != id {
			return nil, invalidf("static property block %q carries id %q", id, got)
		}
		if err := out.Properties().AddStatic(got, prop); err != nil {
			return nil, err
		}
	}
	for _, id := range doc.ids(entityDynamic) {
		payload := doc.entities[entityDynamic][id]
		got, prop, err := sketch.UnmarshalDynProperty([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("dynamic property block %q: %w", id, err)
		}
		if string(got) != id {
			return nil, invalidf("dynamic property block %q carries id %q", id, got)
		}
		if err := out.Properties().AddDynamic(got, prop); err != nil {
			return nil, err
		}
	}
	if payload, ok := doc.entities[entitySketch][sketchAnnotationID]; ok {
		var note string
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, invalidf("sketch annotation block: %v", err)
		}
		out.SetAnnotation(note)
	}

	if err := deriveRegulationProperties(out); err != nil {
		return nil, err
	}
	return out, nil
}

func ensureVariable(model *sketch.ModelState, id sketch.VarID) {
	if !model.HasVariable(id) {
		// Identifier validity was checked while parsing the line.
		_ = model.AddVariable(id, "")
	}
}

type updateLine struct {
	id sketch.VarID
	fn string
}

type positionLine struct {
	id   sketch.VarID
	x, y float64
}

// annotatedDoc is the raw line-level parse before any model mutation.
type annotatedDoc struct {
	regulations []sketch.Regulation
	updates     []updateLine
	positions   []positionLine
	entities    map[string]map[string]string
}

// ids returns the entity identifiers of one block type sorted alphabetically.
func (d *annotatedDoc) ids(entityType string) []string {
	out := make([]string, 0, len(d.entities[entityType]))
	for id := range d.entities[entityType] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func parseAnnotated(data []byte) (*annotatedDoc, error) {
	doc := &annotatedDoc{entities: make(map[string]map[string]string)}
	seenUpdates := make(map[sketch.VarID]bool)
	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		var err error
		switch {
		case line == "":
		case strings.HasPrefix(line, "#!"):
			err = doc.parseEntityLine(line)
		case strings.HasPrefix(line, "#position:"):
			err = doc.parsePositionLine(line)
		case strings.HasPrefix(line, "#"):
			// Unknown annotation lines are ignored.
		case strings.HasPrefix(line, "$"):
			err = doc.parseUpdateLine(line, seenUpdates)
		default:
			err = doc.parseRegulationLine(line)
		}
		if err != nil {
			return nil, fmt.Errorf("annotated line %d: %w", i+1, err)
		}
	}
	return doc, nil
}

func knownEntityType(entityType string) bool {
	switch entityType {
	case entityVariable, entityDataset, entityStatic, entityDynamic, entitySketch:
		return true
	}
	return false
}

// parseEntityLine records one "#!type:id:#`payload`#" block. Blocks of
// unknown types are ignored wholesale. For known types the path must be
// exactly type and id: a longer path means the entity has nested values,
// which the extraction contract rejects, as it does duplicate ids and empty
// payloads.
func (d *annotatedDoc) parseEntityLine(line string) error {
	body := strings.TrimPrefix(line, "#!")
	marker := strings.Index(body, ":#`")
	path := body
	if marker >= 0 {
		path = body[:marker]
	}
	segments := strings.Split(path, ":")
	if !knownEntityType(segments[0]) {
		return nil
	}
	entityType := segments[0]
	if len(segments) == 1 {
		// A value attached to the type node itself is not an entity.
		return nil
	}
	id := segments[1]
	if len(segments) > 2 {
		return invalidf("entity %q of type %q has nested values", id, entityType)
	}
	if !sketch.IsValidIdentifier(id) {
		return invalidf("invalid entity identifier %q", id)
	}
	if marker < 0 {
		return invalidf("malformed entity block for %q of type %q", id, entityType)
	}
	rest := body[marker+3:]
	if !strings.HasSuffix(rest, "`#") {
		return invalidf("malformed entity block for %q of type %q", id, entityType)
	}
	payload := rest[:len(rest)-2]
	if payload == "" {
		return invalidf("entity %q of type %q is empty", id, entityType)
	}
	if d.entities[entityType] == nil {
		d.entities[entityType] = make(map[string]string)
	}
	if _, dup := d.entities[entityType][id]; dup {
		return invalidf("entity %q of type %q declared twice", id, entityType)
	}
	d.entities[entityType][id] = payload
	return nil
}

func (d *annotatedDoc) parsePositionLine(line string) error {
	rest := strings.TrimPrefix(line, "#position:")
	sep := strings.Index(rest, ":")
	if sep < 0 {
		return invalidf("malformed position line %q", line)
	}
	id := rest[:sep]
	if !sketch.IsValidIdentifier(id) {
		return invalidf("invalid variable identifier %q in position line", id)
	}
	coords := strings.Split(rest[sep+1:], ",")
	if len(coords) != 2 {
		return invalidf("malformed position line %q", line)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
	if err != nil {
		return invalidf("malformed position line %q", line)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
	if err != nil {
		return invalidf("malformed position line %q", line)
	}
	// Repeated positions for one variable keep the last value.
	d.positions = append(d.positions, positionLine{id: sketch.VarID(id), x: x, y: y})
	return nil
}

func (d *annotatedDoc) parseUpdateLine(line string, seen map[sketch.VarID]bool) error {
	rest := line[1:]
	sep := strings.Index(rest, ":")
	if sep < 0 {
		return invalidf("malformed update line %q", line)
	}
	id := strings.TrimSpace(rest[:sep])
	if !sketch.IsValidIdentifier(id) {
		return invalidf("invalid variable identifier %q in update line", id)
	}
	fn := strings.TrimSpace(rest[sep+1:])
	if fn == "" {
		return invalidf("update line for %q has no formula", id)
	}
	varID := sketch.VarID(id)
	if seen[varID] {
		return invalidf("duplicate update function for %q", id)
	}
	seen[varID] = true
	d.updates = append(d.updates, updateLine{id: varID, fn: fn})
	return nil
}

func (d *annotatedDoc) parseRegulationLine(line string) error {
	m := regulationLine.FindStringSubmatch(line)
	if m == nil {
		return invalidf("malformed regulation line %q", line)
	}
	d.regulations = append(d.regulations, sketch.Regulation{
		Regulator:  sketch.VarID(m[1]),
		Target:     sketch.VarID(m[4]),
		Sign:       signValues[m[2]],
		Observable: essentialityValues[m[3]],
	})
	return nil
}
