package sketch

import (
	"context"
	"fmt"
	"strings"
)

// Section is the outcome of one consistency sub-check.
type Section struct {
	Name   string   `json:"name"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Report aggregates the sections of a full consistency run. Every section
// is present whether it passed or not, so one run surfaces every issue.
type Report struct {
	Sections []Section `json:"sections"`
}

// Consistent reports whether every section passed.
func (r Report) Consistent() bool {
	for _, s := range r.Sections {
		if !s.Passed {
			return false
		}
	}
	return true
}

// Message renders the report in its human-readable form.
func (r Report) Message() string {
	var b strings.Builder
	for _, s := range r.Sections {
		b.WriteString(s.Name)
		b.WriteString(":\n")
		for _, issue := range s.Issues {
			b.WriteString("> ISSUE: ")
			b.WriteString(issue)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Check is one independent consistency sub-check.
type Check interface {
	Name() string
	Check(ctx context.Context, s *Sketch) (Section, error)
}

// Checker runs a pipeline of sub-checks over a sketch. All sub-checks run
// even when earlier ones fail.
type Checker struct {
	checks []Check
}

// NewChecker returns a checker over the given sub-checks.
func NewChecker(checks ...Check) *Checker {
	return &Checker{checks: checks}
}

// DefaultChecker returns the standard pipeline: model, datasets, static
// properties, dynamic properties.
func DefaultChecker() *Checker {
	return NewChecker(modelCheck{}, datasetCheck{}, staticCheck{}, dynamicCheck{})
}

// Register appends a sub-check to the pipeline.
func (c *Checker) Register(check Check) {
	c.checks = append(c.checks, check)
}

// Run executes every sub-check and aggregates their sections.
func (c *Checker) Run(ctx context.Context, s *Sketch) (Report, error) {
	var report Report
	for _, check := range c.checks {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		section, err := check.Check(ctx, s)
		if err != nil {
			return Report{}, fmt.Errorf("consistency check %s: %w", check.Name(), err)
		}
		report.Sections = append(report.Sections, section)
	}
	return report, nil
}

// AssertConsistency runs the pipeline and turns a failing report into a
// single error carrying the rendered report.
func (c *Checker) AssertConsistency(ctx context.Context, s *Sketch) error {
	report, err := c.Run(ctx, s)
	if err != nil {
		return err
	}
	if !report.Consistent() {
		return fmt.Errorf("%w: sketch is not consistent:\n%s", ErrValidation, report.Message())
	}
	return nil
}

type modelCheck struct{}

func (modelCheck) Name() string { return "MODEL" }

func (modelCheck) Check(_ context.Context, s *Sketch) (Section, error) {
	section := Section{Name: "MODEL", Passed: true}
	if s.Model().NumVariables() == 0 {
		section.Passed = false
		section.Issues = append(section.Issues, "There must be at least one variable.")
	}
	return section, nil
}

type datasetCheck struct{}

func (datasetCheck) Name() string { return "DATASETS" }

func (datasetCheck) Check(_ context.Context, s *Sketch) (Section, error) {
	section := Section{Name: "DATASETS", Passed: true}
	for _, id := range s.DatasetIDs() {
		ds, _ := s.Dataset(id)
		for _, v := range ds.Variables() {
			if !s.Model().HasVariable(v) {
				section.Passed = false
				section.Issues = append(section.Issues,
					fmt.Sprintf("Dataset `%s`: variable `%s` is not present in the model.", id, v))
			}
		}
	}
	return section, nil
}

type staticCheck struct{}

func (staticCheck) Name() string { return "STATIC PROPERTIES" }

func (staticCheck) Check(_ context.Context, s *Sketch) (Section, error) {
	section := Section{Name: "STATIC PROPERTIES", Passed: true}
	for _, id := range s.Properties().StaticIDs() {
		prop, _ := s.Properties().Static(id)
		for _, issue := range staticPropertyIssues(s, &prop) {
			section.Passed = false
			section.Issues = append(section.Issues, fmt.Sprintf("Property `%s`: %s", id, issue))
		}
	}
	return section, nil
}

type dynamicCheck struct{}

func (dynamicCheck) Name() string { return "DYNAMIC PROPERTIES" }

func (dynamicCheck) Check(_ context.Context, s *Sketch) (Section, error) {
	section := Section{Name: "DYNAMIC PROPERTIES", Passed: true}
	for _, id := range s.Properties().DynamicIDs() {
		prop, _ := s.Properties().Dynamic(id)
		for _, issue := range dynamicPropertyIssues(s, &prop) {
			section.Passed = false
			section.Issues = append(section.Issues, fmt.Sprintf("Property `%s`: %s", id, issue))
		}
	}
	return section, nil
}

func staticPropertyIssues(s *Sketch, prop *StatProperty) []string {
	var issues []string
	switch prop.Variant() {
	case StatGeneric:
		payload, _ := prop.Generic()
		issues = append(issues, wildcardIssues(s, payload.Wildcards)...)
		issues = append(issues, formulaIssues(s, payload.ProcessedFormula, payload.Wildcards)...)
	case StatRegulationEssential, StatRegulationEssentialContext:
		payload, _ := prop.RegulationEssential()
		issues = append(issues, regulationRefIssues(s, payload.Input, payload.Target)...)
		issues = append(issues, contextIssues(s, payload.Context)...)
	case StatRegulationMonotonic, StatRegulationMonotonicContext:
		payload, _ := prop.RegulationMonotonic()
		issues = append(issues, regulationRefIssues(s, payload.Input, payload.Target)...)
		issues = append(issues, contextIssues(s, payload.Context)...)
	case StatFnInputEssential, StatFnInputEssentialContext:
		payload, _ := prop.FnInputEssential()
		issues = append(issues, fnInputRefIssues(s, payload.InputIndex, payload.Target)...)
		issues = append(issues, contextIssues(s, payload.Context)...)
	case StatFnInputMonotonic, StatFnInputMonotonicContext:
		payload, _ := prop.FnInputMonotonic()
		issues = append(issues, fnInputRefIssues(s, payload.InputIndex, payload.Target)...)
		issues = append(issues, contextIssues(s, payload.Context)...)
	}
	return issues
}

func dynamicPropertyIssues(s *Sketch, prop *DynProperty) []string {
	switch prop.Variant() {
	case DynGeneric:
		payload, _ := prop.Generic()
		issues := wildcardIssues(s, payload.Wildcards)
		return append(issues, formulaIssues(s, payload.ProcessedFormula, payload.Wildcards)...)
	case DynExistsFixedPoint:
		payload, _ := prop.FixedPoint()
		return observationRefIssues(s, payload.Dataset, payload.Observation)
	case DynExistsTrapSpace:
		payload, _ := prop.TrapSpace()
		return observationRefIssues(s, payload.Dataset, payload.Observation)
	case DynExistsTrajectory:
		payload, _ := prop.Trajectory()
		return observationRefIssues(s, payload.Dataset, nil)
	case DynHasAttractor:
		payload, _ := prop.HasAttractor()
		return observationRefIssues(s, payload.Dataset, payload.Observation)
	}
	return nil
}

func regulationRefIssues(s *Sketch, input, target *VarID) []string {
	var issues []string
	if input == nil || target == nil {
		return []string{"one of the required fields is not filled."}
	}
	if !s.Model().HasVariable(*input) {
		issues = append(issues, fmt.Sprintf("variable `%s` is not a valid variable in the model.", *input))
	}
	if !s.Model().HasVariable(*target) {
		issues = append(issues, fmt.Sprintf("variable `%s` is not a valid variable in the model.", *target))
	}
	return issues
}

func fnInputRefIssues(s *Sketch, index *int, target *VarID) []string {
	if index == nil || target == nil {
		return []string{"one of the required fields is not filled."}
	}
	if !s.Model().HasVariable(*target) {
		return []string{fmt.Sprintf("variable `%s` is not a valid variable in the model.", *target)}
	}
	arity := len(s.Model().RegulatorsOf(*target))
	if *index >= arity {
		return []string{fmt.Sprintf("update function of `%s` has %d inputs, input index %d is invalid.", *target, arity, *index)}
	}
	return nil
}

func observationRefIssues(s *Sketch, dataset *DatasetID, observation *ObservationID) []string {
	if dataset == nil {
		return []string{"one of the required fields is not filled."}
	}
	ds, ok := s.Dataset(*dataset)
	if !ok {
		return []string{fmt.Sprintf("dataset `%s` is not a valid dataset.", *dataset)}
	}
	if observation != nil && !ds.HasObservation(*observation) {
		return []string{fmt.Sprintf("observation `%s` is not valid in dataset `%s`.", *observation, *dataset)}
	}
	return nil
}

func contextIssues(s *Sketch, context *string) []string {
	if context == nil {
		return nil
	}
	return formulaIssues(s, *context, nil)
}

func wildcardIssues(s *Sketch, wildcards []WildcardProposition) []string {
	var issues []string
	for _, w := range wildcards {
		if w.Kind == WildcardAttractorCount {
			continue
		}
		ds, ok := s.Dataset(w.Dataset)
		if !ok {
			issues = append(issues, fmt.Sprintf("wildcard `%s` references unknown dataset `%s`.", w.Raw, w.Dataset))
			continue
		}
		if w.Observation != nil && !ds.HasObservation(*w.Observation) {
			issues = append(issues, fmt.Sprintf("wildcard `%s` references unknown observation `%s` in dataset `%s`.", w.Raw, *w.Observation, w.Dataset))
		}
	}
	return issues
}

// formulaIssues validates the variable references of a canonical formula
// against the model. Identifier tokens are treated as variable references
// unless they are logic keywords, quantifier-bound names, function
// applications, brace-delimited state variables, or canonical wildcard
// tokens.
func formulaIssues(s *Sketch, formula string, wildcards []WildcardProposition) []string {
	skip := make(map[string]struct{}, len(wildcards))
	for _, w := range wildcards {
		skip[w.CanonicalToken()] = struct{}{}
	}
	var issues []string
	for _, ref := range formulaVariableRefs(formula, skip) {
		if !s.Model().HasVariable(VarID(ref)) {
			issues = append(issues, fmt.Sprintf("formula references unknown variable `%s`.", ref))
		}
	}
	return issues
}

// Logic keywords never treated as variable references: boolean constants,
// temporal operators, and quantifier names.
var formulaKeywords = map[string]struct{}{
	"true": {}, "false": {}, "True": {}, "False": {},
	"AX": {}, "EX": {}, "AF": {}, "EF": {}, "AG": {}, "EG": {},
	"AU": {}, "EU": {}, "AW": {}, "EW": {},
	"exists": {}, "forall": {},
}

func formulaVariableRefs(formula string, skip map[string]struct{}) []string {
	var refs []string
	seen := make(map[string]struct{})
	bound := make(map[string]struct{})
	prev := ""
	for i := 0; i < len(formula); {
		c := formula[i]
		if c == '{' {
			end := strings.IndexByte(formula[i:], '}')
			if end < 0 {
				break
			}
			i += end + 1
			continue
		}
		if !isIdentByte(c) || c >= '0' && c <= '9' {
			i++
			continue
		}
		j := i + 1
		for j < len(formula) && isIdentByte(formula[j]) {
			j++
		}
		token := formula[i:j]
		i = j
		switch {
		case j < len(formula) && formula[j] == '{':
			// hybrid quantifier such as V{x}:, not a reference
		case j < len(formula) && formula[j] == '(':
			// function application such as f_d(0), not a reference
		case prev == "exists" || prev == "forall":
			bound[token] = struct{}{}
		case keywordToken(token):
		default:
			if _, ok := bound[token]; ok {
				break
			}
			if _, ok := skip[token]; ok {
				break
			}
			if _, ok := seen[token]; !ok {
				seen[token] = struct{}{}
				refs = append(refs, token)
			}
		}
		prev = token
	}
	return refs
}

func keywordToken(token string) bool {
	_, ok := formulaKeywords[token]
	return ok
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
