package sketch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WildcardKind enumerates the supported reference kinds a formula may embed
// between '%' delimiters.
type WildcardKind string

// Supported wildcard reference kinds.
const (
	// WildcardObservation references a single observation, written `dataset/observation`.
	WildcardObservation WildcardKind = "observation"
	// WildcardTrajectory references a whole dataset as a trajectory, written `trajectory(dataset)`.
	WildcardTrajectory WildcardKind = "trajectory"
	// WildcardAttractors references attractors matching a dataset or one observation.
	WildcardAttractors WildcardKind = "attractors"
	// WildcardFixedPoints references fixed points matching a dataset or one observation.
	WildcardFixedPoints WildcardKind = "fixed_points"
	// WildcardTrapSpaces references trap spaces matching a dataset or one observation.
	WildcardTrapSpaces WildcardKind = "trap_spaces"
	// WildcardAttractorCount references an attractor count range, written `attractor_count(min, max)`.
	WildcardAttractorCount WildcardKind = "attractor_count"
)

// WildcardProposition is one resolved formula-embedded data reference: the
// raw substring the user wrote and the reference it resolved to.
type WildcardProposition struct {
	Raw         string         `json:"raw"`
	Kind        WildcardKind   `json:"kind"`
	Dataset     DatasetID      `json:"dataset,omitempty"`
	Observation *ObservationID `json:"observation,omitempty"`
	Minimal     int            `json:"minimal,omitempty"`
	Maximal     int            `json:"maximal,omitempty"`
}

// CanonicalToken derives the deterministic token substituted into the
// canonical formula. Token -> reference -> token is stable.
func (w WildcardProposition) CanonicalToken() string {
	switch w.Kind {
	case WildcardObservation:
		return fmt.Sprintf("observation_%s_%s", w.Dataset, *w.Observation)
	case WildcardTrajectory:
		return fmt.Sprintf("trajectory_%s", w.Dataset)
	case WildcardAttractors:
		return fmt.Sprintf("attractors_%s_%s", w.Dataset, w.observationOrAll())
	case WildcardFixedPoints:
		return fmt.Sprintf("fixed_points_%s_%s", w.Dataset, w.observationOrAll())
	case WildcardTrapSpaces:
		return fmt.Sprintf("trap_spaces_%s_%s", w.Dataset, w.observationOrAll())
	case WildcardAttractorCount:
		return fmt.Sprintf("attractor_count_%d_%d", w.Minimal, w.Maximal)
	}
	return ""
}

func (w WildcardProposition) observationOrAll() string {
	if w.Observation == nil {
		return "all"
	}
	return string(*w.Observation)
}

func (w WildcardProposition) copy() WildcardProposition {
	if w.Observation != nil {
		obs := *w.Observation
		w.Observation = &obs
	}
	return w
}

// wildcardRule pairs a reference-kind grammar with its builder. Rules are
// tried in order; the first whose pattern matches claims the token. New
// embeddable kinds are added here without touching the scanner.
type wildcardRule struct {
	kind  WildcardKind
	re    *regexp.Regexp
	build func(raw string, groups []string) (WildcardProposition, error)
}

const identifierRe = `[a-zA-Z_][a-zA-Z0-9_]*`

var wildcardRules = []wildcardRule{
	{
		kind: WildcardObservation,
		re:   regexp.MustCompile(`^(` + identifierRe + `)\s*/\s*(` + identifierRe + `)$`),
		build: func(raw string, groups []string) (WildcardProposition, error) {
			obs := ObservationID(groups[2])
			return WildcardProposition{
				Raw:         raw,
				Kind:        WildcardObservation,
				Dataset:     DatasetID(groups[1]),
				Observation: &obs,
			}, nil
		},
	},
	{
		kind: WildcardTrajectory,
		re:   regexp.MustCompile(`^trajectory\(\s*(` + identifierRe + `)\s*\)$`),
		build: func(raw string, groups []string) (WildcardProposition, error) {
			return WildcardProposition{
				Raw:     raw,
				Kind:    WildcardTrajectory,
				Dataset: DatasetID(groups[1]),
			}, nil
		},
	},
	{
		kind:  WildcardAttractors,
		re:    regexp.MustCompile(`^attractors\(\s*(` + identifierRe + `)(?:\s*,\s*(` + identifierRe + `))?\s*\)$`),
		build: buildDatasetScoped(WildcardAttractors),
	},
	{
		kind:  WildcardFixedPoints,
		re:    regexp.MustCompile(`^fixed_points\(\s*(` + identifierRe + `)(?:\s*,\s*(` + identifierRe + `))?\s*\)$`),
		build: buildDatasetScoped(WildcardFixedPoints),
	},
	{
		kind:  WildcardTrapSpaces,
		re:    regexp.MustCompile(`^trap_spaces\(\s*(` + identifierRe + `)(?:\s*,\s*(` + identifierRe + `))?\s*\)$`),
		build: buildDatasetScoped(WildcardTrapSpaces),
	},
	{
		kind: WildcardAttractorCount,
		re:   regexp.MustCompile(`^attractor_count\(\s*(\d+)\s*,\s*(\d+)\s*\)$`),
		build: func(raw string, groups []string) (WildcardProposition, error) {
			minimal, err := strconv.Atoi(groups[1])
			if err != nil {
				return WildcardProposition{}, validationf("attractor count bound %q: %v", groups[1], err)
			}
			maximal, err := strconv.Atoi(groups[2])
			if err != nil {
				return WildcardProposition{}, validationf("attractor count bound %q: %v", groups[2], err)
			}
			if err := checkAttractorBounds(minimal, maximal); err != nil {
				return WildcardProposition{}, err
			}
			return WildcardProposition{
				Raw:     raw,
				Kind:    WildcardAttractorCount,
				Minimal: minimal,
				Maximal: maximal,
			}, nil
		},
	},
}

func buildDatasetScoped(kind WildcardKind) func(string, []string) (WildcardProposition, error) {
	return func(raw string, groups []string) (WildcardProposition, error) {
		prop := WildcardProposition{Raw: raw, Kind: kind, Dataset: DatasetID(groups[1])}
		if groups[2] != "" {
			obs := ObservationID(groups[2])
			prop.Observation = &obs
		}
		return prop, nil
	}
}

// ParseWildcard resolves the inner text of one %-delimited token against the
// registered reference grammars.
func ParseWildcard(inner string) (WildcardProposition, error) {
	for _, rule := range wildcardRules {
		groups := rule.re.FindStringSubmatch(inner)
		if groups == nil {
			continue
		}
		return rule.build(inner, groups)
	}
	return WildcardProposition{}, referencef("invalid wildcard proposition %q", inner)
}

// ProcessWildcards scans formula left to right for %-delimited tokens,
// resolves each against the reference grammars, and substitutes its
// canonical token. It returns the canonical formula and the resolved
// wildcards in order of appearance. The canonical output contains no
// delimiters, so reprocessing it is the identity.
func ProcessWildcards(formula string) (string, []WildcardProposition, error) {
	var (
		b     strings.Builder
		props []WildcardProposition
	)
	rest := formula
	for {
		start := strings.IndexByte(rest, '%')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		off := strings.IndexByte(rest[start+1:], '%')
		if off < 0 {
			return "", nil, validationf("unmatched '%%' in formula")
		}
		end := start + 1 + off
		prop, err := ParseWildcard(rest[start+1 : end])
		if err != nil {
			return "", nil, err
		}
		b.WriteString(rest[:start])
		b.WriteString(prop.CanonicalToken())
		props = append(props, prop)
		rest = rest[end+1:]
	}
	return b.String(), props, nil
}
