package bake

import (
	"regexp"
	"strings"
)

// varRefRE recognizes "%name" (singular) and "%@name" (plural) variable
// references inside a pattern term, per §3's "Variable reference" rule:
// name is [A-Za-z0-9_]+.
var varRefRE = regexp.MustCompile(`%(@?[A-Za-z0-9_]+)`)

// bareVarRefRE matches every "%", with or without a following variable
// name; ParseTerm compares its match count against varRefRE's to detect the
// EmptyPattern fail kind at parse time.
var bareVarRefRE = regexp.MustCompile(`%(@?[A-Za-z0-9_]+)?`)

// VarName is a variable's bare name (without the leading % or @).
type VarName string

// varOcc is one variable reference occurring within a term, in left-to-right
// order.
type varOcc struct {
	name   VarName
	plural bool
}

// Term is a single pattern term: a word-sized string containing zero or
// more variable references interleaved with literal segments.
type Term struct {
	raw     string
	literal []string // literal[i] precedes vars[i]; literal has len(vars)+1 entries
	vars    []varOcc
}

// Raw returns the term's original source text.
func (t *Term) Raw() string { return t.raw }

// Vars returns the term's variable occurrences in left-to-right order.
func (t *Term) Vars() []varOcc { return t.vars }

// HasPluralVar reports whether any variable in the term is plural (§4.1,
// used by the solver to classify unary vs. plural-output rules).
func (t *Term) HasPluralVar() bool {
	for _, v := range t.vars {
		if v.plural {
			return true
		}
	}
	return false
}

// VarNames returns the distinct variable names referenced by the term, in
// first-occurrence order.
func (t *Term) VarNames() []VarName {
	seen := make(map[VarName]struct{}, len(t.vars))
	out := make([]VarName, 0, len(t.vars))
	for _, v := range t.vars {
		if _, ok := seen[v.name]; ok {
			continue
		}
		seen[v.name] = struct{}{}
		out = append(out, v.name)
	}
	return out
}

// Profile returns the term with every variable reference replaced by the
// single character "%" — the term's shape. Two terms share a profile iff
// they match identical literal structure; "just %" is the everything-profile.
func (t *Term) Profile() string {
	var sb strings.Builder
	for i, lit := range t.literal {
		sb.WriteString(lit)
		if i < len(t.vars) {
			sb.WriteByte('%')
		}
	}
	return sb.String()
}

// IsEverythingProfile reports whether the term matches any word at all: a
// profile of exactly "%" with no surrounding literal content.
func (t *Term) IsEverythingProfile() bool {
	return t.Profile() == "%"
}

// ParseTerm parses a single pattern term's source text, splitting it into
// literal segments interleaved with %name / %@name variable references.
// Returns a *PatternError with FailEmptyPattern if a bare "%" appears with
// no following name.
func ParseTerm(raw string) (*Term, error) {
	locs := varRefRE.FindAllStringSubmatchIndex(raw, -1)

	// Any "%" not captured by varRefRE but captured by the looser
	// bareVarRefRE (which allows an absent name) is a malformed reference.
	bareLocs := bareVarRefRE.FindAllStringIndex(raw, -1)
	if len(bareLocs) != len(locs) {
		return nil, &PatternError{
			Kind:    FailEmptyPattern,
			Pattern: raw,
			Detail:  "a \"%\" reference has no following variable name",
		}
	}

	t := &Term{raw: raw}
	cursor := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		nameStart, nameEnd := loc[2], loc[3]
		t.literal = append(t.literal, raw[cursor:start])
		name := raw[nameStart:nameEnd]
		plural := strings.HasPrefix(name, "@")
		bare := name
		if plural {
			bare = name[1:]
		}
		t.vars = append(t.vars, varOcc{name: VarName(bare), plural: plural})
		cursor = end
	}
	t.literal = append(t.literal, raw[cursor:])
	return t, nil
}

// ParsePattern parses a sequence of term source strings into Terms.
func ParsePattern(raws []Word) ([]*Term, error) {
	out := make([]*Term, len(raws))
	for i, raw := range raws {
		t, err := ParseTerm(string(raw))
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// checkNoRepeatedVariable enforces the "no repeated variable" invariant
// (§3): no variable name may appear twice across the whole term list.
func checkNoRepeatedVariable(terms []*Term) error {
	seen := make(map[VarName]struct{})
	for _, t := range terms {
		for _, v := range t.vars {
			if _, ok := seen[v.name]; ok {
				return &MatchFailure{
					Kind:   FailRepeatedVariable,
					Detail: "variable %" + string(v.name) + " appears more than once in the pattern",
				}
			}
			seen[v.name] = struct{}{}
		}
	}
	return nil
}
