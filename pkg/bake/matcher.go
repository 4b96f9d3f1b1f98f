package bake

import (
	"fmt"
	"regexp"
	"strings"
)

// Match binds a pattern (an ordered list of terms) over a sequence of text
// words, per §4.2. It returns the resulting Bindings, or a *MatchFailure
// wrapped in an error describing why no binding was possible.
//
// Pattern terms are processed left-to-right. A term is "shadowed" if a
// later term has an identical profile; a shadowed term claims at most one
// word, leaving the rest of its profile group to the next term of that
// shape. This resolves the ambiguity that would otherwise arise when two
// terms compete for the same words, deterministically in favor of the
// earlier, more specific term.
func Match(pattern []*Term, text []Word) (Bindings, error) {
	if err := checkNoRepeatedVariable(pattern); err != nil {
		return nil, err
	}

	profiles := make([]string, len(pattern))
	for i, t := range pattern {
		profiles[i] = t.Profile()
	}

	result := NewBindings()
	remaining := append([]Word(nil), text...)

	for i, term := range pattern {
		shadowed := false
		for j := i + 1; j < len(pattern); j++ {
			if profiles[j] == profiles[i] {
				shadowed = true
				break
			}
		}

		bound, newRemaining, err := matchOneTerm(term, remaining, shadowed)
		if err != nil {
			return nil, err
		}
		remaining = newRemaining

		for name, vals := range bound {
			result[name] = vals
		}
	}

	if len(remaining) > 0 {
		return nil, &MatchFailure{
			Kind:   FailNotConsumed,
			Detail: fmt.Sprintf("%d word(s) left over: %v", len(remaining), remaining),
		}
	}

	return result, nil
}

// termState accumulates, per variable index within one term, the word(s)
// seen so far and tracks which single index (if any) has been promoted to
// plural for this term.
type termState struct {
	values    [][]Word
	pluralIdx int
}

func newTermState(n int) *termState {
	return &termState{values: make([][]Word, n), pluralIdx: -1}
}

// tryApply attempts to fold one candidate word's captured group values into
// the term's accumulated state, per the at-most-one-plural rule (§4.2.d).
// It either commits all index updates atomically or rejects the whole word.
func (s *termState) tryApply(vars []varOcc, groups []string) bool {
	promote := -1
	for i, val := range groups {
		if len(s.values[i]) == 0 {
			continue
		}
		existing := s.values[i][len(s.values[i])-1]
		if Word(val) == existing {
			continue
		}
		if s.pluralIdx == i {
			continue
		}
		if s.pluralIdx == -1 && vars[i].plural && (promote == -1 || promote == i) {
			promote = i
			continue
		}
		return false
	}

	if promote != -1 {
		s.pluralIdx = promote
	}
	for i, val := range groups {
		if len(s.values[i]) == 0 {
			s.values[i] = append(s.values[i], Word(val))
			continue
		}
		existing := s.values[i][len(s.values[i])-1]
		if Word(val) == existing {
			continue
		}
		s.values[i] = append(s.values[i], Word(val))
	}
	return true
}

// collapse folds the per-index accumulated values into final Bindings,
// taking the first value for singular indices and the full list for the
// one (if any) promoted-plural index.
func (s *termState) collapse(vars []varOcc) Bindings {
	out := NewBindings()
	for i, v := range vars {
		vals := s.values[i]
		if len(vals) == 0 {
			continue
		}
		if i == s.pluralIdx {
			out[v.name] = WordList(vals)
		} else {
			out[v.name] = WordList{vals[0]}
		}
	}
	return out
}

// shapeAndCaptureRegexps builds the term's profile-shape filter (no
// capturing groups; used for §4.2.b's factoring step) and its precise
// capturing regex (used for §4.2.c's bind step). Both are derived from the
// same literal/variable structure, so they always agree on match/no-match;
// disagreement is the FailInternalMismatch bug signal.
func shapeAndCaptureRegexps(t *Term) (shape, capture *regexp.Regexp) {
	var shapeSB, capSB strings.Builder
	shapeSB.WriteByte('^')
	capSB.WriteByte('^')
	for i, lit := range t.literal {
		q := regexp.QuoteMeta(lit)
		shapeSB.WriteString(q)
		capSB.WriteString(q)
		if i < len(t.vars) {
			shapeSB.WriteString(".*")
			capSB.WriteString("(.*)")
		}
	}
	shapeSB.WriteByte('$')
	capSB.WriteByte('$')
	return regexp.MustCompile(shapeSB.String()), regexp.MustCompile(capSB.String())
}

// matchOneTerm factors the remaining text by the term's profile, binds the
// matching candidates, and returns the resulting bindings plus whatever
// text remains for later terms.
func matchOneTerm(term *Term, remaining []Word, shadowed bool) (Bindings, []Word, error) {
	shapeRE, capRE := shapeAndCaptureRegexps(term)

	var candidateIdx []int
	for i, w := range remaining {
		if shapeRE.MatchString(string(w)) {
			candidateIdx = append(candidateIdx, i)
		}
	}

	chosen := candidateIdx
	if shadowed && len(candidateIdx) > 1 {
		chosen = candidateIdx[:1]
	}

	chosenSet := make(map[int]struct{}, len(chosen))
	for _, i := range chosen {
		chosenSet[i] = struct{}{}
	}

	state := newTermState(len(term.vars))
	newRemaining := make([]Word, 0, len(remaining))

	for i, w := range remaining {
		if _, isChosen := chosenSet[i]; !isChosen {
			newRemaining = append(newRemaining, w)
			continue
		}

		m := capRE.FindStringSubmatch(string(w))
		if m == nil {
			return nil, nil, &MatchFailure{
				Kind:   FailInternalMismatch,
				Detail: fmt.Sprintf("word %q passed the shape filter for profile %q but failed its capture regex", w, term.Profile()),
			}
		}

		if !state.tryApply(term.vars, m[1:]) {
			newRemaining = append(newRemaining, w)
		}
	}

	return state.collapse(term.vars), newRemaining, nil
}
