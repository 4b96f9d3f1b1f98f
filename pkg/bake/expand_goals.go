package bake

import (
	"context"
	"regexp"
	"strings"
)

// expandGoalsFixpoint rewrites the initial goal words against ungrounded
// rules until no rule changes any of them, per §4.5's "ungrounded rules
// are consulted first, to a fixpoint" phase. Rules are tried in
// definition order; a rule whose speculative command fails is treated as
// not matching and the next candidate rule is tried instead (§4.5, §7).
//
// A rule's output pattern is tried two ways against each goal word: first
// as a whole-word Match (the common case, where a goal word is entirely
// consumed by a rule's output pattern), then — if that fails and the rule
// has exactly one output term — as an unanchored substring match spliced
// back into the surrounding literal text. The source's own solver treats
// this second case loosely enough that a strictly faithful port would be
// nonterminating on realistic rule sets; restricting it to single-output,
// non-everything-profile terms keeps it both terminating and useful for
// the common "rewrite one piece of a compound goal word" case.
const goalExpansionPassLimit = 1024

// ExpandTerms runs the same ungrounded-rewrite fixpoint as Solve's first
// phase, without going on to ground anything. This is what `--eval`
// exposes: a way to see how a term expands without requiring its goal to
// be buildable.
func (s *Solver) ExpandTerms(ctx context.Context, words []Word) ([]Word, error) {
	return s.expandGoalsFixpoint(ctx, words)
}

func (s *Solver) expandGoalsFixpoint(ctx context.Context, goalWords []Word) ([]Word, error) {
	words := append([]Word(nil), goalWords...)

	for pass := 0; pass < goalExpansionPassLimit; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []Word
		changed := false
		for _, w := range words {
			rep, didChange, err := s.expandWord(ctx, w)
			if err != nil {
				return nil, err
			}
			next = append(next, rep...)
			if didChange {
				changed = true
			}
		}
		words = next
		if !changed {
			return words, nil
		}
	}
	return nil, &InternalInvariantError{
		Message: "ungrounded rule rewriting did not reach a fixpoint",
		Context: map[string]any{"pass_limit": goalExpansionPassLimit},
	}
}

// expandWord tries every ungrounded rule, in definition order, against w.
// It returns the first successful rewrite's replacement words, or
// ([]Word{w}, false, nil) if no rule applies.
func (s *Solver) expandWord(ctx context.Context, w Word) ([]Word, bool, error) {
	for _, rule := range s.reg.rules {
		if rule.Kind != KindUngrounded {
			continue
		}
		rep, bindings, ok := tryRewrite(rule, w)
		if !ok {
			continue
		}
		if rule.HasCommand {
			cmdBindings := bindings.With("in", w).With("out", WordList(rep).Join())
			cmdWords := Expand(cmdBindings, rule.Command)
			if s.runner == nil {
				continue
			}
			exitCode, err := s.runner.Run(ctx, string(cmdWords.Join()), cmdBindings)
			if err != nil || exitCode != 0 {
				continue
			}
		}
		return rep, true, nil
	}
	return []Word{w}, false, nil
}

// tryRewrite attempts to rewrite word w using rule's output pattern as the
// left-hand side and rule's input pattern as the replacement template.
func tryRewrite(rule *Rule, w Word) ([]Word, Bindings, bool) {
	if bindings, err := Match(rule.Outputs, []Word{w}); err == nil {
		return Expand(bindings, rule.Inputs), bindings, true
	}

	if len(rule.Outputs) != 1 {
		return nil, nil, false
	}
	term := rule.Outputs[0]
	if term.IsEverythingProfile() {
		// A bare "%x" would match almost anything almost anywhere as an
		// unanchored substring; never splice on it.
		return nil, nil, false
	}

	capRE := unanchoredCaptureRegexp(term)
	loc := capRE.FindStringSubmatchIndex(string(w))
	if loc == nil {
		return nil, nil, false
	}

	bindings := NewBindings()
	for i, v := range term.vars {
		gs, ge := loc[2+2*i], loc[3+2*i]
		if gs < 0 {
			continue
		}
		bindings[v.name] = WordList{Word(string(w)[gs:ge])}
	}

	rep := Expand(bindings, rule.Inputs)
	if len(rep) != 1 {
		// The substring-splice path only supports a replacement that
		// collapses back into a single word; anything else is left for
		// the grounded solver to decide is unsatisfiable.
		return nil, nil, false
	}
	prefix := string(w)[:loc[0]]
	suffix := string(w)[loc[1]:]
	return []Word{Word(prefix + string(rep[0]) + suffix)}, bindings, true
}

// unanchoredCaptureRegexp builds a capture regex from the same
// literal/variable structure shapeAndCaptureRegexps uses for whole-word
// matching, but with non-greedy (.*?) captures and without the ^...$
// anchors, so it can locate a pattern occurring anywhere inside a larger
// compound goal word.
func unanchoredCaptureRegexp(t *Term) *regexp.Regexp {
	var sb strings.Builder
	for i, lit := range t.literal {
		sb.WriteString(regexp.QuoteMeta(lit))
		if i < len(t.vars) {
			sb.WriteString("(.*?)")
		}
	}
	return regexp.MustCompile(sb.String())
}
