package bake

import (
	"errors"
	"fmt"
)

// ErrDefaultGoalsWithCommand is returned when a default-goal-list
// definition (empty outputs) carries a command, which §4.4 forbids.
var ErrDefaultGoalsWithCommand = errors.New("bake: a default goal list definition may not carry a command")

const (
	sepGrounded   Word = ":"
	sepUngrounded Word = "="
	sepCommand    Word = "::"
)

// Registry holds one instance's rule set: grounded and ungrounded rules in
// definition order, plus the keyed global map, plus the default goal list
// set by an empty-outputs definition. It is the sole owner of mutable state
// during the definition phase; a Solver only reads it (§5).
type Registry struct {
	rules        []*Rule
	globals      Bindings
	defaultGoals WordList
	hasDefault   bool
}

// NewRegistry returns an empty instance.
func NewRegistry() *Registry {
	return &Registry{globals: NewBindings()}
}

// Rules returns all stored rules in definition order.
func (reg *Registry) Rules() []*Rule {
	return reg.rules
}

// Globals returns the current global bindings.
func (reg *Registry) Globals() Bindings {
	return reg.globals
}

// DefaultGoals returns the goal list set by the last empty-outputs
// definition, and whether one was ever set.
func (reg *Registry) DefaultGoals() (WordList, bool) {
	return reg.defaultGoals, reg.hasDefault
}

// Define parses one definition call's token vector per §4.4's dispatch
// state machine and either stores a new Rule, upserts a global binding, or
// sets the default goal list. Separators (":", "=", "::") are recognized
// only as standalone tokens.
func (reg *Registry) Define(tokens []Word) error {
	var outs, ins, cmd []Word
	state := "outs"
	grounded := true

	for _, tok := range tokens {
		switch state {
		case "outs":
			switch tok {
			case sepGrounded:
				state = "ins"
				grounded = true
			case sepUngrounded:
				state = "ins"
				grounded = false
			case sepCommand:
				state = "cmd"
				grounded = true
			default:
				outs = append(outs, tok)
			}
		case "ins":
			if tok == sepCommand {
				state = "cmd"
				continue
			}
			ins = append(ins, tok)
		case "cmd":
			cmd = append(cmd, tok)
		}
	}

	if len(outs) == 0 {
		if len(cmd) > 0 {
			return ErrDefaultGoalsWithCommand
		}
		insTerms, err := ParsePattern(ins)
		if err != nil {
			return err
		}
		reg.defaultGoals = Expand(reg.globals, insTerms)
		reg.hasDefault = true
		return nil
	}

	expandedOuts, err := reg.preExpand(outs)
	if err != nil {
		return err
	}
	expandedIns, err := reg.preExpand(ins)
	if err != nil {
		return err
	}
	expandedCmd, err := reg.preExpand(cmd)
	if err != nil {
		return err
	}

	outTerms, err := ParsePattern(expandedOuts)
	if err != nil {
		return err
	}
	if err := checkNoRepeatedVariable(outTerms); err != nil {
		mf := err.(*MatchFailure)
		return &PatternError{Kind: mf.Kind, Pattern: fmt.Sprint(outs), Detail: mf.Detail}
	}

	hasCommand := len(cmd) > 0

	if !grounded && !hasCommand && !anyWordHasVarRef(expandedIns) {
		// A global's left-hand side is matched unexpanded: it names the
		// variables being bound, so an earlier value of the same global must
		// not be substituted into it, or an upsert could never match.
		lhsTerms, err := ParsePattern(outs)
		if err != nil {
			return err
		}
		bindings, err := Match(lhsTerms, expandedIns)
		if err != nil {
			mf, ok := err.(*MatchFailure)
			if !ok {
				return err
			}
			return &MatchErr{Context: "global definition", Cause: mf}
		}
		for name, vals := range bindings {
			reg.globals[name] = vals
		}
		return nil
	}

	inTerms, err := ParsePattern(expandedIns)
	if err != nil {
		return err
	}
	cmdTerms, err := ParsePattern(expandedCmd)
	if err != nil {
		return err
	}

	kind := KindUngrounded
	if grounded {
		kind = KindGrounded
	}

	rule := &Rule{
		ID:         len(reg.rules),
		Kind:       kind,
		Outputs:    outTerms,
		Inputs:     inTerms,
		Command:    cmdTerms,
		HasCommand: hasCommand,
	}
	reg.rules = append(reg.rules, rule)
	return nil
}

// preExpand substitutes the current global bindings into a raw token
// vector, parsing it as template terms first. Variables the rule itself
// will introduce (not yet in the global map) pass through untouched, since
// Expand leaves unbound references as literal text.
func (reg *Registry) preExpand(tokens []Word) ([]Word, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	terms, err := ParsePattern(tokens)
	if err != nil {
		return nil, err
	}
	expanded := Expand(reg.globals, terms)
	out := make([]Word, len(expanded))
	copy(out, expanded)
	return out, nil
}

func anyWordHasVarRef(words []Word) bool {
	for _, w := range words {
		if varRefRE.MatchString(string(w)) {
			return true
		}
	}
	return false
}
