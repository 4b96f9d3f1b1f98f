package bake

import (
	"context"
	"sort"
	"strconv"
)

// CommandRunner executes a rule's speculative command during ungrounded
// rewriting (§4.5). A nil Runner causes any ungrounded rule that carries a
// command to be treated as always rejected, matching "command failure
// quietly rejects the rewrite".
type CommandRunner interface {
	Run(ctx context.Context, commandText string, bindings Bindings) (exitCode int, err error)
}

// Solver turns a requested goal set into a grounded Plan by repeatedly
// expanding ungrounded rules to a fixpoint and then searching grounded
// rules for a way to ground every goal (§4.5). A Solver is read-only
// against its Registry; all mutation happens during the definition phase
// (§5).
type Solver struct {
	reg    *Registry
	runner CommandRunner
}

// NewSolver builds a Solver over reg. runner may be nil if no ungrounded
// rule in reg carries a speculative command.
func NewSolver(reg *Registry, runner CommandRunner) *Solver {
	return &Solver{reg: reg, runner: runner}
}

// restVarName is the synthetic plural variable used to absorb whatever
// goal words are not part of a multi-output rule's own outputs, per
// §4.5's "(outputs %@__rest) = goals[*]" construction. User patterns are
// expected not to reuse this name; doing so is a (documented) limitation
// shared with the source design.
const restVarName = VarName("__rest")

var restTerm = mustParseTerm("%@__rest")

func mustParseTerm(raw string) *Term {
	t, err := ParseTerm(raw)
	if err != nil {
		panic(err)
	}
	return t
}

type disjunct struct {
	ruleID   int
	bindings Bindings
	prereqs  []int
	terminal bool
}

type goalEntry struct {
	word      Word
	grounded  bool
	disjuncts []disjunct
	chosen    int
	cursor    int
}

// Solve resolves goalWords into a Plan. Rule definition order, goal
// insertion order, and disjunction discovery order are all preserved, so
// two solves of an identical rule set and goal list produce byte-identical
// plans (§5, §8).
func (s *Solver) Solve(ctx context.Context, goalWords []Word) (*Plan, error) {
	expanded, err := s.expandGoalsFixpoint(ctx, goalWords)
	if err != nil {
		return nil, err
	}
	expanded = dedupePreserveOrder(expanded)
	requiredGoals := len(expanded)
	limit := 64 + requiredGoals*requiredGoals*requiredGoals

	goals := make([]*goalEntry, len(expanded))
	index := make(map[Word]int, len(expanded))
	for i, w := range expanded {
		goals[i] = &goalEntry{word: w, chosen: -1}
		index[w] = i
	}

	unify := func(w Word) int {
		if idx, ok := index[w]; ok {
			return idx
		}
		idx := len(goals)
		goals = append(goals, &goalEntry{word: w, chosen: -1})
		index[w] = idx
		return idx
	}

	groundImmediately := func(i int, d disjunct) {
		if goals[i].grounded {
			return
		}
		goals[i].disjuncts = append(goals[i].disjuncts, d)
		goals[i].chosen = len(goals[i].disjuncts) - 1
		goals[i].grounded = true
	}

	terminalUnary, terminalMulti, nonterminal := s.classifyGroundedRules()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(goals) > limit {
			return nil, &SearchBoundExceededError{Limit: limit, InitialGoals: requiredGoals, GoalCount: len(goals)}
		}

		progressed := false

		// 1. Terminal sweep.
		for i, g := range goals {
			if g.grounded {
				continue
			}
			for _, rule := range terminalUnary {
				bindings, err := Match(rule.Outputs, []Word{g.word})
				if err != nil {
					continue
				}
				groundImmediately(i, disjunct{ruleID: rule.ID, bindings: bindings, terminal: true})
				progressed = true
				break
			}
		}
		for _, rule := range terminalMulti {
			words, bindings, ok := s.matchMultiOutput(rule, goals)
			if !ok {
				continue
			}
			for _, w := range words {
				idx, present := index[w]
				if !present || goals[idx].grounded {
					continue
				}
				groundImmediately(idx, disjunct{ruleID: rule.ID, bindings: bindings, terminal: true})
				progressed = true
			}
		}

		// 2. Parent propagation, as a repeated fixpoint rescan (result-
		// equivalent to a worklist; simpler to reason about given the
		// bounded goal_size_limit keeps a full rescan cheap).
		for {
			changedThisRound := false
			for _, g := range goals {
				if g.grounded {
					continue
				}
				if d, ok := pickReadyDisjunct(g, goals); ok {
					g.chosen = d
					g.grounded = true
					changedThisRound = true
					progressed = true
				}
			}
			if !changedThisRound {
				break
			}
		}

		// 3. Expansion.
		for _, g := range goals {
			if g.grounded {
				continue
			}
			for ; g.cursor < len(nonterminal); g.cursor++ {
				rule := nonterminal[g.cursor]
				if rule.IsUnary() {
					bindings, err := Match(rule.Outputs, []Word{g.word})
					if err != nil {
						continue
					}
					prereqWords := Expand(bindings, rule.Inputs)
					prereqs := make([]int, len(prereqWords))
					for k, w := range prereqWords {
						prereqs[k] = unify(w)
					}
					g.disjuncts = append(g.disjuncts, disjunct{ruleID: rule.ID, bindings: bindings, prereqs: prereqs})
					progressed = true
					continue
				}

				words, bindings, ok := s.matchMultiOutput(rule, goals)
				if !ok {
					continue
				}
				if !containsWord(words, g.word) {
					continue
				}
				prereqWords := Expand(bindings, rule.Inputs)
				prereqs := make([]int, len(prereqWords))
				for k, w := range prereqWords {
					prereqs[k] = unify(w)
				}
				for _, w := range words {
					idx := unify(w)
					goals[idx].disjuncts = append(goals[idx].disjuncts, disjunct{ruleID: rule.ID, bindings: bindings, prereqs: prereqs})
				}
				progressed = true
			}
		}

		done := true
		for i := 0; i < requiredGoals; i++ {
			if !goals[i].grounded {
				done = false
				break
			}
		}
		if done {
			return buildPlan(goals, requiredGoals)
		}
		if !progressed {
			// Name every still-ungrounded goal, not just the originally
			// requested ones: the actual missing fact (e.g. a terminal
			// rule's .c file) is usually a derived prerequisite, and is
			// more useful to report than the top-level goal alone.
			var orphans []Word
			for _, g := range goals {
				if !g.grounded {
					orphans = append(orphans, g.word)
				}
			}
			return nil, &UnsatisfiableGoalError{Orphans: orphans}
		}
	}
}

// pickReadyDisjunct scans g's recorded disjuncts for one whose prerequisite
// goals are all already grounded, preferring a terminal disjunct over a
// nonterminal one and, among equals, the earliest-added.
func pickReadyDisjunct(g *goalEntry, goals []*goalEntry) (int, bool) {
	best := -1
	for i, d := range g.disjuncts {
		ready := true
		for _, p := range d.prereqs {
			if !goals[p].grounded {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if d.terminal {
			return i, true
		}
		if best == -1 {
			best = i
		}
	}
	return best, best != -1
}

func containsWord(words []Word, w Word) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

// matchMultiOutput tries rule's output pattern, augmented with the
// %@__rest catch-all, against the current full goal vocabulary. On
// success it returns the exact words the rule grounds (the outputs
// expanded without __rest) and the bindings with __rest removed. A
// multi-output rule only fires when all of its outputs are present among
// the current goals, which this match naturally enforces.
func (s *Solver) matchMultiOutput(rule *Rule, goals []*goalEntry) ([]Word, Bindings, bool) {
	text := make([]Word, len(goals))
	for i, g := range goals {
		text[i] = g.word
	}

	augmented := append(append([]*Term(nil), rule.Outputs...), restTerm)
	bindings, err := Match(augmented, text)
	if err != nil {
		return nil, nil, false
	}
	delete(bindings, restVarName)
	words := Expand(bindings, rule.Outputs)
	return words, bindings, true
}

func (s *Solver) classifyGroundedRules() (terminalUnary, terminalMulti, nonterminal []*Rule) {
	for _, r := range s.reg.rules {
		if r.Kind != KindGrounded {
			continue
		}
		if r.IsTerminal() {
			if r.IsUnary() {
				terminalUnary = append(terminalUnary, r)
			} else {
				terminalMulti = append(terminalMulti, r)
			}
		} else {
			nonterminal = append(nonterminal, r)
		}
	}
	terminalUnary = everythingLast(terminalUnary)
	nonterminal = everythingLast(nonterminal)
	return
}

// everythingLast moves everything-profile rules (match any word) to the
// end of the list, preserving relative order otherwise, so more specific
// rules are always tried first (§4.5, "recorded separately as a fallback").
func everythingLast(rules []*Rule) []*Rule {
	var normal, everything []*Rule
	for _, r := range rules {
		if r.IsEverythingRule() {
			everything = append(everything, r)
		} else {
			normal = append(normal, r)
		}
	}
	return append(normal, everything...)
}

// buildPlan selects one disjunct per grounded goal reachable from the
// required goals, topologically sorts the resulting (rule, bindings) steps
// by prerequisite order, and records each step's prerequisite step indices
// in Step.Deps so a concurrent runner can gate on them directly instead of
// re-deriving the dependency graph from scratch.
func buildPlan(goals []*goalEntry, requiredGoals int) (*Plan, error) {
	visited := make(map[int]bool)
	var order []int
	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		d := goals[i].disjuncts[goals[i].chosen]
		for _, p := range d.prereqs {
			visit(p)
		}
		order = append(order, i)
	}
	for i := 0; i < requiredGoals; i++ {
		visit(i)
	}

	deps := make(map[int]map[int]struct{}, len(order))
	for _, i := range order {
		deps[i] = make(map[int]struct{})
		d := goals[i].disjuncts[goals[i].chosen]
		for _, p := range d.prereqs {
			if visited[p] {
				deps[i][p] = struct{}{}
			}
		}
	}

	sorted, err := toposort(deps)
	if err != nil {
		return nil, err
	}

	// A multi-output rule's several goals share one disjunct, and so share
	// one step; stepForGoal maps every goal onto the step index that
	// grounds it, and keyToStep collapses repeat (rule, bindings) pairs
	// onto the step that first introduced them.
	stepForGoal := make(map[int]int, len(sorted))
	keyToStep := make(map[string]int, len(sorted))
	plan := &Plan{}

	for _, i := range sorted {
		d := goals[i].disjuncts[goals[i].chosen]
		key := bindingsKey(d.ruleID, d.bindings)

		stepIdx, exists := keyToStep[key]
		if !exists {
			stepIdx = len(plan.Steps)
			keyToStep[key] = stepIdx
			plan.Steps = append(plan.Steps, Step{RuleID: d.ruleID, Bindings: d.bindings, Terminal: d.terminal})
		}
		stepForGoal[i] = stepIdx

		depSet := make(map[int]struct{}, len(plan.Steps[stepIdx].Deps))
		for _, dp := range plan.Steps[stepIdx].Deps {
			depSet[dp] = struct{}{}
		}
		for _, p := range d.prereqs {
			pStep, ok := stepForGoal[p]
			if !ok || pStep == stepIdx {
				continue
			}
			depSet[pStep] = struct{}{}
		}
		newDeps := make([]int, 0, len(depSet))
		for dp := range depSet {
			newDeps = append(newDeps, dp)
		}
		sort.Ints(newDeps)
		plan.Steps[stepIdx].Deps = newDeps
	}

	return plan, nil
}

func bindingsKey(ruleID int, b Bindings) string {
	return strconv.Itoa(ruleID) + BindingsSignature(b)
}
