package bake

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	exitCode int
}

func (r *stubRunner) Run(ctx context.Context, commandText string, bindings Bindings) (int, error) {
	return r.exitCode, nil
}

func newTestRegistry(t *testing.T, defs ...[]Word) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, d := range defs {
		require.NoError(t, reg.Define(d))
	}
	return reg
}

func planRuleIDs(p *Plan) []int {
	out := make([]int, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.RuleID
	}
	return out
}

func TestSolverChain(t *testing.T) {
	reg := newTestRegistry(t,
		tokens("%bin", ":", "%bin.o", "::", "link"),
		tokens("%x.o", ":", "%x.c", "::", "cc"),
		tokens("foo.c", ":"),
	)
	s := NewSolver(reg, nil)
	plan, err := s.Solve(context.Background(), []Word{"foo"})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	// cc fires before link, and the foo.c terminal fires before cc.
	pos := make(map[int]int, len(plan.Steps))
	for i, step := range plan.Steps {
		pos[step.RuleID] = i
	}
	require.Less(t, pos[2], pos[1], "foo.c terminal (rule 2) must precede cc (rule 1)")
	require.Less(t, pos[1], pos[0], "cc (rule 1) must precede link (rule 0)")

	ccStep := plan.Steps[pos[1]]
	x, ok := ccStep.Bindings.Single("x")
	require.True(t, ok)
	require.Equal(t, Word("foo"), x)

	// link's step must name cc's step index as a dependency, and cc's step
	// must name the foo.c terminal's step index, so a concurrent runner can
	// gate correctly without re-deriving this from the rule set.
	require.Equal(t, []int{pos[2]}, plan.Steps[pos[1]].Deps, "cc step must depend on the foo.c terminal step")
	require.Equal(t, []int{pos[1]}, plan.Steps[pos[0]].Deps, "link step must depend on the cc step")
}

func TestSolverUnsatisfiable(t *testing.T) {
	// No foo.c terminal exists anywhere, so foo.o can never ground; the
	// solver must notice it has stopped making progress rather than loop.
	reg := newTestRegistry(t,
		tokens("%x.o", ":", "%x.c", "::", "cc"),
	)
	s := NewSolver(reg, nil)
	_, err := s.Solve(context.Background(), []Word{"foo.o"})
	require.Error(t, err)
	var ug *UnsatisfiableGoalError
	require.ErrorAs(t, err, &ug)
	require.Contains(t, ug.Orphans, Word("foo.c"))
}

func TestSolverSearchBoundExceeded(t *testing.T) {
	// %bin has the everything-profile and so matches any remaining goal
	// word, recursively demanding a longer one (%bin.o); with no terminal
	// fact ever satisfying it, this is exactly the unbounded rewrite
	// chain the safety bound exists to catch.
	reg := newTestRegistry(t,
		tokens("%bin", ":", "%bin.o", "::", "link"),
	)
	s := NewSolver(reg, nil)
	_, err := s.Solve(context.Background(), []Word{"foo"})
	require.Error(t, err)
	var sbe *SearchBoundExceededError
	require.ErrorAs(t, err, &sbe)
}

func TestSolverUngroundedSpeculativeRewrite(t *testing.T) {
	reg := newTestRegistry(t,
		tokens("inout-%x", "=", "%x", "::", ":"),
		tokens("z.%x", ":"),
	)
	s := NewSolver(reg, &stubRunner{exitCode: 0})
	plan, err := s.Solve(context.Background(), []Word{"z.inout-5"})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	x, ok := plan.Steps[0].Bindings.Single("x")
	require.True(t, ok)
	require.Equal(t, Word("5"), x)
}

func TestSolverUngroundedCommandFailureRejectsRewrite(t *testing.T) {
	reg := newTestRegistry(t,
		tokens("inout-%x", "=", "%x", "::", ":"),
		tokens("z.%x", ":"),
	)
	s := NewSolver(reg, &stubRunner{exitCode: 1})
	plan, err := s.Solve(context.Background(), []Word{"z.inout-5"})
	// The rejected rewrite leaves the goal word as it was; "z.%x" still
	// grounds it, but with the unrewritten remainder bound to x.
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	x, ok := plan.Steps[0].Bindings.Single("x")
	require.True(t, ok)
	require.Equal(t, Word("inout-5"), x)
}

func TestSolverDeterministic(t *testing.T) {
	reg := newTestRegistry(t,
		tokens("%bin", ":", "%bin.o", "::", "link"),
		tokens("%x.o", ":", "%x.c", "::", "cc"),
		tokens("foo.c", ":"),
		tokens("bar.c", ":"),
	)
	s := NewSolver(reg, nil)
	first, err := s.Solve(context.Background(), []Word{"foo"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := s.Solve(context.Background(), []Word{"foo"})
		require.NoError(t, err)
		if diff := cmp.Diff(planRuleIDs(first), planRuleIDs(again)); diff != "" {
			t.Errorf("repeated solve produced a different plan shape (-first +again):\n%s", diff)
		}
	}
}

func TestSolverGoalOrderInsensitive(t *testing.T) {
	reg := newTestRegistry(t,
		tokens("%x.o", ":", "%x.c", "::", "cc"),
		tokens("foo.c", ":"),
		tokens("bar.c", ":"),
	)
	s := NewSolver(reg, nil)
	a, err := s.Solve(context.Background(), []Word{"foo.o", "bar.o"})
	require.NoError(t, err)
	b, err := s.Solve(context.Background(), []Word{"bar.o", "foo.o"})
	require.NoError(t, err)

	ruleSet := func(p *Plan) map[int]int {
		counts := make(map[int]int)
		for _, s := range p.Steps {
			counts[s.RuleID]++
		}
		return counts
	}
	require.Equal(t, ruleSet(a), ruleSet(b))
}
