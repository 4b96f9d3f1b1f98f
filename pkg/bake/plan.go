package bake

// Step is one entry in a Plan: the rule to fire and the bindings it fires
// with. A terminal rule's Step still appears, marked Terminal, so the steps
// that depend on it can name it in their Deps. Deps names the indices (into the owning Plan's Steps) of
// every step that must complete before this one may begin; a runner that
// wants to parallelize independent steps must gate each step on its own
// Deps rather than assuming list order alone is enough.
type Step struct {
	RuleID   int
	Bindings Bindings
	Terminal bool
	Deps     []int
}

// Plan is an ordered list of Steps satisfying: executing them in order,
// consulting the Backend before each, produces every requested goal (§4.5).
// The order is already a valid topological order (every Step appears after
// everything its Deps name), so a runner that executes sequentially needs
// nothing more; a concurrent runner must still honor Deps explicitly, since
// two Steps with no Deps relation between them may be run in either order or
// in parallel, while two Steps that do have one may not.
type Plan struct {
	Steps []Step
}
