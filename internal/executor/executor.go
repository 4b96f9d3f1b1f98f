// Package executor runs a solved Plan against a Backend. Every Step gets
// its own goroutine, gated on the completion of the Steps its own
// Step.Deps names, so a step can never start before the prerequisite steps
// it depends on have finished — independent steps run concurrently, bounded
// by a fixed worker limit, while dependent ones are serialized by the gate
// rather than by hoping list order alone keeps them apart. The worker pool
// shape (fixed-size semaphore, goroutines draining it until shutdown) is
// adapted from the teacher's StaticWorkerPool; cancellation propagation
// across the whole run uses golang.org/x/sync/errgroup instead of the
// teacher's own WaitGroup/error channel plumbing, since errgroup already
// generalizes that pattern.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/spencertipping/bake/pkg/bake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fingerprinter produces a content Fingerprint for a single prerequisite
// word (typically a file path). The default Fingerprinter installed by New
// always returns the empty Fingerprint, which makes every step look perpetually
// fresh-or-stale in lockstep — fine for --eval/--list, wrong for a real
// build, so cmd/bake always injects a real BatchFingerprinter when wiring
// a FingerprintBackend.
type Fingerprinter func(word bake.Word) (bake.Fingerprint, error)

// BatchFingerprinter fingerprints a whole word list in one call. When set,
// it is used instead of Fingerprinter, letting a backend batch its work
// (internal/backend.FileFingerprints, for instance, still fingerprints one
// file at a time internally, but this is the seam a smarter backend would
// use to fingerprint many files in one pass).
type BatchFingerprinter func(words []bake.Word) ([]bake.Fingerprint, error)

// Executor runs a bake.Plan's steps against a bake.Backend.
type Executor struct {
	reg                *bake.Registry
	backend            bake.Backend
	maxWorkers         int
	logger             *zap.Logger
	fingerprinter      Fingerprinter
	batchFingerprinter BatchFingerprinter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithFingerprinter overrides the default always-empty Fingerprinter.
func WithFingerprinter(fp Fingerprinter) Option {
	return func(e *Executor) { e.fingerprinter = fp }
}

// WithBatchFingerprinter overrides per-word fingerprinting with a
// whole-list call; when set it takes precedence over WithFingerprinter.
func WithBatchFingerprinter(bf BatchFingerprinter) Option {
	return func(e *Executor) { e.batchFingerprinter = bf }
}

// New returns an Executor bounded to maxWorkers concurrent steps, whose
// rule identities (outputs, inputs, command templates) come from reg. A
// non-positive maxWorkers defaults to runtime.NumCPU(), matching the
// teacher's StaticWorkerPool default.
func New(reg *bake.Registry, backend bake.Backend, maxWorkers int, opts ...Option) *Executor {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	e := &Executor{
		reg:        reg,
		backend:    backend,
		maxWorkers: maxWorkers,
		logger:     zap.NewNop(),
		fingerprinter: func(bake.Word) (bake.Fingerprint, error) {
			return "", nil
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every Step in plan, skipping any whose Backend.IsFresh
// reports up to date. Each step waits for every step named in its own
// Deps to finish before it starts — including, if that prerequisite
// failed, never starting at all — so the partial order §5 requires is
// honored regardless of how many workers run concurrently; steps with no
// Deps relation between them may start in any order, bounded by the
// Executor's worker limit.
func (e *Executor) Run(ctx context.Context, plan *bake.Plan) error {
	sem := make(chan struct{}, e.maxWorkers)
	done := make([]chan struct{}, len(plan.Steps))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var mu sync.Mutex
	failed := make([]bool, len(plan.Steps))

	group, ctx := errgroup.WithContext(ctx)
	for i := range plan.Steps {
		i := i
		step := plan.Steps[i]

		group.Go(func() error {
			defer close(done[i])

			for _, dep := range step.Deps {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
				mu.Lock()
				depFailed := failed[dep]
				mu.Unlock()
				if depFailed {
					mu.Lock()
					failed[i] = true
					mu.Unlock()
					return nil
				}
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			if err := e.runStep(ctx, step); err != nil {
				mu.Lock()
				failed[i] = true
				mu.Unlock()
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

func (e *Executor) runStep(ctx context.Context, step bake.Step) error {
	ruleIDStr := fmt.Sprintf("%d", step.RuleID)
	e.logger.Debug("running step", zap.String("rule_id", ruleIDStr), zap.Bool("terminal", step.Terminal))

	if step.Terminal {
		return nil
	}

	rules := e.reg.Rules()
	if step.RuleID < 0 || step.RuleID >= len(rules) {
		return &bake.InternalInvariantError{
			Message: "plan step names a rule ID outside the registry",
			Context: map[string]any{"rule_id": step.RuleID},
		}
	}
	rule := rules[step.RuleID]

	inputs := bake.Expand(step.Bindings, rule.Inputs)
	outputs := bake.Expand(step.Bindings, rule.Outputs)

	inputFPs, err := e.fingerprintAll(inputs)
	if err != nil {
		return err
	}

	fresh, err := e.backend.IsFresh(ctx, ruleIDStr, step.Bindings, inputFPs)
	if err != nil {
		return err
	}
	if fresh {
		e.logger.Debug("skipping up-to-date step", zap.String("rule_id", ruleIDStr))
		return nil
	}

	// Backends that also want to remember this step's input fingerprints
	// (so the *next* IsFresh call has something to compare against) may
	// implement this small optional interface; internal/backend.FingerprintBackend
	// does.
	if r, ok := e.backend.(interface {
		RecordInputs(ruleID string, bindings bake.Bindings, inputFingerprints []bake.Fingerprint)
	}); ok {
		r.RecordInputs(ruleIDStr, step.Bindings, inputFPs)
	}

	cmdBindings := step.Bindings.With("in", inputs.Join()).With("out", outputs.Join())
	commandText := string(bake.Expand(cmdBindings, rule.Command).Join())

	status, err := e.backend.Execute(ctx, ruleIDStr, commandText, cmdBindings)
	if err != nil {
		return err
	}
	if status.Code != 0 {
		return &bake.CommandFailedError{
			RuleID:   step.RuleID,
			Command:  commandText,
			ExitCode: status.Code,
			Stderr:   status.Stderr,
		}
	}

	outputFPs, err := e.fingerprintAll(outputs)
	if err != nil {
		return err
	}

	return e.backend.RecordOutput(ctx, ruleIDStr, step.Bindings, outputFPs)
}

func (e *Executor) fingerprintAll(words bake.WordList) ([]bake.Fingerprint, error) {
	if e.batchFingerprinter != nil {
		return e.batchFingerprinter(words)
	}
	out := make([]bake.Fingerprint, len(words))
	for i, w := range words {
		fp, err := e.fingerprinter(w)
		if err != nil {
			return nil, err
		}
		out[i] = fp
	}
	return out, nil
}
