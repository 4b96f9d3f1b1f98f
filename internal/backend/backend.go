// Package backend provides the Backend implementations the CLI wires
// behind pkg/bake's Plan execution: a content-hash FingerprintBackend for
// real builds and a NullBackend for dry-run/list-only invocations.
//
// The indexed, mutex-guarded record store below follows the same shape as
// the teacher's in-memory fact index: a plain map protected by a
// sync.RWMutex, read-heavy accessors taking the read lock, mutations
// taking the write lock.
package backend

import (
	"context"
	"sync"

	"github.com/spencertipping/bake/pkg/bake"
)

// record is what FingerprintBackend remembers about one (ruleID, binding
// key) pair: the input fingerprints it last saw and the fingerprints it
// produced.
type record struct {
	inputs  []bake.Fingerprint
	outputs []bake.Fingerprint
}

// Store is the fingerprint ledger FingerprintBackend consults. It is
// exported so cmd/bake can choose to persist it (or not) independently of
// the Backend that wraps it.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
}

// NewStore returns an empty, ready-to-use Store.
func NewStore() *Store {
	return &Store{records: make(map[string]record)}
}

func (s *Store) get(key string) (record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

func (s *Store) put(key string, r record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = r
}

// recordKey combines a rule identity with its binding set into the
// Store's lookup key. Two Steps for the same rule with different
// bindings (the common case: one compile rule, many source files) must
// never collide.
func recordKey(ruleID string, bindings bake.Bindings) string {
	return ruleID + "\x00" + bake.BindingsSignature(bindings)
}

// FingerprintBackend decides freshness by comparing a rule's recorded
// input fingerprints against the caller-supplied current ones; identical
// slices mean the rule's output is still valid and its command can be
// skipped.
type FingerprintBackend struct {
	store  *Store
	runner CommandRunner
}

// CommandRunner executes a grounded rule's command text. internal/shellexec
// provides the real, os/exec-based implementation.
type CommandRunner interface {
	Run(ctx context.Context, commandText string, bindings bake.Bindings) (bake.ExitStatus, error)
}

// NewFingerprintBackend returns a Backend that tracks freshness in store
// and executes commands through runner.
func NewFingerprintBackend(store *Store, runner CommandRunner) *FingerprintBackend {
	return &FingerprintBackend{store: store, runner: runner}
}

func (b *FingerprintBackend) IsFresh(ctx context.Context, ruleID string, bindings bake.Bindings, inputFingerprints []bake.Fingerprint) (bool, error) {
	r, ok := b.store.get(recordKey(ruleID, bindings))
	if !ok {
		return false, nil
	}
	return fingerprintsEqual(r.inputs, inputFingerprints), nil
}

func (b *FingerprintBackend) RecordOutput(ctx context.Context, ruleID string, bindings bake.Bindings, outputFingerprints []bake.Fingerprint) error {
	key := recordKey(ruleID, bindings)
	existing, _ := b.store.get(key)
	existing.outputs = append([]bake.Fingerprint(nil), outputFingerprints...)
	b.store.put(key, existing)
	return nil
}

// RecordInputs stashes the input fingerprints a command ran against, so a
// later IsFresh call has something to compare. Called by
// internal/executor immediately before invoking Execute.
func (b *FingerprintBackend) RecordInputs(ruleID string, bindings bake.Bindings, inputFingerprints []bake.Fingerprint) {
	key := recordKey(ruleID, bindings)
	existing, _ := b.store.get(key)
	existing.inputs = append([]bake.Fingerprint(nil), inputFingerprints...)
	b.store.put(key, existing)
}

func (b *FingerprintBackend) Execute(ctx context.Context, ruleID string, commandText string, bindings bake.Bindings) (bake.ExitStatus, error) {
	return b.runner.Run(ctx, commandText, bindings)
}

func fingerprintsEqual(a, b []bake.Fingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NullBackend always reports stale and never records anything; useful for
// --eval/--list invocations that only want to see the plan, and for tests
// that don't care about caching.
type NullBackend struct {
	Runner CommandRunner
}

func (b *NullBackend) IsFresh(ctx context.Context, ruleID string, bindings bake.Bindings, inputFingerprints []bake.Fingerprint) (bool, error) {
	return false, nil
}

func (b *NullBackend) RecordOutput(ctx context.Context, ruleID string, bindings bake.Bindings, outputFingerprints []bake.Fingerprint) error {
	return nil
}

func (b *NullBackend) Execute(ctx context.Context, ruleID string, commandText string, bindings bake.Bindings) (bake.ExitStatus, error) {
	if b.Runner == nil {
		return bake.ExitStatus{Code: 0}, nil
	}
	return b.Runner.Run(ctx, commandText, bindings)
}
