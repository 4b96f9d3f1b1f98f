package bake

import "context"

// Fingerprint is an opaque content identifier a Backend assigns to a goal
// word's current state — typically a content hash, but a Backend is free
// to use a modification time or any other scheme, since only equality
// between two Fingerprints taken at different times is ever compared.
type Fingerprint string

// ExitStatus is the result of running one grounded rule's command.
type ExitStatus struct {
	Code   int
	Stderr string
}

// Backend is the pluggable collaborator a Plan is executed against. It
// owns the only side effects in this package's model: deciding whether a
// rule's outputs are already up to date, recording what a command
// produced, and actually running a command. pkg/bake never imports an
// implementation; internal/backend and internal/shellexec provide the
// ones cmd/bake wires together.
type Backend interface {
	// IsFresh reports whether ruleID's last recorded outputs already
	// reflect inputFingerprints, so the Step that grounds it can be
	// skipped.
	IsFresh(ctx context.Context, ruleID string, bindings Bindings, inputFingerprints []Fingerprint) (bool, error)

	// RecordOutput stores outputFingerprints against ruleID/bindings
	// after a Step's command ran successfully. internal/backend's
	// FingerprintBackend keeps them in its record but decides IsFresh from
	// the input fingerprints it stored through RecordInputs.
	RecordOutput(ctx context.Context, ruleID string, bindings Bindings, outputFingerprints []Fingerprint) error

	// Execute runs one grounded rule's command text with the given
	// environment-style bindings (at minimum %in and %out) and returns
	// its exit status.
	Execute(ctx context.Context, ruleID string, commandText string, bindings Bindings) (ExitStatus, error)
}
