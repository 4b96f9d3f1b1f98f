// Package shellexec is the external command shell collaborator behind
// Backend.Execute: it runs a rule's command text through "sh -c",
// capturing stderr for CommandFailedError reporting. This is the one
// concern spec.md explicitly scopes out, but a runnable CLI needs a real
// shell, so it gets the simplest faithful implementation and stays
// swappable behind internal/backend.CommandRunner.
package shellexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/spencertipping/bake/pkg/bake"
	"go.uber.org/zap"
)

// Runner shells out via "sh -c" with %in/%out already substituted into
// commandText by the caller (pkg/bake.Expand, using the rule's command
// template and bindings merged with synthetic %in/%out entries).
type Runner struct {
	logger *zap.Logger
}

// NewRunner returns a Runner that logs each command it runs through
// logger. A nil logger is replaced with zap.NewNop().
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes commandText via "sh -c", returning its exit status.
// bindings is accepted for interface symmetry with CommandRunner and is
// not used; commandText has already been fully expanded and is what gets
// logged at debug level.
func (r *Runner) Run(ctx context.Context, commandText string, bindings bake.Bindings) (bake.ExitStatus, error) {
	r.logger.Debug("executing command", zap.String("command", commandText))

	cmd := exec.CommandContext(ctx, "sh", "-c", commandText)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	status := bake.ExitStatus{Stderr: stderr.String()}
	if err == nil {
		status.Code = 0
		return status, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status.Code = exitErr.ExitCode()
		return status, nil
	}
	return status, err
}
