// gen3dapi/pipeline/runner.go
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is one external command invocation outcome.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ProcessRunner abstracts external tool execution so stages are
// testable without the real toolchains installed.
type ProcessRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ExecRunner drives commands via os/exec. Context cancellation or
// deadline expiry kills the process.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}
