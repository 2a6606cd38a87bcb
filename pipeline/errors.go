// gen3dapi/pipeline/errors.go
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrArtifactNotFound signals that the final stage reported success but
// no output file matched the pipeline's artifact rule.
var ErrArtifactNotFound = errors.New("artifact not found after final stage")

// ErrArtifactAmbiguous signals that more than one file matched the
// artifact rule; the resolver never guesses between candidates.
var ErrArtifactAmbiguous = errors.New("multiple artifact candidates found")

// InsufficientFramesError is raised when sampling keeps fewer frames
// than the pipeline's minimum viable input. Later stages must not run.
type InsufficientFramesError struct {
	Got int
	Min int
}

func (e *InsufficientFramesError) Error() string {
	return fmt.Sprintf("not enough frames extracted (%d, minimum %d); video too short?", e.Got, e.Min)
}

// StageError captures an external tool exiting nonzero or failing its
// success predicate.
type StageError struct {
	Stage    string
	ExitCode int
	Output   string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (exit=%d): %s", e.Stage, e.ExitCode, tail(e.Output, 500))
}

func (e *StageError) Unwrap() error { return e.Err }

// TimeoutError marks a stage that exceeded its allotted time. The
// external process has already been killed when this is returned.
type TimeoutError struct {
	Stage string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out after %s", e.Stage, e.Limit)
}

// tail keeps diagnostics in job records readable.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
