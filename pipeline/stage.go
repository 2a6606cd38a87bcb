// gen3dapi/pipeline/stage.go
package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Placeholders available in stage command and path templates.
const (
	VarJobID     = "${JOB_ID}"
	VarJobDir    = "${JOB_DIR}"
	VarImagesDir = "${IMAGES_DIR}"
	VarOutDir    = "${OUT_DIR}"    // job-local stage output
	VarExportDir = "${EXPORT_DIR}" // global canonical output root
	VarSource    = "${SOURCE}"     // uploaded video path
)

// Vars binds placeholder values for one job run.
type Vars map[string]string

// Expand substitutes every bound placeholder in a template.
func (v Vars) Expand(template string) string {
	pairs := make([]string, 0, len(v)*2)
	for k, val := range v {
		pairs = append(pairs, k, val)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Ramp describes heuristic progress for a stage whose own progress is
// not observable: while the process runs, progress gains Step every
// Every, never past Ceiling. The reported value is an estimate, not a
// measurement, and the job record flags it as such.
type Ramp struct {
	Every   time.Duration
	Step    int
	Ceiling int
}

// Check is a stage success predicate evaluated after a zero exit.
type Check struct {
	Path        string // template
	NonEmptyDir bool   // require a directory with at least one entry
}

func (c *Check) verify(vars Vars) error {
	path := vars.Expand(c.Path)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("expected output %s is missing", path)
	}
	if c.NonEmptyDir {
		if !info.IsDir() {
			return fmt.Errorf("expected output %s is not a directory", path)
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("cannot read output directory %s", path)
		}
		if len(entries) == 0 {
			return fmt.Errorf("output directory %s is empty", path)
		}
	}
	return nil
}

// Stage is one external-process step of a pipeline. Start and End
// bound its contribution to overall job progress.
type Stage struct {
	Name    string
	Message string
	Command string // binary followed by args, shlex syntax, ${VAR} placeholders
	Dir     string // optional working directory template
	Start   int
	End     int
	Timeout time.Duration
	Ramp    *Ramp
	Check   *Check
}

// BuildArgs splits the command template and substitutes placeholders
// per argument. Splitting before substitution keeps paths with spaces
// intact in a single argument.
func (s *Stage) BuildArgs(vars Vars) (name string, args []string, err error) {
	parts, err := shlex.Split(s.Command)
	if err != nil {
		return "", nil, fmt.Errorf("invalid command syntax for stage %s: %w", s.Name, err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("empty command for stage %s", s.Name)
	}
	for i, p := range parts {
		parts[i] = vars.Expand(p)
	}
	return parts[0], parts[1:], nil
}

// Definition is a complete pipeline for one reconstruction technology.
// Technologies differ only in this data; the executor is generic.
type Definition struct {
	Engine    string
	Stages    []Stage
	MinFrames int

	// ImagesInDir overrides the job-local directory sampled frames are
	// written to. Empty means "images".
	ImagesInDir string

	// Artifact locates the final stage's output. An explicit path is
	// preferred; glob metacharacters are allowed where the tool names
	// outputs unpredictably, in which case exactly one match must exist.
	Artifact string
}
