// gen3dapi/pipeline/artifact.go
package pipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// resolveArtifact locates the file produced by the final stage using
// the definition's artifact rule and moves it to the canonical
// per-job path under the output root. Exactly one candidate must
// exist.
func resolveArtifact(def Definition, vars Vars, outputRoot, jobID string) (string, error) {
	pattern := vars.Expand(def.Artifact)

	var candidates []string
	if hasGlobMeta(pattern) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
		}
		candidates = matches
	} else if _, err := os.Stat(pattern); err == nil {
		candidates = []string{pattern}
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w (looked for %s)", ErrArtifactNotFound, pattern)
	case 1:
	default:
		return "", fmt.Errorf("%w (%d matches for %s)", ErrArtifactAmbiguous, len(candidates), pattern)
	}

	canonical := filepath.Join(outputRoot, jobID+".ply")
	if candidates[0] == canonical {
		return canonical, nil
	}
	if err := moveFile(candidates[0], canonical); err != nil {
		return "", fmt.Errorf("cannot place artifact at %s: %w", canonical, err)
	}
	return canonical, nil
}

// cleanupWorkFiles removes the job's working directory and the
// uploaded source. The canonical artifact lives under the output root
// and is never touched here.
func cleanupWorkFiles(jobDir, sourcePath string) {
	if err := os.RemoveAll(jobDir); err != nil {
		log.Printf("Warning: could not remove working directory %s: %v", jobDir, err)
	}
	if sourcePath != "" {
		if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: could not remove uploaded source %s: %v", sourcePath, err)
		}
	}
}

func hasGlobMeta(path string) bool {
	for _, c := range path {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
