// gen3dapi/pipeline/artifact_test.go
package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveArtifact_ExplicitPath(t *testing.T) {
	workDir := t.TempDir()
	outputRoot := t.TempDir()
	produced := filepath.Join(workDir, "point_cloud.ply")
	require.NoError(t, os.WriteFile(produced, []byte("ply data"), 0o644))

	def := Definition{Artifact: "${JOB_DIR}/point_cloud.ply"}
	vars := Vars{VarJobDir: workDir}

	canonical, err := resolveArtifact(def, vars, outputRoot, "job-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputRoot, "job-1.ply"), canonical)

	data, err := os.ReadFile(canonical)
	require.NoError(t, err)
	assert.Equal(t, "ply data", string(data))

	_, err = os.Stat(produced)
	assert.True(t, os.IsNotExist(err), "resolved artifact must be moved, not copied")
}

func TestResolveArtifact_GlobSingleMatch(t *testing.T) {
	outputRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputRoot, "job-1_export.ply"), []byte("ply"), 0o644))

	def := Definition{Artifact: "${EXPORT_DIR}/${JOB_ID}*.ply"}
	vars := Vars{VarExportDir: outputRoot, VarJobID: "job-1"}

	canonical, err := resolveArtifact(def, vars, outputRoot, "job-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputRoot, "job-1.ply"), canonical)
}

func TestResolveArtifact_AlreadyCanonical(t *testing.T) {
	outputRoot := t.TempDir()
	canonical := filepath.Join(outputRoot, "job-1.ply")
	require.NoError(t, os.WriteFile(canonical, []byte("ply"), 0o644))

	def := Definition{Artifact: "${EXPORT_DIR}/${JOB_ID}.ply"}
	vars := Vars{VarExportDir: outputRoot, VarJobID: "job-1"}

	got, err := resolveArtifact(def, vars, outputRoot, "job-1")
	require.NoError(t, err)
	assert.Equal(t, canonical, got)
}

func TestResolveArtifact_NoCandidates(t *testing.T) {
	outputRoot := t.TempDir()
	def := Definition{Artifact: "${EXPORT_DIR}/${JOB_ID}*.ply"}
	vars := Vars{VarExportDir: outputRoot, VarJobID: "job-1"}

	_, err := resolveArtifact(def, vars, outputRoot, "job-1")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestResolveArtifact_AmbiguousCandidates(t *testing.T) {
	outputRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputRoot, "job-1_a.ply"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outputRoot, "job-1_b.ply"), []byte("b"), 0o644))

	def := Definition{Artifact: "${EXPORT_DIR}/${JOB_ID}*.ply"}
	vars := Vars{VarExportDir: outputRoot, VarJobID: "job-1"}

	_, err := resolveArtifact(def, vars, outputRoot, "job-1")
	assert.ErrorIs(t, err, ErrArtifactAmbiguous)
}

func TestCleanupWorkFiles(t *testing.T) {
	base := t.TempDir()
	jobDir := filepath.Join(base, "jobs", "job-1")
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "images"), 0o755))
	upload := filepath.Join(base, "job-1.mp4")
	require.NoError(t, os.WriteFile(upload, []byte("video"), 0o644))
	artifact := filepath.Join(base, "job-1.ply")
	require.NoError(t, os.WriteFile(artifact, []byte("ply"), 0o644))

	cleanupWorkFiles(jobDir, upload)

	_, err := os.Stat(jobDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(upload)
	assert.True(t, os.IsNotExist(err))

	// The canonical artifact is never part of cleanup.
	_, err = os.Stat(artifact)
	assert.NoError(t, err)
}
