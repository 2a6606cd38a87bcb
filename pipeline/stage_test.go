// gen3dapi/pipeline/stage_test.go
package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"gen3dapi/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_BuildArgs(t *testing.T) {
	st := &Stage{
		Name:    "pose-estimation",
		Command: `colmap feature_extractor --image_path ${IMAGES_DIR} --database_path "${JOB_DIR}/database.db"`,
	}
	vars := Vars{
		VarImagesDir: "/data/jobs/j1/images with spaces",
		VarJobDir:    "/data/jobs/j1",
	}

	name, args, err := st.BuildArgs(vars)
	require.NoError(t, err)
	assert.Equal(t, "colmap", name)
	assert.Equal(t, []string{
		"feature_extractor",
		"--image_path", "/data/jobs/j1/images with spaces",
		"--database_path", "/data/jobs/j1/database.db",
	}, args)
}

func TestStage_BuildArgsErrors(t *testing.T) {
	_, _, err := (&Stage{Name: "x", Command: `tool "unterminated`}).BuildArgs(Vars{})
	assert.ErrorContains(t, err, "invalid command syntax")

	_, _, err = (&Stage{Name: "x", Command: ""}).BuildArgs(Vars{})
	assert.ErrorContains(t, err, "empty command")
}

func TestCheck_Verify(t *testing.T) {
	dir := t.TempDir()
	vars := Vars{VarJobDir: dir}

	t.Run("missing path", func(t *testing.T) {
		c := &Check{Path: "${JOB_DIR}/missing"}
		assert.ErrorContains(t, c.verify(vars), "missing")
	})

	t.Run("file exists", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "database.db"), nil, 0o644))
		c := &Check{Path: "${JOB_DIR}/database.db"}
		assert.NoError(t, c.verify(vars))
	})

	t.Run("empty directory fails non-empty check", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
		c := &Check{Path: "${JOB_DIR}/empty", NonEmptyDir: true}
		assert.ErrorContains(t, c.verify(vars), "empty")
	})

	t.Run("populated directory passes", func(t *testing.T) {
		sub := filepath.Join(dir, "models")
		require.NoError(t, os.Mkdir(sub, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "step-100.ckpt"), nil, 0o644))
		c := &Check{Path: "${JOB_DIR}/models", NonEmptyDir: true}
		assert.NoError(t, c.verify(vars))
	})

	t.Run("file where directory expected", func(t *testing.T) {
		c := &Check{Path: "${JOB_DIR}/database.db", NonEmptyDir: true}
		assert.ErrorContains(t, c.verify(vars), "not a directory")
	})
}

func TestForEngine(t *testing.T) {
	cfg := &config.Config{
		MinFrames:        10,
		Iterations:       7000,
		MaxNumIterations: 10000,
		FFmpegBin:        "ffmpeg",
		FFprobeBin:       "ffprobe",
		ColmapBin:        "colmap",
		NsBinPrefix:      "ns",
		PythonBin:        "python",
	}

	for _, engine := range []string{config.EngineNerfstudio, config.EngineGaussian, config.EngineColmap} {
		t.Run(engine, func(t *testing.T) {
			cfg.Engine = engine
			def, err := ForEngine(cfg)
			require.NoError(t, err)
			assert.Equal(t, engine, def.Engine)
			assert.NotEmpty(t, def.Stages)
			assert.NotEmpty(t, def.Artifact)
			assert.Equal(t, 10, def.MinFrames)

			// Progress intervals are contiguous from the sampling phase
			// to 100, so polled progress can never regress.
			prev := samplingEnd
			for _, st := range def.Stages {
				assert.Equal(t, prev, st.Start, "stage %s must start where the previous ended", st.Name)
				assert.Greater(t, st.End, st.Start, "stage %s", st.Name)
				if st.Ramp != nil {
					assert.Less(t, st.Ramp.Ceiling, st.End, "ramp for %s must stay below the interval ceiling", st.Name)
				}
				prev = st.End
			}
		})
	}

	cfg.Engine = "voxelizer"
	_, err := ForEngine(cfg)
	assert.Error(t, err)
}
