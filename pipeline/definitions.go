// gen3dapi/pipeline/definitions.go
package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"gen3dapi/config"
)

// samplingEnd closes the frame-sampling progress interval; the first
// external stage picks up from here.
const samplingEnd = 20

// Definitions for the three supported reconstruction technologies.
// Commands mirror the respective toolchains' CLIs; everything else
// (sequencing, timeouts, failure classification) is shared executor
// logic.

// ForEngine builds the pipeline definition selected by configuration.
func ForEngine(cfg *config.Config) (Definition, error) {
	switch cfg.Engine {
	case config.EngineNerfstudio:
		return nerfstudio(cfg), nil
	case config.EngineGaussian:
		return gaussianSplatting(cfg), nil
	case config.EngineColmap:
		return colmap(cfg), nil
	default:
		return Definition{}, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func nerfstudio(cfg *config.Config) Definition {
	ns := cfg.NsBinPrefix
	return Definition{
		Engine:    config.EngineNerfstudio,
		MinFrames: cfg.MinFrames,
		Stages: []Stage{
			{
				Name:    "pose-estimation",
				Message: "Estimating camera poses (COLMAP)...",
				Command: ns + `-process-data images --data ${IMAGES_DIR} --output-dir ${JOB_DIR}/colmap --num-frames-target ${NUM_FRAMES}`,
				Start:   samplingEnd,
				End:     40,
				Timeout: cfg.StageTimeout,
				Check:   &Check{Path: "${JOB_DIR}/colmap", NonEmptyDir: true},
			},
			{
				Name:    "training",
				Message: "Training NeRF model (Instant-NGP)...",
				Command: ns + `-train instant-ngp --data ${JOB_DIR}/colmap --output-dir ${OUT_DIR} --max-num-iterations ` + strconv.Itoa(cfg.MaxNumIterations) + ` --vis tensorboard`,
				Start:   40,
				End:     90,
				Timeout: cfg.TrainTimeout,
				Ramp:    &Ramp{Every: 5 * time.Second, Step: 5, Ceiling: 85},
				Check:   &Check{Path: "${OUT_DIR}/instant-ngp/nerfstudio_models", NonEmptyDir: true},
			},
			{
				Name:    "export",
				Message: "Exporting point cloud...",
				Command: ns + `-export pointcloud --load-config ${OUT_DIR}/instant-ngp/nerfstudio_models/config.yml --output-dir ${EXPORT_DIR} --num-points 1000000 --remove-outliers True --normal-method model_output`,
				Start:   90,
				End:     100,
				Timeout: cfg.StageTimeout,
			},
		},
		// ns-export picks its own file name within the output root.
		Artifact: "${EXPORT_DIR}/${JOB_ID}*.ply",
	}
}

func gaussianSplatting(cfg *config.Config) Definition {
	iters := strconv.Itoa(cfg.Iterations)
	return Definition{
		Engine:      config.EngineGaussian,
		MinFrames:   cfg.MinFrames,
		ImagesInDir: "input", // convert.py expects frames under <job>/input
		Stages: []Stage{
			{
				Name:    "pose-estimation",
				Message: "Estimating camera poses (COLMAP)...",
				Command: cfg.PythonBin + ` ` + cfg.GaussianSplattingDir + `/convert.py -s ${JOB_DIR} --skip_matching`,
				Dir:     cfg.GaussianSplattingDir,
				Start:   samplingEnd,
				End:     40,
				Timeout: cfg.StageTimeout,
				Check:   &Check{Path: "${JOB_DIR}/sparse", NonEmptyDir: true},
			},
			{
				Name:    "training",
				Message: "Training Gaussian Splatting model...",
				Command: cfg.PythonBin + ` train.py -s ${JOB_DIR} -m ${OUT_DIR} --iterations ` + iters + ` --test_iterations ` + iters + ` --save_iterations ` + iters + ` --quiet`,
				Dir:     cfg.GaussianSplattingDir,
				Start:   40,
				End:     90,
				Timeout: cfg.TrainTimeout,
				Ramp:    &Ramp{Every: 3 * time.Second, Step: 5, Ceiling: 85},
				Check:   &Check{Path: "${OUT_DIR}/point_cloud/iteration_" + iters + "/point_cloud.ply"},
			},
		},
		// The trainer writes the point cloud itself at a known path.
		Artifact: "${OUT_DIR}/point_cloud/iteration_" + iters + "/point_cloud.ply",
	}
}

func colmap(cfg *config.Config) Definition {
	bin := cfg.ColmapBin
	return Definition{
		Engine:    config.EngineColmap,
		MinFrames: cfg.MinFrames,
		Stages: []Stage{
			{
				Name:    "feature-extraction",
				Message: "COLMAP: extracting features...",
				Command: bin + ` feature_extractor --database_path ${JOB_DIR}/database.db --image_path ${IMAGES_DIR} --ImageReader.single_camera 1 --ImageReader.camera_model SIMPLE_RADIAL`,
				Start:   samplingEnd,
				End:     40,
				Timeout: cfg.StageTimeout,
				Check:   &Check{Path: "${JOB_DIR}/database.db"},
			},
			{
				Name:    "feature-matching",
				Message: "COLMAP: matching features...",
				Command: bin + ` exhaustive_matcher --database_path ${JOB_DIR}/database.db`,
				Start:   40,
				End:     60,
				Timeout: cfg.StageTimeout,
			},
			{
				Name:    "mapping",
				Message: "COLMAP: sparse 3D reconstruction...",
				Command: bin + ` mapper --database_path ${JOB_DIR}/database.db --image_path ${IMAGES_DIR} --output_path ${JOB_DIR}/sparse`,
				Start:   60,
				End:     80,
				Timeout: cfg.TrainTimeout,
				Ramp:    &Ramp{Every: 5 * time.Second, Step: 5, Ceiling: 75},
				Check:   &Check{Path: "${JOB_DIR}/sparse/0", NonEmptyDir: true},
			},
			{
				Name:    "export",
				Message: "Exporting point cloud...",
				Command: bin + ` model_converter --input_path ${JOB_DIR}/sparse/0 --output_path ${EXPORT_DIR}/${JOB_ID}.ply --output_type PLY`,
				Start:   80,
				End:     100,
				Timeout: cfg.StageTimeout,
			},
		},
		Artifact: "${EXPORT_DIR}/${JOB_ID}.ply",
	}
}
