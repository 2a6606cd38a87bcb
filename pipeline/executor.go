// gen3dapi/pipeline/executor.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gen3dapi/config"
	"gen3dapi/job"
)

// Executor drives one job through the configured pipeline: frame
// sampling, each external stage in order, artifact resolution, then
// cleanup. It is the only writer of the job's record while the job
// runs; every outcome ends up in the registry.
type Executor struct {
	cfg      *config.Config
	def      Definition
	registry job.Registry
	sampler  *Sampler

	// throttle is swappable so tests run without host probing.
	throttle func(*config.Config) error
}

func NewExecutor(cfg *config.Config, def Definition, registry job.Registry, runner ProcessRunner) *Executor {
	return &Executor{
		cfg:      cfg,
		def:      def,
		registry: registry,
		sampler: &Sampler{
			FFprobeBin: cfg.FFprobeBin,
			FFmpegBin:  cfg.FFmpegBin,
			Runner:     runner,
		},
		throttle: checkResources,
	}
}

// Run executes the pipeline for one admitted job. The returned error
// mirrors what was recorded; callers only log it.
func (e *Executor) Run(ctx context.Context, jobID string) (err error) {
	defer func() {
		// A malfunctioning job must never take the service down.
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
			e.fail(jobID, err)
		}
	}()

	rec, err := e.registry.Get(jobID)
	if err != nil {
		return err
	}

	if _, err := e.registry.Update(jobID, func(j *job.Job) {
		if job.ValidTransition(j.Status, job.StatusProcessing) {
			j.Status = job.StatusProcessing
		}
		j.Progress = 0
		j.Message = "Extracting frames..."
	}); err != nil {
		return err
	}
	log.Printf("Job %s processing (engine=%s)", jobID, e.def.Engine)

	if err := e.throttle(e.cfg); err != nil {
		err = fmt.Errorf("insufficient system resources: %w", err)
		e.fail(jobID, err)
		return err
	}

	jobDir := filepath.Join(e.cfg.JobsDir(), jobID)
	imagesSub := e.def.ImagesInDir
	if imagesSub == "" {
		imagesSub = "images"
	}
	imagesDir := filepath.Join(jobDir, imagesSub)
	outDir := filepath.Join(jobDir, "output")
	for _, d := range []string{imagesDir, outDir, e.cfg.OutputDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			err = fmt.Errorf("cannot create working directory: %w", err)
			e.fail(jobID, err)
			return err
		}
	}

	vars := Vars{
		VarJobID:     jobID,
		VarJobDir:    jobDir,
		VarImagesDir: imagesDir,
		VarOutDir:    outDir,
		VarExportDir: e.cfg.OutputDir(),
		VarSource:    rec.SourcePath,
	}

	sampleCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	kept, err := e.sampler.Sample(sampleCtx, rec.SourcePath, imagesDir, e.cfg.TargetFrames, e.def.MinFrames)
	cancel()
	if err != nil {
		e.fail(jobID, err)
		return err
	}
	vars["${NUM_FRAMES}"] = strconv.Itoa(kept)
	e.setProgress(jobID, samplingEnd, false, "")

	for i := range e.def.Stages {
		if err := e.runStage(ctx, jobID, &e.def.Stages[i], vars); err != nil {
			e.fail(jobID, err)
			return err
		}
	}

	artifact, err := resolveArtifact(e.def, vars, e.cfg.OutputDir(), jobID)
	if err != nil {
		e.fail(jobID, err)
		return err
	}

	if _, err := e.registry.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = 100
		j.Estimated = false
		j.Message = "3D model generated successfully"
		j.DownloadURL = "/download/" + filepath.Base(artifact)
	}); err != nil {
		return err
	}
	log.Printf("Job %s completed, artifact at %s", jobID, artifact)

	if e.cfg.CleanupWorkFiles {
		cleanupWorkFiles(jobDir, rec.SourcePath)
	}
	return nil
}

// runStage executes one external stage under its timeout, driving the
// heuristic progress ramp while the process is alive.
func (e *Executor) runStage(ctx context.Context, jobID string, st *Stage, vars Vars) error {
	e.setProgress(jobID, st.Start, false, st.Message)

	name, args, err := st.BuildArgs(vars)
	if err != nil {
		return err
	}

	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if st.Timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, st.Timeout)
	}
	defer cancel()

	stopRamp := func() {}
	if st.Ramp != nil {
		stopRamp = e.startRamp(stageCtx, jobID, st)
	}

	log.Printf("Job %s stage %s: %s %v", jobID, st.Name, name, args)
	res, runErr := e.sampler.Runner.Run(stageCtx, vars.Expand(st.Dir), name, args...)
	stopRamp()

	if runErr != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Stage: st.Name, Limit: st.Timeout}
		}
		return &StageError{Stage: st.Name, ExitCode: res.ExitCode, Output: res.Stderr + res.Stdout, Err: runErr}
	}
	if st.Check != nil {
		if err := st.Check.verify(vars); err != nil {
			return &StageError{Stage: st.Name, ExitCode: 0, Output: err.Error(), Err: err}
		}
	}

	e.setProgress(jobID, st.End, false, "")
	return nil
}

// startRamp advances progress at a fixed cadence while a long-running
// stage hides its own progress. Values written this way are estimates
// and the record says so; completion snaps to the stage ceiling and
// clears the flag.
func (e *Executor) startRamp(ctx context.Context, jobID string, st *Stage) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(st.Ramp.Every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.registry.Update(jobID, func(j *job.Job) {
					next := j.Progress + st.Ramp.Step
					if next > st.Ramp.Ceiling {
						next = st.Ramp.Ceiling
					}
					if next > j.Progress {
						j.Progress = next
					}
					j.Estimated = true
				})
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// setProgress clamps progress to be non-decreasing across polls.
func (e *Executor) setProgress(jobID string, p int, estimated bool, message string) {
	e.registry.Update(jobID, func(j *job.Job) {
		if p > j.Progress {
			j.Progress = p
		}
		j.Estimated = estimated
		if message != "" {
			j.Message = message
		}
	})
}

// fail records a terminal failure with the classified error detail.
func (e *Executor) fail(jobID string, cause error) {
	log.Printf("Job %s failed: %v", jobID, cause)
	e.registry.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Estimated = false
		j.Message = "Generation failed"
		j.Error = cause.Error()
	})
}
