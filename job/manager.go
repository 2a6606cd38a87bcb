// gen3dapi/job/manager.go
package job

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gen3dapi/config"
)

// PipelineRunner executes one admitted job to a terminal state. All
// outcomes are recorded in the registry; the returned error is for
// logging only.
type PipelineRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Manager is the admission gate in front of the pipeline executor: at
// most MaxConcurrentJobs pipelines run at once, everything else waits
// in FIFO order with its record still queued.
type Manager struct {
	cfg      *config.Config
	registry Registry
	runner   PipelineRunner
	queue    chan string
	sem      chan struct{}
}

func NewManager(cfg *config.Config, registry Registry, runner PipelineRunner) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		queue:    make(chan string, 100),
		sem:      make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

// Registry exposes the record store for read queries.
func (m *Manager) Registry() Registry { return m.registry }

func (m *Manager) Start(ctx context.Context) {
	log.Println("Job manager started. Concurrency limit:", m.cfg.MaxConcurrentJobs)
	go m.workerLoop(ctx)
}

// workerLoop admits queued jobs as slots free up. The slot is acquired
// before the job goroutine is spawned, which keeps admission FIFO and
// bounded.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker loop shutting down.")
			return
		case id := <-m.queue:
			select {
			case <-ctx.Done():
				log.Println("Worker loop shutting down.")
				return
			case m.sem <- struct{}{}:
			}
			go func(jobID string) {
				defer func() { <-m.sem }()
				if err := m.runner.Run(ctx, jobID); err != nil {
					log.Printf("Job %s failed: %v", jobID, err)
				}
			}(id)
		}
	}
}

// Submit registers an uploaded video as a queued job and hands it to
// the admission queue.
func (m *Manager) Submit(id, sourcePath string) (Job, error) {
	j := New(id, sourcePath)
	if err := m.registry.Create(j); err != nil {
		return Job{}, err
	}

	select {
	case m.queue <- j.ID:
	default:
		// Queue saturated; drop the record so the submitter can retry.
		_ = m.registry.Delete(j.ID)
		return Job{}, fmt.Errorf("job queue is full")
	}

	log.Printf("Job %s submitted to queue.", j.ID)
	return j, nil
}

// Get returns a snapshot of one job record.
func (m *Manager) Get(id string) (Job, error) {
	return m.registry.Get(id)
}

// List returns snapshots of all job records.
func (m *Manager) List() []Job {
	return m.registry.List()
}

// Delete removes the record, the canonical artifact, the working
// directory, and the uploaded source. Unknown ids report ErrNotFound.
func (m *Manager) Delete(id string) error {
	j, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if err := m.registry.Delete(id); err != nil {
		return err
	}

	os.Remove(filepath.Join(m.cfg.OutputDir(), id+".ply"))
	os.RemoveAll(filepath.Join(m.cfg.JobsDir(), id))
	if j.SourcePath != "" {
		os.Remove(j.SourcePath)
	}

	log.Printf("Job %s deleted.", id)
	return nil
}

// ArtifactPath maps a download filename to a file under the output
// root, rejecting path traversal.
func (m *Manager) ArtifactPath(filename string) (string, error) {
	cleanFilename := filepath.Base(filename)
	if cleanFilename != filename {
		return "", fmt.Errorf("invalid filename")
	}

	fullPath := filepath.Join(m.cfg.OutputDir(), cleanFilename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", ErrNotFound
	}
	return fullPath, nil
}
