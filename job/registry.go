// gen3dapi/job/registry.go
package job

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for any lookup, update, or delete against an
// unknown job identifier.
var ErrNotFound = errors.New("job not found")

// ErrExists is returned when creating a record whose id is already taken.
var ErrExists = errors.New("job already exists")

// Registry stores job records. Implementations must be safe for
// concurrent use by in-flight pipelines and status queries. Update is
// the only mutation primitive: it applies the mutator under exclusion
// so progress writes never interleave destructively.
type Registry interface {
	Create(j Job) error
	Get(id string) (Job, error)
	Update(id string, mutate func(*Job)) (Job, error)
	Delete(id string) error
	List() []Job
}

// MemoryRegistry keeps records in process memory; a restart loses them.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]Job)}
}

func (r *MemoryRegistry) Create(j Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return ErrExists
	}
	r.jobs[j.ID] = j
	return nil
}

func (r *MemoryRegistry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (r *MemoryRegistry) Update(id string, mutate func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	mutate(&j)
	r.jobs[id] = j
	return j, nil
}

func (r *MemoryRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryRegistry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}
