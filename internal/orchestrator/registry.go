package orchestrator

import (
	"sync"
	"time"
)

// Registry holds the live jobs of this process, keyed by id. It replaces an
// ambient process-global map with an explicit object that is injected into
// the Orchestrator and swept on a TTL schedule.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Put inserts job, replacing any previous entry with the same id.
func (r *Registry) Put(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID()] = job
}

// Get returns the job for id, if resident.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// List returns every resident job in unspecified order.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// Len returns the number of resident jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep evicts every job whose TTL deadline is at or before now and returns
// how many were removed. Durable snapshots (if configured) outlive eviction
// until the store's own TTL delete runs.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, job := range r.jobs {
		if !job.ExpiresAt().After(now) {
			delete(r.jobs, id)
			evicted++
		}
	}
	return evicted
}
