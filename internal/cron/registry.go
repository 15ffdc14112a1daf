package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is a unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Paced jobs run at most once per Every(). Jobs without a pace run on
// every tick.
type Paced interface {
	Every() time.Duration
}

// Registry holds the jobs in registration order and remembers when each
// last completed.
type Registry struct {
	mu      sync.Mutex
	jobs    []Job
	lastRun map[string]time.Time
}

// NewRegistry builds a registry; nil jobs are ignored.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{lastRun: map[string]time.Time{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a job. Names are metric labels and lock scopes, so they must
// be unique.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.Name() == job.Name() {
			return fmt.Errorf("job %q already registered", job.Name())
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

// Due lists the jobs whose pace has elapsed at now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		paced, ok := job.(Paced)
		if !ok || paced.Every() <= 0 {
			due = append(due, job)
			continue
		}
		last, ran := r.lastRun[job.Name()]
		if !ran || !now.Before(last.Add(paced.Every())) {
			due = append(due, job)
		}
	}
	return due
}

// MarkRun records a successful completion.
func (r *Registry) MarkRun(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRun[name] = at
}
