package cron

import "context"

// Job is one unit of scheduled work the worker owns: expiring stale payment
// intents, running settlement, dispatching due payouts. Name labels the job
// in logs and metrics; Run performs a single sweep and returns.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker instance executes, in registration
// order. A nil job is ignored, which lets callers register feature-gated
// jobs without checking the gate twice.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs; the schedule loop iterates it
// without holding up registration.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
