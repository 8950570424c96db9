package fetch

import (
	"time"

	"github.com/seisio/stationsync/internal/transport"
)

// DefaultWorkers is the default size of the request worker pool.
// Concurrency above the pool size is queued, not spawned.
const DefaultWorkers = 8

// Option is a function that configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRequestTimeout bounds each individual provider request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.client = transport.New(d)
	}
}

// WithProgress installs a progress callback, invoked once per completed
// request. A nil callback is a no-op, not an error.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) {
		o.progress = p
	}
}
