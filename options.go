package stationsync

import (
	"fmt"
	"time"

	"github.com/seisio/stationsync/pkg/fetch"
	"github.com/seisio/stationsync/pkg/store"
)

// Option is a function that configures a Client.
type Option func(*config) error

// WithRepository sets the persistence backend. Required.
func WithRepository(repo store.Repository) Option {
	return func(c *config) error {
		if repo == nil {
			return fmt.Errorf("repository must not be nil")
		}
		c.repo = repo
		return nil
	}
}

// WithRoutingOracle points provider-conflict resolution at an EIDA-style
// routing service. Without it, conflicts are resolved against the
// assignments already persisted in the repository.
func WithRoutingOracle(endpoint string) Option {
	return func(c *config) error {
		c.routingEndpoint = endpoint
		return nil
	}
}

// WithWorkers bounds the number of concurrent provider requests.
func WithWorkers(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		c.workers = n
		return nil
	}
}

// WithRequestTimeout bounds each individual provider request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) error {
		c.requestTimeout = d
		return nil
	}
}

// WithFetchTimeout bounds the whole fetch phase. Providers that have not
// responded when it expires are treated as unreachable; zero disables the
// phase deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *config) error {
		c.fetchTimeout = d
		return nil
	}
}

// WithBatchSize bounds the number of rows per persistence round trip.
func WithBatchSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		c.batchSize = n
		return nil
	}
}

// WithUpdateOnConflict controls what happens when an incoming record's
// natural key already exists in the store: true refreshes the stored
// non-key columns, false keeps the stored values. Defaults to true.
func WithUpdateOnConflict(enabled bool) Option {
	return func(c *config) error {
		c.update = enabled
		return nil
	}
}

// WithProgress installs a callback invoked once per completed provider
// request.
func WithProgress(p fetch.Progress) Option {
	return func(c *config) error {
		c.progress = p
		return nil
	}
}
