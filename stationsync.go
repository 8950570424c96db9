// Package stationsync acquires seismic station and channel metadata from
// FDSN data centers, reconciles conflicting reports, and persists the
// result as a queryable inventory. The entry point is Client.Acquire: one
// call runs the full fetch, filter, reconcile, persist cycle and returns
// the final channel set.
package stationsync

import (
	"fmt"
	"time"

	"github.com/seisio/stationsync/pkg/fetch"
	"github.com/seisio/stationsync/pkg/store"
)

// Client runs metadata acquisition cycles against a fixed repository.
// Construct it once with New and reuse it across cycles; it is safe for
// concurrent use as long as the repository is.
type Client struct {
	config       *config
	repo         store.Repository
	orchestrator *fetch.Orchestrator
	synchronizer *store.Synchronizer
	fallback     *store.Fallback
}

// New creates a Client with the given options. A repository is required;
// everything else has defaults.
func New(opts ...Option) (*Client, error) {
	c := &Client{config: defaultConfig()}

	for _, opt := range opts {
		if err := opt(c.config); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if c.config.repo == nil {
		return nil, fmt.Errorf("a repository is required")
	}

	c.repo = c.config.repo
	c.orchestrator = fetch.New(
		fetch.WithWorkers(c.config.workers),
		fetch.WithRequestTimeout(c.config.requestTimeout),
		fetch.WithProgress(c.config.progress),
	)
	c.synchronizer = store.NewSynchronizer(c.repo, c.config.batchSize, c.config.update)
	c.fallback = store.NewFallback(c.repo)
	return c, nil
}

// config holds the tunables applied through Options.
type config struct {
	repo            store.Repository
	routingEndpoint string
	workers         int
	requestTimeout  time.Duration
	fetchTimeout    time.Duration
	batchSize       int
	update          bool
	progress        fetch.Progress
}

func defaultConfig() *config {
	return &config{
		workers:        fetch.DefaultWorkers,
		requestTimeout: 30 * time.Second,
		fetchTimeout:   5 * time.Minute,
		batchSize:      store.DefaultBatchSize,
		update:         true,
	}
}
