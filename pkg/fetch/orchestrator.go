// Package fetch issues one metadata request per provider with bounded
// concurrency and collects the decoded rows. A single provider failure
// never aborts the batch; failed provider ids are reported so the caller
// can substitute rows from the local store.
package fetch

import (
	"context"

	"github.com/seisio/stationsync/internal/transport"
	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/fdsntext"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
)

// Progress is invoked once per completed request, success or failure, for
// operator feedback. err is nil on success.
type Progress func(completed, total int, provider inventory.Provider, err error)

// Orchestrator fans one request per provider out over a fixed-size worker
// pool. Decoding happens after all requests complete or time out: conflict
// resolution needs the complete set of provider responses, so there is a
// single join barrier between the fetch phase and everything after it.
type Orchestrator struct {
	client   *transport.Client
	workers  int
	progress Progress
}

// New creates an Orchestrator with the given options.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = transport.New(transport.DefaultTimeout)
	}
	return o
}

// providerResponse is one provider's raw fetch outcome.
type providerResponse struct {
	provider inventory.Provider
	body     []byte
	err      error
}

// Fetch requests channel metadata from every provider and returns the
// decoded candidate rows plus the ids of providers that failed to respond.
// Responses that cannot be decoded are discarded with a warning but do not
// count as fetch failures: the provider answered, its data is just unusable
// this cycle. If every provider fails, Fetch returns
// ErrAllProvidersUnreachable.
func (o *Orchestrator) Fetch(ctx context.Context, providers []inventory.Provider, q Query) ([]inventory.Candidate, []inventory.ProviderID, error) {
	logger := logging.FromContext(ctx)

	if len(providers) == 0 {
		return nil, nil, &errors.ValidationError{
			Field:   "providers",
			Message: "at least one provider is required",
		}
	}

	responded := o.collect(ctx, providers, q.PostBody())

	var rows []inventory.Candidate
	var failed []inventory.ProviderID
	for _, p := range providers {
		resp := responded[p.ID]
		if resp.err != nil {
			failed = append(failed, p.ID)
			logger.Warn().
				Err(resp.err).
				Str("provider", p.Name).
				Msg("Unable to fetch stations")
			continue
		}
		decoded, err := fdsntext.Decode(p, resp.body)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("provider", p.Name).
				Msg("Discarding response data")
			continue
		}
		rows = append(rows, decoded...)
	}

	if len(failed) == len(providers) {
		return nil, failed, errors.ErrAllProvidersUnreachable
	}
	return rows, failed, nil
}

// collect runs the worker pool and blocks until every provider has either
// responded or been cut off by the phase deadline. Providers without a
// response when the deadline expires are recorded as connection failures;
// no retry happens within the cycle.
func (o *Orchestrator) collect(ctx context.Context, providers []inventory.Provider, body string) map[inventory.ProviderID]providerResponse {
	jobs := make(chan inventory.Provider)
	// Buffered so workers never block on a collector that stopped reading
	// at the phase deadline.
	results := make(chan providerResponse, len(providers))

	workers := o.workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(providers) {
		workers = len(providers)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for p := range jobs {
				data, err := o.client.PostText(ctx, p, p.StationURL, body)
				results <- providerResponse{provider: p, body: data, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range providers {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	responded := make(map[inventory.ProviderID]providerResponse, len(providers))
	completed := 0

	report := func(resp providerResponse) {
		responded[resp.provider.ID] = resp
		completed++
		if o.progress != nil {
			o.progress(completed, len(providers), resp.provider, resp.err)
		}
	}

	expired := false
	for len(responded) < len(providers) && !expired {
		select {
		case resp := <-results:
			report(resp)
		case <-ctx.Done():
			expired = true
		}
	}

	for _, p := range providers {
		if _, ok := responded[p.ID]; !ok {
			report(providerResponse{
				provider: p,
				err:      errors.NewProviderError(p.Name, p.StationURL, 0, ctx.Err()),
			})
		}
	}
	return responded
}
