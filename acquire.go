package stationsync

import (
	"context"
	"time"

	"github.com/seisio/stationsync/internal/routing"
	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/fetch"
	"github.com/seisio/stationsync/pkg/filter"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
	"github.com/seisio/stationsync/pkg/resolve"
	"github.com/seisio/stationsync/pkg/store"
)

// Request describes one acquisition cycle: which providers to ask and
// which channels to keep. Pattern lists accept FDSN wildcards ('*', '?')
// and a leading '!' for negation; negated patterns are applied locally
// after download.
type Request struct {
	Providers []inventory.Provider

	Networks  []string
	Stations  []string
	Locations []string
	Channels  []string

	// Start and End bound the requested epoch. Nil means unbounded.
	Start *time.Time
	End   *time.Time

	// MinSampleRate drops channels sampled below the threshold (in Hz).
	// Channels without a reported rate fail a positive threshold.
	MinSampleRate float64
}

func (r Request) criteria() filter.Criteria {
	return filter.Criteria{
		Networks:      r.Networks,
		Stations:      r.Stations,
		Locations:     r.Locations,
		Channels:      r.Channels,
		MinSampleRate: r.MinSampleRate,
	}
}

// Result is the outcome of one acquisition cycle.
type Result struct {
	// Rows is the final reconciled channel set: freshly persisted rows
	// plus rows recovered from the store for unreachable providers.
	Rows []inventory.Row

	// Failed lists providers that could not be reached this cycle.
	Failed []inventory.ProviderID

	// DroppedBetweenProviders counts rows excluded because their station
	// was claimed by several providers without a unique authority.
	DroppedBetweenProviders int

	// DroppedWithinProvider counts rows excluded because one provider
	// reported the same channel identity more than once.
	DroppedWithinProvider int

	// RecoveredFromStore counts rows served from the local store in place
	// of an unreachable provider's response.
	RecoveredFromStore int
}

// StreamIDs returns the "network.station.location.channel" identifier per
// channel id for the final row set.
func (r *Result) StreamIDs() map[int64]string {
	return inventory.StreamIDs(r.Rows)
}

// Acquire runs one full acquisition cycle. Provider failures degrade the
// result (stored rows substitute where possible) rather than aborting it;
// Acquire returns an error only when nothing at all can be produced or
// when persistence itself fails.
func (c *Client) Acquire(ctx context.Context, req Request) (*Result, error) {
	if len(req.Providers) == 0 {
		return nil, &errors.ValidationError{
			Field:   "providers",
			Message: "at least one provider is required",
		}
	}
	logger := logging.FromContext(ctx)
	criteria := req.criteria()

	// 1. Persist the provider registry so stored rows can reference it.
	if err := c.repo.SaveProviders(ctx, req.Providers); err != nil {
		return nil, err
	}

	// 2. Fetch from every provider under the phase deadline.
	fetchCtx := ctx
	cancel := func() {}
	if c.config.fetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, c.config.fetchTimeout)
	}
	rows, failed, err := c.orchestrator.Fetch(fetchCtx, req.Providers, fetch.Query{
		Networks:  req.Networks,
		Stations:  req.Stations,
		Locations: req.Locations,
		Channels:  req.Channels,
		Start:     req.Start,
		End:       req.End,
	})
	cancel()
	allUnreachable := errors.IsAllProvidersUnreachable(err)
	if err != nil && !allUnreachable {
		return nil, err
	}

	// 3. Recover stored rows for the providers that failed. A store read
	// failure here costs coverage, not the cycle.
	recovered, rerr := c.fallback.Rows(ctx, failed, criteria, req.Start, req.End)
	if rerr != nil {
		logger.Warn().Err(rerr).
			Msg("Unable to read stored channels for unreachable data centers")
		recovered = nil
	}
	if allUnreachable && len(recovered) == 0 {
		return nil, errors.ErrAllProvidersUnreachable
	}

	// 4. Apply the filters the providers could not: negated patterns and
	// the sample-rate threshold.
	if len(rows) > 0 {
		filtered, ferr := filter.Apply(ctx, rows, criteria)
		switch {
		case ferr == nil:
			rows = filtered
		case errors.IsNoMatchingChannels(ferr) && len(recovered) > 0:
			rows = nil
		default:
			return nil, ferr
		}
	}

	// 5. Reconcile conflicts and persist the survivors.
	result := &Result{Failed: failed}
	var fresh []inventory.Row
	if len(rows) > 0 {
		authority, aerr := c.providerAuthority(req.Providers)
		if aerr != nil {
			return nil, aerr
		}
		classified, cerr := resolve.New(authority).Resolve(ctx, rows)
		if cerr != nil {
			return nil, cerr
		}
		result.DroppedBetweenProviders = len(classified.BetweenProviders)
		result.DroppedWithinProvider = len(classified.WithinProvider)

		fresh, err = c.synchronizer.Sync(ctx, classified.Accepted)
		if err != nil {
			return nil, err
		}
	}

	// 6. Merge fresh and recovered rows; fresh rows win on overlap.
	result.Rows = store.Union(fresh, recovered)
	result.RecoveredFromStore = len(result.Rows) - len(fresh)
	if len(result.Rows) == 0 {
		return nil, errors.ErrNoData
	}
	return result, nil
}

// providerAuthority selects the between-provider tie-break strategy: the
// routing oracle when configured, otherwise the persisted store.
func (c *Client) providerAuthority(providers []inventory.Provider) (resolve.ProviderResolver, error) {
	if c.config.routingEndpoint != "" {
		return routing.New(c.config.routingEndpoint, providers, c.config.requestTimeout)
	}
	return resolve.NewStoreResolver(c.repo), nil
}
