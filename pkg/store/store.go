// Package store persists the reconciled inventory to a relational store
// and reads it back for fallback and tie-breaking. The store is expressed
// as a thin repository over upsert and natural-key queries rather than an
// ORM; pgx provides the Postgres implementation and Memory backs tests and
// ephemeral runs.
package store

import (
	"context"
	"time"

	"github.com/seisio/stationsync/pkg/filter"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/resolve"
	"github.com/seisio/stationsync/pkg/wildcard"
)

// ChannelQuery selects persisted channels for the fallback path, applying
// the same NSLC and sample-rate filters as the network path plus a
// time-window overlap rule.
type ChannelQuery struct {
	Providers []inventory.ProviderID
	Criteria  filter.Criteria
	Start     *time.Time
	End       *time.Time
}

// Repository is the persistence contract the reconciliation engine needs.
// Records are created or updated, never deleted: an existing record with a
// matching natural key is refreshed in place when updates are requested,
// left untouched otherwise.
type Repository interface {
	resolve.AssignmentSource

	// SaveProviders upserts the provider registry.
	SaveProviders(ctx context.Context, providers []inventory.Provider) error

	// UpsertStations writes stations keyed by (network, code, start_time)
	// and returns them with store-generated ids populated.
	UpsertStations(ctx context.Context, stations []inventory.Station, update bool) ([]inventory.Station, error)

	// UpsertChannels writes channels keyed by (station_id, location, code)
	// and returns them with ids populated. Stations must already exist.
	UpsertChannels(ctx context.Context, channels []inventory.Channel, update bool) ([]inventory.Channel, error)

	// Channels returns persisted channels joined with station coordinates.
	Channels(ctx context.Context, q ChannelQuery) ([]inventory.Row, error)
}

// matchDimension evaluates one NSLC pattern list against a value the way
// the SQL path does: no patterns means no constraint, otherwise the
// conditions are OR'ed, with negated entries contributing a NOT-match.
func matchDimension(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if wildcard.IsNegation(p) {
			if !wildcard.Match(p[1:], value) {
				return true
			}
		} else if wildcard.Match(p, value) {
			return true
		}
	}
	return false
}

// overlaps applies the epoch/time-window rule: the station epoch must not
// end before the window starts nor start after it ends. A nil epoch end is
// open-ended.
func overlaps(stationStart time.Time, stationEnd *time.Time, start, end *time.Time) bool {
	if start != nil && stationEnd != nil && !stationEnd.After(*start) {
		return false
	}
	if end != nil && !stationStart.Before(*end) {
		return false
	}
	return true
}
