// Package resolve detects and resolves duplicate station identities
// reported by different providers, and duplicate channel identities
// reported within one provider. The persisted store's central constraint is
// that a station natural key maps to exactly one provider; this package
// enforces it before anything is written.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
)

// maxLoggedRows caps the offending-row detail attached to conflict logs.
const maxLoggedRows = 50

// Classification is the outcome of one reconciliation pass. Every input row
// lands in exactly one bucket. Conflicting rows are excluded, never
// guessed at: excluding a disputed record is always safer.
type Classification struct {
	// Accepted rows survive reconciliation and may be persisted.
	Accepted []inventory.Candidate

	// BetweenProviders holds rows dropped because their station is claimed
	// by more than one provider without a unique authority.
	BetweenProviders []inventory.Candidate

	// WithinProvider holds rows dropped because a single provider reported
	// the same (location, channel) pair more than once. Irresolvable
	// without provider-side correction.
	WithinProvider []inventory.Candidate
}

// Resolver classifies candidate rows using the configured provider
// authority strategy.
type Resolver struct {
	providers ProviderResolver
}

// New creates a Resolver. The ProviderResolver decides between-provider
// conflicts: either the routing oracle or the persisted store.
func New(providers ProviderResolver) *Resolver {
	return &Resolver{providers: providers}
}

// Resolve runs the reconciliation algorithm over the merged candidate rows
// of all providers. Exact duplicates are collapsed first, then rows are
// grouped by station natural key:
//
//  1. A group spanning a single provider keeps all its rows.
//  2. A group spanning multiple providers is reduced to the authoritative
//     provider's rows; with zero or several authoritative providers the
//     whole group is dropped as a between-provider conflict.
//  3. Within the surviving single-provider group, rows sharing a
//     (location, channel) pair are dropped as within-provider conflicts.
//
// Conflicts are logged with offending-row detail, not raised as errors.
func (r *Resolver) Resolve(ctx context.Context, rows []inventory.Candidate) (*Classification, error) {
	rows = inventory.Dedupe(rows)

	var out Classification
	for _, group := range inventory.GroupByStation(rows) {
		kept := group.Rows

		if len(group.Providers()) > 1 {
			var err error
			kept, err = r.resolveAuthority(ctx, group, &out)
			if err != nil {
				return nil, err
			}
		}

		accepted, dupes := splitChannelDuplicates(kept)
		out.WithinProvider = append(out.WithinProvider, dupes...)
		out.Accepted = append(out.Accepted, accepted...)
	}

	r.logConflicts(logging.FromContext(ctx), &out)
	return &out, nil
}

// resolveAuthority consults the provider authority once per distinct end
// time in the group and accumulates the union of returned ids. Exactly one
// id keeps that provider's rows; anything else drops the whole group.
func (r *Resolver) resolveAuthority(ctx context.Context, group inventory.StationGroup, out *Classification) ([]inventory.Candidate, error) {
	authoritative := make(map[inventory.ProviderID]struct{})
	for _, end := range group.EndTimes() {
		ids, err := r.providers.Resolve(ctx, group.Key.Network, group.Key.Station, group.Key.StartTime, end)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			authoritative[id] = struct{}{}
		}
	}

	if len(authoritative) != 1 {
		// Zero or several claimed owners: the station cannot be persisted
		// under an ambiguous provider, the unique constraint would break.
		out.BetweenProviders = append(out.BetweenProviders, group.Rows...)
		return nil, nil
	}

	var owner inventory.ProviderID
	for id := range authoritative {
		owner = id
	}

	var kept []inventory.Candidate
	for _, row := range group.Rows {
		if row.ProviderID == owner {
			kept = append(kept, row)
		} else {
			out.BetweenProviders = append(out.BetweenProviders, row)
		}
	}
	return kept, nil
}

// splitChannelDuplicates separates rows whose (location, channel) pair is
// unique within the group from rows participating in a duplicate. All rows
// of a duplicated pair are dropped, not just the extras.
func splitChannelDuplicates(rows []inventory.Candidate) (unique, dupes []inventory.Candidate) {
	counts := make(map[inventory.ChannelKey]int, len(rows))
	for _, row := range rows {
		counts[row.ChannelKey()]++
	}
	for _, row := range rows {
		if counts[row.ChannelKey()] > 1 {
			dupes = append(dupes, row)
		} else {
			unique = append(unique, row)
		}
	}
	return unique, dupes
}

// logConflicts reports dropped rows with their identifying columns.
func (r *Resolver) logConflicts(logger *zerolog.Logger, c *Classification) {
	if len(c.BetweenProviders) > 0 {
		stations := inventory.GroupByStation(c.BetweenProviders)
		logger.Warn().
			Int("stations", len(stations)).
			Int("channels", len(c.BetweenProviders)).
			Strs("rows", rowDetail(c.BetweenProviders)).
			Str("checked_with", r.providers.Description()).
			Msg("Station(s) not saved: wrong or ambiguous data center")
	}
	if len(c.WithinProvider) > 0 {
		logger.Warn().
			Int("channels", len(c.WithinProvider)).
			Strs("rows", rowDetail(c.WithinProvider)).
			Msg("Channel(s) not saved: conflicting data from same data center")
	}
}

func rowDetail(rows []inventory.Candidate) []string {
	n := len(rows)
	if n > maxLoggedRows {
		n = maxLoggedRows
	}
	detail := make([]string, n)
	for i := 0; i < n; i++ {
		detail[i] = fmt.Sprintf("%s start=%s provider=%d",
			rows[i].StreamID(),
			rows[i].StartTime.Format(time.RFC3339),
			rows[i].ProviderID)
	}
	return detail
}
