// Package filter applies the locally-enforced row filters: negated NSLC
// wildcard patterns (which no remote protocol can evaluate) and the
// minimum-sample-rate threshold.
package filter

import (
	"context"

	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
	"github.com/seisio/stationsync/pkg/wildcard"
)

// Criteria is the full channel-selection configuration. Positive patterns
// are assumed to have been applied provider-side already; only negated
// patterns and the sample-rate threshold are evaluated here.
type Criteria struct {
	Networks      []string
	Stations      []string
	Locations     []string
	Channels      []string
	MinSampleRate float64
}

// matchers holds the compiled negation matcher per NSLC dimension.
type matchers struct {
	network  *wildcard.Matcher
	station  *wildcard.Matcher
	location *wildcard.Matcher
	channel  *wildcard.Matcher
}

func (c Criteria) compile() (matchers, error) {
	var m matchers
	var err error
	if m.network, err = wildcard.CompileNegations(c.Networks); err != nil {
		return m, err
	}
	if m.station, err = wildcard.CompileNegations(c.Stations); err != nil {
		return m, err
	}
	if m.location, err = wildcard.CompileNegations(c.Locations); err != nil {
		return m, err
	}
	m.channel, err = wildcard.CompileNegations(c.Channels)
	return m, err
}

// excludes reports whether any negated pattern rules the row out.
func (m matchers) excludes(row inventory.Candidate) bool {
	return m.network.Excludes(row.Network) ||
		m.station.Excludes(row.Station) ||
		m.location.Excludes(row.Location) ||
		m.channel.Excludes(row.Channel)
}

// Apply filters rows in place of the provider-side query where the protocol
// falls short. With a positive threshold, a missing sample rate fails the
// threshold: an unknown rate is not assumed acceptable. If no row survives,
// Apply returns ErrNoMatchingChannels so callers can tell "providers
// answered but nothing qualified" apart from "no provider answered".
func Apply(ctx context.Context, rows []inventory.Candidate, c Criteria) ([]inventory.Candidate, error) {
	m, err := c.compile()
	if err != nil {
		return nil, err
	}

	out := make([]inventory.Candidate, 0, len(rows))
	for _, row := range rows {
		if m.excludes(row) {
			continue
		}
		if c.MinSampleRate > 0 {
			if row.SampleRate == nil || *row.SampleRate < c.MinSampleRate {
				continue
			}
		}
		out = append(out, row)
	}

	if len(out) == 0 {
		return nil, errors.ErrNoMatchingChannels
	}

	if discarded := len(rows) - len(out); discarded > 0 {
		logging.FromContext(ctx).Warn().
			Int("discarded", discarded).
			Msg("Channels discarded by configured filters (network, channel, sample rate, ...)")
	}
	return out, nil
}
