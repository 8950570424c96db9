package store

import (
	"context"
	"time"

	"github.com/seisio/stationsync/pkg/filter"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
)

// Fallback reads previously persisted channels for providers that could
// not be reached in the current cycle, so a transient outage degrades the
// result instead of truncating it.
type Fallback struct {
	repo Repository
}

// NewFallback creates a Fallback over the repository.
func NewFallback(repo Repository) *Fallback {
	return &Fallback{repo: repo}
}

// Rows returns stored channels for the failed providers, constrained by
// the same NSLC criteria and time window as the network query. With no
// failed providers it returns nothing.
func (f *Fallback) Rows(ctx context.Context, failed []inventory.ProviderID, crit filter.Criteria, start, end *time.Time) ([]inventory.Row, error) {
	if len(failed) == 0 {
		return nil, nil
	}
	rows, err := f.repo.Channels(ctx, ChannelQuery{
		Providers: failed,
		Criteria:  crit,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		logging.Ctx(ctx).Info().
			Int("channels", len(rows)).
			Int("providers", len(failed)).
			Msg("Recovered stored channels for unreachable data centers")
	}
	return rows, nil
}

// unionKey identifies a channel epoch across both result sources.
type unionKey struct {
	station inventory.StationKey
	channel inventory.ChannelKey
}

// Union merges freshly synchronized rows with fallback rows. When both
// sources contain the same channel epoch, the fresh row wins.
func Union(fresh, fallback []inventory.Row) []inventory.Row {
	if len(fallback) == 0 {
		return fresh
	}
	seen := make(map[unionKey]struct{}, len(fresh))
	for _, r := range fresh {
		seen[key(r)] = struct{}{}
	}
	out := fresh
	for _, r := range fallback {
		if _, ok := seen[key(r)]; ok {
			continue
		}
		seen[key(r)] = struct{}{}
		out = append(out, r)
	}
	return out
}

func key(r inventory.Row) unionKey {
	return unionKey{
		station: r.StationKey(),
		channel: inventory.ChannelKey{Location: r.Location, Channel: r.Channel},
	}
}
