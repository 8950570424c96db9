package store

import (
	"context"
	"fmt"

	pkgerrors "github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
)

// DefaultBatchSize bounds the number of rows per upsert round trip.
const DefaultBatchSize = 200

const maxLoggedOrphans = 50

// Synchronizer writes accepted candidate rows to a Repository in the
// required order: stations first, then channels referencing the
// store-generated station ids.
type Synchronizer struct {
	repo      Repository
	batchSize int
	update    bool
}

// NewSynchronizer creates a Synchronizer. With update enabled, rows whose
// natural key already exists have their non-key columns refreshed;
// otherwise existing rows win and incoming values are discarded.
func NewSynchronizer(repo Repository, batchSize int, update bool) *Synchronizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Synchronizer{repo: repo, batchSize: batchSize, update: update}
}

// Sync persists the accepted rows and returns the resulting channel rows
// with generated ids. A candidate whose station write did not yield an id
// is dropped and logged rather than aborting the run.
func (s *Synchronizer) Sync(ctx context.Context, accepted []inventory.Candidate) ([]inventory.Row, error) {
	if len(accepted) == 0 {
		return nil, nil
	}
	accepted = inventory.Dedupe(accepted)

	// 1. Collapse candidates into unique stations, first occurrence wins.
	var stations []inventory.Station
	index := make(map[inventory.StationKey]struct{}, len(accepted))
	for _, c := range accepted {
		key := c.StationKey()
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = struct{}{}
		stations = append(stations, inventory.Station{
			Network:    c.Network,
			Code:       c.Station,
			StartTime:  c.StartTime,
			EndTime:    c.EndTime,
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			Elevation:  c.Elevation,
			ProviderID: c.ProviderID,
		})
	}

	// 2. Upsert stations in batches and collect natural key -> id.
	stationIDs := make(map[inventory.StationKey]int64, len(stations))
	for _, chunk := range chunks(stations, s.batchSize) {
		saved, err := s.repo.UpsertStations(ctx, chunk, s.update)
		if err != nil {
			return nil, err
		}
		for _, st := range saved {
			stationIDs[st.Key()] = st.ID
		}
	}

	// 3. Attach channels to their stations; orphans are dropped.
	var channels []inventory.Channel
	var kept []inventory.Candidate
	var orphans []string
	for _, c := range accepted {
		id, ok := stationIDs[c.StationKey()]
		if !ok || id == 0 {
			orphans = append(orphans, fmt.Sprintf("%s start=%s",
				c.StreamID(), c.StartTime.UTC().Format("2006-01-02T15:04:05")))
			continue
		}
		channels = append(channels, inventory.Channel{
			StationID:  id,
			Location:   c.Location,
			Code:       c.Channel,
			SampleRate: c.SampleRate,
			Depth:      c.Depth,
		})
		kept = append(kept, c)
	}
	if len(orphans) > 0 {
		logged := orphans
		if len(logged) > maxLoggedOrphans {
			logged = logged[:maxLoggedOrphans]
		}
		logging.Ctx(ctx).Warn().
			Int("count", len(orphans)).
			Strs("rows", logged).
			Msg("Channel(s) not saved: station id not found (possible database error)")
	}

	// 4. Upsert channels and assemble the final rows.
	rows := make([]inventory.Row, 0, len(channels))
	for start := 0; start < len(channels); start += s.batchSize {
		stop := min(start+s.batchSize, len(channels))
		saved, err := s.repo.UpsertChannels(ctx, channels[start:stop], s.update)
		if err != nil {
			return nil, err
		}
		if len(saved) != stop-start {
			return nil, pkgerrors.WrapPersistence("upsert", "channels",
				fmt.Errorf("expected %d rows back, got %d", stop-start, len(saved)))
		}
		for i, ch := range saved {
			c := kept[start+i]
			rows = append(rows, inventory.Row{
				ChannelID:  ch.ID,
				StationID:  ch.StationID,
				ProviderID: c.ProviderID,
				Network:    c.Network,
				Station:    c.Station,
				Location:   ch.Location,
				Channel:    ch.Code,
				Latitude:   c.Latitude,
				Longitude:  c.Longitude,
				SampleRate: ch.SampleRate,
				StartTime:  c.StartTime,
				EndTime:    c.EndTime,
			})
		}
	}
	return rows, nil
}

// chunks splits a slice into consecutive pieces of at most size elements.
func chunks(stations []inventory.Station, size int) [][]inventory.Station {
	var out [][]inventory.Station
	for start := 0; start < len(stations); start += size {
		stop := min(start+size, len(stations))
		out = append(out, stations[start:stop])
	}
	return out
}
