package store

import (
	"context"
	"sync"
	"time"

	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/resolve"
)

// channelNK is the natural key of a channel record.
type channelNK struct {
	stationID int64
	location  string
	channel   string
}

// Memory is an in-memory Repository. It backs tests and ephemeral runs and
// mirrors the Postgres implementation's semantics: generated ids, in-place
// refresh on update, insert-only otherwise.
type Memory struct {
	mu            sync.RWMutex
	providers     map[inventory.ProviderID]inventory.Provider
	stations      map[inventory.StationKey]*inventory.Station
	channels      map[channelNK]*inventory.Channel
	nextStationID int64
	nextChannelID int64
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		providers: make(map[inventory.ProviderID]inventory.Provider),
		stations:  make(map[inventory.StationKey]*inventory.Station),
		channels:  make(map[channelNK]*inventory.Channel),
	}
}

// SaveProviders implements Repository.
func (m *Memory) SaveProviders(_ context.Context, providers []inventory.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range providers {
		m.providers[p.ID] = p
	}
	return nil
}

// UpsertStations implements Repository.
func (m *Memory) UpsertStations(_ context.Context, stations []inventory.Station, update bool) ([]inventory.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]inventory.Station, len(stations))
	for i, s := range stations {
		key := s.Key()
		existing, ok := m.stations[key]
		if !ok {
			m.nextStationID++
			s.ID = m.nextStationID
			stored := s
			m.stations[key] = &stored
			out[i] = s
			continue
		}
		if update {
			s.ID = existing.ID
			*existing = s
		}
		out[i] = *existing
	}
	return out, nil
}

// UpsertChannels implements Repository.
func (m *Memory) UpsertChannels(_ context.Context, channels []inventory.Channel, update bool) ([]inventory.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]inventory.Channel, len(channels))
	for i, c := range channels {
		key := channelNK{stationID: c.StationID, location: c.Location, channel: c.Code}
		existing, ok := m.channels[key]
		if !ok {
			m.nextChannelID++
			c.ID = m.nextChannelID
			stored := c
			m.channels[key] = &stored
			out[i] = c
			continue
		}
		if update {
			c.ID = existing.ID
			*existing = c
		}
		out[i] = *existing
	}
	return out, nil
}

// StationAssignments implements resolve.AssignmentSource.
func (m *Memory) StationAssignments(_ context.Context, network, station string, start time.Time) ([]resolve.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := inventory.NewStationKey(network, station, start)
	var out []resolve.Assignment
	for k, s := range m.stations {
		if k == key {
			out = append(out, resolve.Assignment{Provider: s.ProviderID, EndTime: s.EndTime})
		}
	}
	return out, nil
}

// Channels implements Repository.
func (m *Memory) Channels(_ context.Context, q ChannelQuery) ([]inventory.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[inventory.ProviderID]struct{}, len(q.Providers))
	for _, id := range q.Providers {
		wanted[id] = struct{}{}
	}

	byID := make(map[int64]*inventory.Station, len(m.stations))
	for _, s := range m.stations {
		byID[s.ID] = s
	}

	var rows []inventory.Row
	for _, c := range m.channels {
		s, ok := byID[c.StationID]
		if !ok {
			continue
		}
		if _, ok := wanted[s.ProviderID]; !ok {
			continue
		}
		if !overlaps(s.StartTime, s.EndTime, q.Start, q.End) {
			continue
		}
		if q.Criteria.MinSampleRate > 0 &&
			(c.SampleRate == nil || *c.SampleRate < q.Criteria.MinSampleRate) {
			continue
		}
		if !matchDimension(q.Criteria.Networks, s.Network) ||
			!matchDimension(q.Criteria.Stations, s.Code) ||
			!matchDimension(q.Criteria.Locations, c.Location) ||
			!matchDimension(q.Criteria.Channels, c.Code) {
			continue
		}
		rows = append(rows, inventory.Row{
			ChannelID:  c.ID,
			StationID:  s.ID,
			ProviderID: s.ProviderID,
			Network:    s.Network,
			Station:    s.Code,
			Location:   c.Location,
			Channel:    c.Code,
			Latitude:   s.Latitude,
			Longitude:  s.Longitude,
			SampleRate: c.SampleRate,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
		})
	}
	return rows, nil
}

// Station returns the persisted station for a natural key, for tests and
// diagnostics.
func (m *Memory) Station(key inventory.StationKey) (inventory.Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stations[key]
	if !ok {
		return inventory.Station{}, false
	}
	return *s, true
}
