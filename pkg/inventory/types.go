// Package inventory defines the data model for the station/channel
// metadata inventory: providers (data centers), persisted station and
// channel records, and the transient candidate rows that exist between a
// fetch cycle and reconciliation.
package inventory

import (
	"fmt"
	"time"
)

// ProviderID identifies a data center within the inventory.
type ProviderID int64

// Provider is an independently-operated data center answering station
// metadata queries for a subset of the global station set. Immutable once
// referenced by persisted records within a session.
type Provider struct {
	ID         ProviderID `yaml:"id"`
	Name       string     `yaml:"name"`
	StationURL string     `yaml:"station_url"`
	DataURL    string     `yaml:"dataselect_url,omitempty"`
}

// StationKey is the natural key of a station record. The persisted store
// guarantees that one key maps to exactly one provider; enforcing that
// before writing is the conflict resolver's job.
type StationKey struct {
	Network   string
	Station   string
	StartTime time.Time
}

// NewStationKey normalizes the start time to UTC so that keys parsed from
// different sources compare equal.
func NewStationKey(network, station string, start time.Time) StationKey {
	return StationKey{Network: network, Station: station, StartTime: start.UTC()}
}

func (k StationKey) String() string {
	return fmt.Sprintf("%s.%s@%s", k.Network, k.Station, k.StartTime.Format(time.RFC3339))
}

// Station is a persisted station record. ID is the store-generated
// identifier; the natural key is (Network, Code, StartTime).
type Station struct {
	ID         int64
	Network    string
	Code       string
	StartTime  time.Time
	EndTime    *time.Time // nil = open-ended epoch
	Latitude   float64
	Longitude  float64
	Elevation  float64
	ProviderID ProviderID
}

// Key returns the station's natural key.
func (s Station) Key() StationKey {
	return NewStationKey(s.Network, s.Code, s.StartTime)
}

// Channel is a persisted channel record, owned by exactly one station.
// It is written only after its station has been persisted and assigned an id.
type Channel struct {
	ID         int64
	StationID  int64
	Location   string
	Code       string
	SampleRate *float64 // nil = not reported by the provider
	Depth      float64
}

// ChannelKey is the identity of a channel within one station epoch.
type ChannelKey struct {
	Location string
	Channel  string
}

// Row is a reconciled, persisted channel joined with its station's
// coordinates and provider: the shape downstream segment computation
// consumes.
type Row struct {
	ChannelID  int64
	StationID  int64
	ProviderID ProviderID
	Network    string
	Station    string
	Location   string
	Channel    string
	Latitude   float64
	Longitude  float64
	SampleRate *float64
	StartTime  time.Time
	EndTime    *time.Time
}

// StationKey returns the natural key of the row's station.
func (r Row) StationKey() StationKey {
	return NewStationKey(r.Network, r.Station, r.StartTime)
}

// StreamID returns the compact stream identifier
// "network.station.location.channel" used by waveform consumers.
func (r Row) StreamID() string {
	return r.Network + "." + r.Station + "." + r.Location + "." + r.Channel
}

// StreamIDs builds a lookup from channel identifier to stream identifier.
// A pure projection over the final channel set.
func StreamIDs(rows []Row) map[int64]string {
	ids := make(map[int64]string, len(rows))
	for _, r := range rows {
		ids[r.ChannelID] = r.StreamID()
	}
	return ids
}
