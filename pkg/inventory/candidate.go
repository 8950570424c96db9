package inventory

import (
	"time"
)

// Candidate is a transient, provider-tagged metadata row decoded from a
// provider response (or reconstructed from the store for fallback). It lives
// only for the duration of one fetch cycle and is never persisted directly:
// candidates become Station/Channel records only after reconciliation.
type Candidate struct {
	ProviderID ProviderID
	Network    string
	Station    string
	Location   string
	Channel    string
	Latitude   float64
	Longitude  float64
	Elevation  float64
	Depth      float64
	SampleRate *float64
	StartTime  time.Time
	EndTime    *time.Time
}

// StationKey returns the candidate's station natural key.
func (c Candidate) StationKey() StationKey {
	return NewStationKey(c.Network, c.Station, c.StartTime)
}

// ChannelKey returns the candidate's channel identity within its station.
func (c Candidate) ChannelKey() ChannelKey {
	return ChannelKey{Location: c.Location, Channel: c.Channel}
}

// StreamID returns "network.station.location.channel" for log output.
func (c Candidate) StreamID() string {
	return c.Network + "." + c.Station + "." + c.Location + "." + c.Channel
}

// fingerprint is a comparable projection of all candidate fields, used to
// collapse exact duplicates. Pointer fields are flattened to values plus a
// presence flag.
type fingerprint struct {
	provider       ProviderID
	network        string
	station        string
	location       string
	channel        string
	lat, lon       float64
	elev, depth    float64
	sampleRate     float64
	hasSampleRate  bool
	start          time.Time
	end            time.Time
	hasEnd         bool
}

func (c Candidate) fingerprint() fingerprint {
	fp := fingerprint{
		provider: c.ProviderID,
		network:  c.Network,
		station:  c.Station,
		location: c.Location,
		channel:  c.Channel,
		lat:      c.Latitude,
		lon:      c.Longitude,
		elev:     c.Elevation,
		depth:    c.Depth,
		start:    c.StartTime.UTC(),
	}
	if c.SampleRate != nil {
		fp.sampleRate = *c.SampleRate
		fp.hasSampleRate = true
	}
	if c.EndTime != nil {
		fp.end = c.EndTime.UTC()
		fp.hasEnd = true
	}
	return fp
}

// Dedupe collapses rows that are identical in every field, keeping first
// occurrences in order. Exact duplicates are harmless repetition, not
// conflicts, and must be removed before duplicate detection groups rows.
func Dedupe(rows []Candidate) []Candidate {
	if len(rows) < 2 {
		return rows
	}
	seen := make(map[fingerprint]struct{}, len(rows))
	out := rows[:0:0]
	for _, c := range rows {
		fp := c.fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, c)
	}
	return out
}

// StationGroup is the set of candidate rows sharing one station natural key.
type StationGroup struct {
	Key  StationKey
	Rows []Candidate
}

// GroupByStation partitions rows by station natural key, preserving the
// order in which keys first appear.
func GroupByStation(rows []Candidate) []StationGroup {
	index := make(map[StationKey]int, len(rows))
	var groups []StationGroup
	for _, c := range rows {
		key := c.StationKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, StationGroup{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, c)
	}
	return groups
}

// Providers returns the distinct provider ids in the group, in first-seen order.
func (g StationGroup) Providers() []ProviderID {
	seen := make(map[ProviderID]struct{}, 2)
	var ids []ProviderID
	for _, c := range g.Rows {
		if _, ok := seen[c.ProviderID]; !ok {
			seen[c.ProviderID] = struct{}{}
			ids = append(ids, c.ProviderID)
		}
	}
	return ids
}

// EndTimes returns the distinct end times in the group, in first-seen order.
// A nil entry stands for the open-ended epoch.
func (g StationGroup) EndTimes() []*time.Time {
	var out []*time.Time
	seenNil := false
	seen := make(map[time.Time]struct{}, 2)
	for _, c := range g.Rows {
		if c.EndTime == nil {
			if !seenNil {
				seenNil = true
				out = append(out, nil)
			}
			continue
		}
		t := c.EndTime.UTC()
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, &t)
		}
	}
	return out
}
