package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisio/stationsync/pkg/filter"
	"github.com/seisio/stationsync/pkg/inventory"
)

var (
	epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	later = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
)

func station(provider inventory.ProviderID, network, code string) inventory.Station {
	return inventory.Station{
		Network:    network,
		Code:       code,
		StartTime:  epoch,
		Latitude:   10,
		Longitude:  20,
		ProviderID: provider,
	}
}

func rate(v float64) *float64 { return &v }

func TestUpsertStationsAssignsIDs(t *testing.T) {
	m := NewMemory()

	saved, err := m.UpsertStations(context.Background(),
		[]inventory.Station{station(1, "GE", "EIL"), station(1, "GE", "APE")}, true)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)
	assert.NotZero(t, saved[1].ID)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)
}

func TestUpsertStationsUpdateRefreshesInPlace(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.UpsertStations(ctx, []inventory.Station{station(1, "GE", "EIL")}, true)
	require.NoError(t, err)

	changed := station(1, "GE", "EIL")
	changed.Latitude = 99

	second, err := m.UpsertStations(ctx, []inventory.Station{changed}, true)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID, "the natural key keeps its id across updates")

	stored, ok := m.Station(changed.Key())
	require.True(t, ok)
	assert.Equal(t, 99.0, stored.Latitude)
}

func TestUpsertStationsNoUpdateKeepsStoredValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.UpsertStations(ctx, []inventory.Station{station(1, "GE", "EIL")}, false)
	require.NoError(t, err)

	changed := station(1, "GE", "EIL")
	changed.Latitude = 99

	second, err := m.UpsertStations(ctx, []inventory.Station{changed}, false)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID, "ids still come back for existing rows")

	stored, _ := m.Station(changed.Key())
	assert.Equal(t, 10.0, stored.Latitude, "existing values win without update")
}

func TestUpsertChannels(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stations, err := m.UpsertStations(ctx, []inventory.Station{station(1, "GE", "EIL")}, true)
	require.NoError(t, err)

	saved, err := m.UpsertChannels(ctx, []inventory.Channel{
		{StationID: stations[0].ID, Location: "00", Code: "BHZ", SampleRate: rate(20)},
	}, true)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotZero(t, saved[0].ID)

	// Same identity, new payload, update enabled.
	again, err := m.UpsertChannels(ctx, []inventory.Channel{
		{StationID: stations[0].ID, Location: "00", Code: "BHZ", SampleRate: rate(100)},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, again[0].ID)
}

func TestStationAssignments(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	end := later
	s1 := station(1, "GE", "EIL")
	s1.EndTime = &end
	_, err := m.UpsertStations(ctx, []inventory.Station{s1}, true)
	require.NoError(t, err)

	assignments, err := m.StationAssignments(ctx, "GE", "EIL", epoch)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, inventory.ProviderID(1), assignments[0].Provider)
	require.NotNil(t, assignments[0].EndTime)

	none, err := m.StationAssignments(ctx, "GE", "UNKNOWN", epoch)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func seedChannels(t *testing.T, m *Memory) {
	t.Helper()
	ctx := context.Background()

	end := later
	open := station(1, "GE", "EIL")
	closed := station(2, "IU", "ANTO")
	closed.EndTime = &end

	stations, err := m.UpsertStations(ctx, []inventory.Station{open, closed}, true)
	require.NoError(t, err)

	_, err = m.UpsertChannels(ctx, []inventory.Channel{
		{StationID: stations[0].ID, Location: "", Code: "BHZ", SampleRate: rate(20)},
		{StationID: stations[1].ID, Location: "00", Code: "HHZ", SampleRate: rate(100)},
	}, true)
	require.NoError(t, err)
}

func TestChannelsFiltersByProvider(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)

	rows, err := m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EIL", rows[0].Station)
	assert.Equal(t, inventory.ProviderID(1), rows[0].ProviderID)
}

func TestChannelsAppliesPatterns(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)

	rows, err := m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1, 2},
		Criteria:  filter.Criteria{Channels: []string{"HH?"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HHZ", rows[0].Channel)

	rows, err = m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1, 2},
		Criteria:  filter.Criteria{Stations: []string{"!A*"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EIL", rows[0].Station)
}

func TestChannelsAppliesSampleRate(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)

	rows, err := m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1, 2},
		Criteria:  filter.Criteria{MinSampleRate: 50},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HHZ", rows[0].Channel)
}

func TestChannelsAppliesTimeWindow(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)

	// Window entirely after ANTO's epoch ended.
	start := later.AddDate(1, 0, 0)
	rows, err := m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1, 2},
		Start:     &start,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EIL", rows[0].Station, "open-ended epochs always overlap a later window")

	// Window entirely before both epochs started.
	end := epoch.AddDate(-1, 0, 0)
	rows, err = m.Channels(context.Background(), ChannelQuery{
		Providers: []inventory.ProviderID{1, 2},
		End:       &end,
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestChannelsNoProviders(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)

	rows, err := m.Channels(context.Background(), ChannelQuery{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOverlaps(t *testing.T) {
	end := later
	tests := []struct {
		name       string
		stationEnd *time.Time
		start, end *time.Time
		want       bool
	}{
		{"no window", &end, nil, nil, true},
		{"open epoch always overlaps", nil, &later, nil, true},
		{"epoch ended before window", &end, timePtr(later.AddDate(1, 0, 0)), nil, false},
		{"epoch starts after window", &end, nil, timePtr(epoch.AddDate(-1, 0, 0)), false},
		{"inside window", &end, timePtr(epoch.AddDate(1, 0, 0)), timePtr(later.AddDate(-1, 0, 0)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlaps(epoch, tt.stationEnd, tt.start, tt.end)
			assert.Equal(t, tt.want, got)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
