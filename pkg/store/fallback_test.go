package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisio/stationsync/pkg/filter"
	"github.com/seisio/stationsync/pkg/inventory"
)

func TestFallbackRows(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)
	f := NewFallback(m)

	rows, err := f.Rows(context.Background(), []inventory.ProviderID{2}, filter.Criteria{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ANTO", rows[0].Station)
}

func TestFallbackNoFailedProviders(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)
	f := NewFallback(m)

	rows, err := f.Rows(context.Background(), nil, filter.Criteria{}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "no failure, nothing to recover")
}

func TestFallbackAppliesCriteria(t *testing.T) {
	m := NewMemory()
	seedChannels(t, m)
	f := NewFallback(m)

	rows, err := f.Rows(context.Background(), []inventory.ProviderID{1, 2},
		filter.Criteria{Channels: []string{"!HH?"}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BHZ", rows[0].Channel)
}

func TestUnionFreshRowsWin(t *testing.T) {
	fresh := []inventory.Row{
		{Network: "GE", Station: "EIL", Channel: "BHZ", StartTime: epoch, ChannelID: 1},
	}
	fallback := []inventory.Row{
		{Network: "GE", Station: "EIL", Channel: "BHZ", StartTime: epoch, ChannelID: 99},
		{Network: "IU", Station: "ANTO", Location: "00", Channel: "HHZ", StartTime: epoch, ChannelID: 2},
	}

	got := Union(fresh, fallback)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ChannelID, "the fresh row survives the overlap")
	assert.Equal(t, "ANTO", got[1].Station)
}

func TestUnionEmptyFallback(t *testing.T) {
	fresh := []inventory.Row{{Network: "GE", Station: "EIL", Channel: "BHZ", StartTime: epoch}}
	assert.Equal(t, fresh, Union(fresh, nil))
}

func TestUnionEmptyFresh(t *testing.T) {
	fallback := []inventory.Row{{Network: "GE", Station: "EIL", Channel: "BHZ", StartTime: epoch}}
	got := Union(nil, fallback)
	assert.Len(t, got, 1)
}
