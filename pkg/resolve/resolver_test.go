package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/logging"
)

var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeAuthority returns a fixed set of provider ids for every station and
// counts how often it was consulted.
type fakeAuthority struct {
	ids   []inventory.ProviderID
	err   error
	calls int
}

func (f *fakeAuthority) Resolve(_ context.Context, _, _ string, _ time.Time, _ *time.Time) ([]inventory.ProviderID, error) {
	f.calls++
	return f.ids, f.err
}

func (f *fakeAuthority) Description() string { return "fake authority" }

func channelRow(provider inventory.ProviderID, station, location, channel string) inventory.Candidate {
	return inventory.Candidate{
		ProviderID: provider,
		Network:    "GE",
		Station:    station,
		Location:   location,
		Channel:    channel,
		StartTime:  epoch,
	}
}

func TestResolveSingleProviderGroupSkipsAuthority(t *testing.T) {
	authority := &fakeAuthority{}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(1, "EIL", "", "BHN"),
	}

	got, err := New(authority).Resolve(context.Background(), rows)
	require.NoError(t, err)
	assert.Len(t, got.Accepted, 2)
	assert.Empty(t, got.BetweenProviders)
	assert.Zero(t, authority.calls, "no cross-provider claim, nothing to resolve")
}

func TestResolveUniqueAuthorityKeepsOwnerRows(t *testing.T) {
	authority := &fakeAuthority{ids: []inventory.ProviderID{1}}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(2, "EIL", "", "BHN"),
		channelRow(2, "EIL", "", "BHE"),
	}

	got, err := New(authority).Resolve(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, got.Accepted, 1)
	assert.Equal(t, inventory.ProviderID(1), got.Accepted[0].ProviderID)
	assert.Len(t, got.BetweenProviders, 2, "the non-owner's rows are dropped")
	assert.Equal(t, 1, authority.calls)
}

func TestResolveAmbiguousAuthorityDropsGroup(t *testing.T) {
	authority := &fakeAuthority{ids: []inventory.ProviderID{1, 2}}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(2, "EIL", "", "BHN"),
	}

	got, err := New(authority).Resolve(context.Background(), rows)
	require.NoError(t, err)
	assert.Empty(t, got.Accepted)
	assert.Len(t, got.BetweenProviders, 2)
}

func TestResolveUnknownAuthorityDropsGroup(t *testing.T) {
	authority := &fakeAuthority{}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(2, "EIL", "", "BHN"),
	}

	got, err := New(authority).Resolve(context.Background(), rows)
	require.NoError(t, err)
	assert.Empty(t, got.Accepted)
	assert.Len(t, got.BetweenProviders, 2)
}

func TestResolveConsultsAuthorityPerEndTime(t *testing.T) {
	authority := &fakeAuthority{ids: []inventory.ProviderID{1}}
	end := epoch.AddDate(10, 0, 0)
	open := channelRow(1, "EIL", "", "BHZ")
	closed := channelRow(2, "EIL", "", "BHN")
	closed.EndTime = &end

	_, err := New(authority).Resolve(context.Background(), []inventory.Candidate{open, closed})
	require.NoError(t, err)
	assert.Equal(t, 2, authority.calls, "one lookup per distinct end time")
}

func TestResolveWithinProviderDuplicates(t *testing.T) {
	authority := &fakeAuthority{}
	dupA := channelRow(1, "EIL", "00", "BHZ")
	dupB := channelRow(1, "EIL", "00", "BHZ")
	dupB.Latitude = 12.5 // same identity, different payload
	keeper := channelRow(1, "EIL", "00", "BHN")

	got, err := New(authority).Resolve(context.Background(), []inventory.Candidate{dupA, dupB, keeper})
	require.NoError(t, err)

	require.Len(t, got.Accepted, 1)
	assert.Equal(t, "BHN", got.Accepted[0].Channel)
	assert.Len(t, got.WithinProvider, 2, "all rows of a duplicated identity are dropped, not just the extras")
}

func TestResolveExactDuplicatesAreNotConflicts(t *testing.T) {
	authority := &fakeAuthority{}
	row := channelRow(1, "EIL", "00", "BHZ")

	got, err := New(authority).Resolve(context.Background(), []inventory.Candidate{row, row})
	require.NoError(t, err)

	assert.Len(t, got.Accepted, 1, "identical repetition collapses instead of conflicting")
	assert.Empty(t, got.WithinProvider)
}

func TestResolveLogsConflicts(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	authority := &fakeAuthority{}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(2, "EIL", "", "BHN"),
		channelRow(1, "APE", "00", "HHZ"),
		channelRow(1, "APE", "00", "HHZ"),
	}
	rows[3].Latitude = 1 // same identity, conflicting payload

	_, err := New(authority).Resolve(ctx, rows)
	require.NoError(t, err)

	tl.AssertContains(t, "wrong or ambiguous data center")
	tl.AssertContains(t, "conflicting data from same data center")
	tl.AssertContains(t, "GE.EIL..BHZ")
	tl.AssertContains(t, "fake authority")
}

func TestResolveAuthorityError(t *testing.T) {
	authority := &fakeAuthority{err: assert.AnError}
	rows := []inventory.Candidate{
		channelRow(1, "EIL", "", "BHZ"),
		channelRow(2, "EIL", "", "BHN"),
	}

	_, err := New(authority).Resolve(context.Background(), rows)
	assert.Error(t, err)
}
