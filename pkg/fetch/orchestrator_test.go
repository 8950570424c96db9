package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
)

const responseHeader = "#Network|Station|Location|Channel|Latitude|Longitude|Elevation|Depth|SampleRate|StartTime|EndTime\n"

func textServer(t *testing.T, rows string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "format=text")
		assert.Contains(t, string(body), "level=channel")
		if rows == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, responseHeader+rows)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func provider(id inventory.ProviderID, name, url string) inventory.Provider {
	return inventory.Provider{ID: id, Name: name, StationURL: url}
}

func TestFetchMergesProviders(t *testing.T) {
	srvA := textServer(t, "GE|EIL||BHZ|29.67|34.95|210|0|20|2000-01-01T00:00:00|\n")
	srvB := textServer(t, "IU|ANTO|00|HHZ|39.86|32.79|883|0|100|2005-01-01T00:00:00|\n")

	o := New()
	rows, failed, err := o.Fetch(context.Background(),
		[]inventory.Provider{provider(1, "a", srvA.URL), provider(2, "b", srvB.URL)},
		Query{})
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, rows, 2)

	byProvider := map[inventory.ProviderID]string{}
	for _, r := range rows {
		byProvider[r.ProviderID] = r.Station
	}
	assert.Equal(t, "EIL", byProvider[1])
	assert.Equal(t, "ANTO", byProvider[2])
}

func TestFetchNoContent(t *testing.T) {
	srv := textServer(t, "")

	o := New()
	rows, failed, err := o.Fetch(context.Background(),
		[]inventory.Provider{provider(1, "a", srv.URL)}, Query{})
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Empty(t, rows, "204 means zero rows, not a failure")
}

func TestFetchPartialFailure(t *testing.T) {
	good := textServer(t, "GE|EIL||BHZ|29.67|34.95|210|0|20|2000-01-01T00:00:00|\n")
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(bad.Close)

	o := New()
	rows, failed, err := o.Fetch(context.Background(),
		[]inventory.Provider{provider(1, "good", good.URL), provider(2, "bad", bad.URL)},
		Query{})
	require.NoError(t, err, "one failure never aborts the batch")
	assert.Len(t, rows, 1)
	assert.Equal(t, []inventory.ProviderID{2}, failed)
}

func TestFetchAllProvidersUnreachable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	o := New()
	_, failed, err := o.Fetch(context.Background(),
		[]inventory.Provider{provider(1, "a", bad.URL), provider(2, "b", bad.URL)},
		Query{})
	require.Error(t, err)
	assert.True(t, errors.IsAllProvidersUnreachable(err))
	assert.Len(t, failed, 2)
}

func TestFetchMalformedResponseIsNotAFailure(t *testing.T) {
	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, responseHeader+"GE|EIL|too|few\n")
	}))
	t.Cleanup(malformed.Close)
	good := textServer(t, "GE|APE||BHZ|37.07|25.53|620|0|20|2000-01-01T00:00:00|\n")

	o := New()
	rows, failed, err := o.Fetch(context.Background(),
		[]inventory.Provider{provider(1, "malformed", malformed.URL), provider(2, "good", good.URL)},
		Query{})
	require.NoError(t, err)
	assert.Empty(t, failed, "the provider answered; its data is discarded, not failed over")
	require.Len(t, rows, 1)
	assert.Equal(t, "APE", rows[0].Station)
}

func TestFetchPhaseDeadline(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	o := New()
	_, failed, err := o.Fetch(ctx, []inventory.Provider{provider(1, "slow", slow.URL)}, Query{})
	require.Error(t, err)
	assert.True(t, errors.IsAllProvidersUnreachable(err))
	assert.Equal(t, []inventory.ProviderID{1}, failed)
}

func TestFetchProgressCallback(t *testing.T) {
	srv := textServer(t, "GE|EIL||BHZ|29.67|34.95|210|0|20|2000-01-01T00:00:00|\n")

	var mu sync.Mutex
	var completions []int
	o := New(
		WithWorkers(2),
		WithProgress(func(completed, total int, _ inventory.Provider, err error) {
			mu.Lock()
			defer mu.Unlock()
			completions = append(completions, completed)
			assert.Equal(t, 3, total)
			assert.NoError(t, err)
		}),
	)

	providers := []inventory.Provider{
		provider(1, "a", srv.URL),
		provider(2, "b", srv.URL),
		provider(3, "c", srv.URL),
	}
	_, _, err := o.Fetch(context.Background(), providers, Query{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, completions)
}

func TestFetchNoProviders(t *testing.T) {
	o := New()
	_, _, err := o.Fetch(context.Background(), nil, Query{})
	require.Error(t, err)
}
