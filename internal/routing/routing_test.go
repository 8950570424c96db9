package routing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisio/stationsync/pkg/inventory"
)

var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewValidation(t *testing.T) {
	_, err := New("", nil, time.Second)
	assert.Error(t, err, "an endpoint is required")

	_, err = New("http://routing.example/query", []inventory.Provider{
		{ID: 1, Name: "bad", StationURL: "://not-a-url"},
	}, time.Second)
	assert.Error(t, err)
}

func TestResolveMapsHostsToProviders(t *testing.T) {
	providerHost := "ws.resif.fr"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "format=post")
		assert.Contains(t, string(body), "service=station")
		assert.Contains(t, string(body), "GE EIL * *")

		io.WriteString(w, "http://"+providerHost+"/fdsnws/station/1/query\n")
		io.WriteString(w, "GE EIL -- BHZ 2000-01-01T00:00:00 2010-01-01T00:00:00\n")
		io.WriteString(w, "\n")
		io.WriteString(w, "http://unknown.example/fdsnws/station/1/query\n")
		io.WriteString(w, "GE EIL -- BHN 2000-01-01T00:00:00 2010-01-01T00:00:00\n")
	}))
	t.Cleanup(srv.Close)

	providers := []inventory.Provider{
		{ID: 7, Name: "resif", StationURL: "http://" + providerHost + "/fdsnws/station/1/query"},
	}
	s, err := New(srv.URL, providers, time.Second)
	require.NoError(t, err)

	ids, err := s.Resolve(context.Background(), "GE", "EIL", epoch, nil)
	require.NoError(t, err)
	assert.Equal(t, []inventory.ProviderID{7}, ids, "unknown hosts resolve to nothing")
}

func TestResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil, time.Second)
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), "GE", "EIL", epoch, nil)
	assert.Error(t, err)
}

func TestParseDeduplicates(t *testing.T) {
	stationURL := "http://geofon.gfz-potsdam.de/fdsnws/station/1/query"
	u, err := url.Parse(stationURL)
	require.NoError(t, err)

	s, err := New("http://routing.example/query", []inventory.Provider{
		{ID: 2, Name: "gfz", StationURL: stationURL},
	}, time.Second)
	require.NoError(t, err)

	body := "http://" + u.Host + "/fdsnws/station/1/query\n" +
		"GE APE -- BHZ 2000-01-01T00:00:00\n" +
		"\n" +
		"http://" + u.Host + "/fdsnws/dataselect/1/query\n" +
		"GE APE -- BHN 2000-01-01T00:00:00\n"

	ids := s.parse([]byte(body))
	assert.Equal(t, []inventory.ProviderID{2}, ids)
}

func TestDescription(t *testing.T) {
	s, err := New("http://routing.example/query", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "routing service", s.Description())
}
