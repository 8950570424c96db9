// Package routing implements the provider authority backed by an
// EIDA-style routing service: the authoritative mapping from a station
// identity to the data center that owns it.
package routing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/seisio/stationsync/internal/transport"
	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
)

// Service queries a routing endpoint and translates the returned data
// center URLs back into configured provider ids.
type Service struct {
	client   *transport.Client
	endpoint string
	byHost   map[string]inventory.ProviderID
}

// New creates a routing Service. The provider list supplies the mapping
// from data center host to provider id; a routed host with no configured
// provider resolves to nothing.
func New(endpoint string, providers []inventory.Provider, timeout time.Duration) (*Service, error) {
	if endpoint == "" {
		return nil, &errors.ValidationError{
			Field:   "endpoint",
			Message: "routing endpoint is required",
		}
	}
	byHost := make(map[string]inventory.ProviderID, len(providers))
	for _, p := range providers {
		u, err := url.Parse(p.StationURL)
		if err != nil {
			return nil, &errors.ValidationError{
				Field:   "station_url",
				Value:   p.StationURL,
				Message: "not a valid URL",
			}
		}
		byHost[strings.ToLower(u.Host)] = p.ID
	}
	return &Service{
		client:   transport.New(timeout),
		endpoint: endpoint,
		byHost:   byHost,
	}, nil
}

// Description implements resolve.ProviderResolver.
func (s *Service) Description() string { return "routing service" }

// Resolve asks the routing service which data center(s) serve the station
// identity at station level (location and channel are not constrained).
func (s *Service) Resolve(ctx context.Context, network, station string, start time.Time, end *time.Time) ([]inventory.ProviderID, error) {
	body := fmt.Sprintf("format=post\nservice=station\n%s %s * * %s %s\n",
		network, station, routeTime(&start), routeTime(end))

	data, err := s.client.PostText(ctx, inventory.Provider{Name: "routing"}, s.endpoint, body)
	if err != nil {
		return nil, err
	}
	return s.parse(data), nil
}

// parse extracts data center URLs from a format=post routing response:
// blocks of one URL line followed by stream lines, separated by blank lines.
func (s *Service) parse(data []byte) []inventory.ProviderID {
	seen := make(map[inventory.ProviderID]struct{}, 2)
	var ids []inventory.ProviderID
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "http") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil {
			continue
		}
		id, ok := s.byHost[strings.ToLower(u.Host)]
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func routeTime(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format("2006-01-02T15:04:05")
}
