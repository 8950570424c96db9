// Package transport provides the HTTP client used for FDSN-style text
// queries against provider endpoints and the routing service.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
)

// DefaultTimeout bounds a single provider request when the caller supplies
// no per-request deadline of its own.
const DefaultTimeout = 30 * time.Second

// Client posts text-protocol queries to provider endpoints.
type Client struct {
	http *http.Client
}

// New creates a transport client. A non-positive timeout falls back to
// DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// PostText issues an FDSN POST request with a plain-text body and returns
// the response body. A 204 (or an FDSN 404-for-no-data) is an empty result,
// not an error; any other non-2xx status is a ProviderError.
func (c *Client) PostText(ctx context.Context, provider inventory.Provider, endpoint, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, errors.NewProviderError(provider.Name, endpoint, 0, err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewProviderError(provider.Name, endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the error message; station
		// services put the reason in plain text.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errors.ProviderError{
			Provider:   provider.Name,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewProviderError(provider.Name, endpoint, 0, err)
	}
	return data, nil
}
