// Package nws retrieves active hazard alerts from the National Weather
// Service API.
package nws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

// Client implements alert fetching against api.weather.gov. The API
// requires a User-Agent identifying the calling application.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an NWS alerts client.
func NewClient(baseURL, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// FetchActive retrieves active alerts. A non-zero point narrows the query
// to alerts covering that coordinate; the zero value fetches everything.
func (c *Client) FetchActive(ctx context.Context, at domain.LatLng) ([]domain.Alert, error) {
	u := c.baseURL + "/alerts/active"
	if at != (domain.LatLng{}) {
		params := url.Values{
			"point": {fmt.Sprintf("%.4f,%.4f", at.Lat, at.Lng)},
		}
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create alerts request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alerts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alerts API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read alerts response: %w", err)
	}

	alerts, err := domain.ParseAlertCollection(body)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
