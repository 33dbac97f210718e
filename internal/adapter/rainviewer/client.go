// Package rainviewer fetches the radar frame catalog and warms tile
// imagery from the RainViewer public API.
package rainviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

// Options controls tile URL construction.
type Options struct {
	CatalogURL  string
	TileHost    string
	TileSize    int  // 256 or 512
	ColorScheme int  // RainViewer palette index
	Smoothing   bool // rendered as the 1/0 smoothing flag
	SnowColors  bool // rendered as the 1/0 snow flag
}

// Client retrieves the frame catalog and issues tile preload requests.
// Catalog fetches rely on the transport's default timeout; the preloader
// bounds tile loads with its own per-frame deadline.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a RainViewer client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	return &Client{
		opts:       opts,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// FetchCatalog retrieves the ordered list of available frame timestamps
// (unix seconds, oldest first). Only the `past` list's time field is
// consumed.
func (c *Client) FetchCatalog(ctx context.Context) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.CatalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var catalog response
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	timestamps := make([]int64, 0, len(catalog.Radar.Past))
	for _, f := range catalog.Radar.Past {
		timestamps = append(timestamps, f.Time)
	}
	return timestamps, nil
}

// FrameURLTemplate builds the tile URL template for one frame timestamp,
// leaving {z}/{x}/{y} placeholders for the preloader and map surface.
func (c *Client) FrameURLTemplate(ts int64) string {
	return fmt.Sprintf("%s/v2/radar/%d/%d/{z}/{x}/{y}/%d/%s_%s.png",
		c.opts.TileHost, ts, c.opts.TileSize, c.opts.ColorScheme,
		boolFlag(c.opts.Smoothing), boolFlag(c.opts.SnowColors))
}

// FetchTile issues a non-rendering tile load: the response body is drained
// and discarded so the image lands in shared HTTP caches before playback
// displays it.
func (c *Client) FetchTile(ctx context.Context, urlTemplate string, coord domain.TileCoord) error {
	u := substituteTile(urlTemplate, coord)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create tile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tile request %s: %w", coord, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tile %s: status %d", coord, resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain tile %s: %w", coord, err)
	}
	return nil
}

func substituteTile(template string, coord domain.TileCoord) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(coord.Z),
		"{x}", strconv.Itoa(coord.X),
		"{y}", strconv.Itoa(coord.Y),
	)
	return r.Replace(template)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// RainViewer API response types.

type response struct {
	Radar struct {
		Past []frameStamp `json:"past"`
	} `json:"radar"`
}

type frameStamp struct {
	Time int64 `json:"time"`
}
