package radar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

// frameWarmTimeout bounds how long one frame's preload may run. A frame
// whose tiles have not all resolved by then is accepted as-is, trading a
// potentially partial frame for bounded total preload latency.
const frameWarmTimeout = 3 * time.Second

// preloadMargin is the extra ring of tiles warmed beyond the visible
// viewport so small pans during playback do not hit cold tiles.
const preloadMargin = 1

// TileFetcher issues a non-rendering load for one tile.
type TileFetcher interface {
	FetchTile(ctx context.Context, urlTemplate string, coord domain.TileCoord) error
}

// Preloader warms tile imagery for every frame in a set ahead of display.
// All per-frame preloads run concurrently with no artificial limit beyond
// the transport's connection ceiling; staleness is handled by the
// caller's generation check in markWarm, never by cancelling requests.
type Preloader struct {
	tiles   TileFetcher
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPreloader creates a preloader fetching through tiles.
func NewPreloader(tiles TileFetcher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Preloader {
	return &Preloader{
		tiles:   tiles,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Preload warms every frame for the viewport and blocks until all frames
// have settled (join-all semantics). markWarm is called once per frame
// with the resolved and total tile counts; the caller applies it only if
// the pass's generation is still current.
func (p *Preloader) Preload(ctx context.Context, frames domain.FrameSet, vp domain.ViewportWindow, markWarm func(f *domain.Frame, loaded, total int)) {
	start := p.clock.Now()
	rect := domain.CoveringTiles(vp.Bounds, vp.Zoom, preloadMargin)

	var wg sync.WaitGroup
	for _, frame := range frames {
		wg.Add(1)
		go func(f *domain.Frame) {
			defer wg.Done()
			p.preloadFrame(ctx, f, rect, markWarm)
		}(frame)
	}
	wg.Wait()

	p.metrics.PreloadDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Debug("preload pass settled",
		"frames", len(frames), "tiles_per_frame", rect.Count(),
		"elapsed", p.clock.Since(start))
}

// preloadFrame fetches the frame's covering tiles concurrently and settles
// when all have resolved or the per-frame timeout elapses, whichever comes
// first. In-flight loads are not aborted at timeout; their results are
// simply no longer waited for.
func (p *Preloader) preloadFrame(ctx context.Context, f *domain.Frame, rect domain.TileRect, markWarm func(f *domain.Frame, loaded, total int)) {
	coords := rect.Coords()
	total := len(coords)
	if total == 0 {
		markWarm(f, 0, 0)
		return
	}

	results := make(chan bool, total)
	for _, coord := range coords {
		go func(c domain.TileCoord) {
			err := p.tiles.FetchTile(ctx, f.URLTemplate, c)
			if err != nil {
				p.metrics.TileLoads.WithLabelValues("error").Inc()
				p.logger.Debug("tile load failed", "tile", c, "error", err)
			} else {
				p.metrics.TileLoads.WithLabelValues("success").Inc()
			}
			results <- err == nil
		}(coord)
	}

	timeout := p.clock.After(frameWarmTimeout)
	loaded, settled := 0, 0
wait:
	for settled < total {
		select {
		case ok := <-results:
			settled++
			if ok {
				loaded++
			}
		case <-timeout:
			p.metrics.TileLoads.WithLabelValues("timeout").Add(float64(total - settled))
			p.logger.Debug("frame preload timed out",
				"frame_time", f.SourceTime, "loaded", loaded, "total", total)
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	markWarm(f, loaded, total)
}
