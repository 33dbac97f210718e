package radar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/mapsurface"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

// --- mocks ---

type stubCatalog struct {
	mu         sync.Mutex
	timestamps []int64
	err        error
	calls      int
}

func (c *stubCatalog) FetchCatalog(_ context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.timestamps, nil
}

func (c *stubCatalog) FrameURLTemplate(ts int64) string {
	return fmt.Sprintf("https://tiles.example/%d/{z}/{x}/{y}.png", ts)
}

func (c *stubCatalog) set(timestamps []int64, err error) {
	c.mu.Lock()
	c.timestamps = timestamps
	c.err = err
	c.mu.Unlock()
}

type stubAlertClient struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
	calls  int
	lastAt domain.LatLng
}

func (c *stubAlertClient) FetchActive(_ context.Context, at domain.LatLng) ([]domain.Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastAt = at
	if c.err != nil {
		return nil, c.err
	}
	return c.alerts, nil
}

func (c *stubAlertClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func catalogTimestamps(n int) []int64 {
	out := make([]int64, n)
	base := int64(1714132800)
	for i := range out {
		out[i] = base + int64(i)*600
	}
	return out
}

func orbPolygon() orb.Polygon {
	return orb.Polygon{{{-97.5, 37.5}, {-97.0, 37.5}, {-97.0, 38.0}, {-97.5, 37.5}}}
}

func polygonAlert(id string, tier domain.SeverityTier) domain.Alert {
	return domain.Alert{
		ID:       id,
		Severity: tier,
		Title:    "Test Warning",
		Geometry: orbPolygon(),
	}
}

type engineHarness struct {
	engine  *Engine
	surface *mapsurface.Headless
	clock   *clockwork.FakeClock
	catalog *stubCatalog
	alerts  *stubAlertClient
	metrics *observability.Metrics
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	h := &engineHarness{
		surface: mapsurface.NewHeadless(testViewport()),
		clock:   clockwork.NewFakeClock(),
		catalog: &stubCatalog{timestamps: catalogTimestamps(15)},
		alerts:  &stubAlertClient{},
		metrics: observability.NewMetricsForTesting(),
	}
	h.engine = New(Options{
		Catalog:              h.catalog,
		Tiles:                &instantFetcher{},
		Alerts:               h.alerts,
		Clock:                h.clock,
		Logger:               testLogger(),
		Metrics:              h.metrics,
		ReturnToLatestOnStop: true,
	})
	t.Cleanup(h.engine.Dispose)
	return h
}

func (h *engineHarness) waitCurrent(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.engine.CurrentIndex() == want
	}, 2*time.Second, time.Millisecond, "current index never reached %d", want)
}

func TestEngineInitRequiresSurface(t *testing.T) {
	h := newEngineHarness(t)
	err := h.engine.Init(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRenderTarget)
	assert.False(t, h.engine.IsInitialized())
}

func TestEngineDoubleInit(t *testing.T) {
	h := newEngineHarness(t)
	require.NoError(t, h.engine.Init(context.Background(), h.surface))
	err := h.engine.Init(context.Background(), h.surface)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestEngineOperationsBeforeInit(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.engine.RefreshFrames(ctx), ErrNotInitialized)
	assert.ErrorIs(t, h.engine.UpdateLocation(ctx, 37.7, -97.3), ErrNotInitialized)
	assert.ErrorIs(t, h.engine.FetchAlerts(ctx, false), ErrNotInitialized)
	assert.ErrorIs(t, h.engine.RenderAlerts(nil), ErrNotInitialized)
	assert.Nil(t, h.engine.AlertCache())
	assert.Equal(t, -1, h.engine.CurrentIndex())
	assert.False(t, h.engine.IsPlaying())
}

func TestEngineRefreshFrames(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))
	require.Error(t, h.engine.CheckReadiness(ctx), "not ready before the first catalog load")

	require.NoError(t, h.engine.RefreshFrames(ctx))

	frames := h.engine.Frames()
	require.Len(t, frames, domain.MaxFrames, "15 catalog entries trim to the newest 11")
	assert.Equal(t, 10, h.engine.CurrentIndex(), "index parks on the newest frame")
	assert.NoError(t, h.engine.CheckReadiness(ctx))
	assert.Equal(t, 1, h.surface.OverlayCount(), "the newest frame is rendered")

	// The preload pass runs in the background and marks every frame warm.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.FramesWarmed) == float64(domain.MaxFrames)
	}, 2*time.Second, time.Millisecond)
}

func TestEngineInitialCatalogErrorSurfaces(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))

	h.catalog.set(nil, errors.New("rainviewer down"))
	err := h.engine.RefreshFrames(ctx)
	require.Error(t, err)
	assert.Error(t, h.engine.CheckReadiness(ctx))
}

func TestEngineFailedRefreshKeepsPreloadAlive(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	catalog := &stubCatalog{timestamps: catalogTimestamps(3)}
	metrics := observability.NewMetricsForTesting()
	e := New(Options{
		Catalog: catalog,
		Tiles:   fetcher,
		Alerts:  &stubAlertClient{},
		Clock:   clockwork.NewFakeClock(),
		Logger:  testLogger(),
		Metrics: metrics,
	})
	t.Cleanup(e.Dispose)
	ctx := context.Background()
	require.NoError(t, e.Init(ctx, mapsurface.NewHeadless(testViewport())))
	require.NoError(t, e.RefreshFrames(ctx))
	require.Len(t, e.Frames(), 3)

	// The warm pass is still blocked on its first tile when the next
	// catalog fetch fails. The kept frames must keep warming.
	catalog.set(nil, errors.New("rainviewer down"))
	require.NoError(t, e.RefreshFrames(ctx))
	require.Len(t, e.Frames(), 3)

	close(fetcher.release)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.FramesWarmed) == 3
	}, 2*time.Second, time.Millisecond, "frames kept through a failed refresh never went warm")
	assert.Zero(t, testutil.ToFloat64(metrics.StaleDiscards))
}

func TestEngineLaterCatalogErrorKeepsFrames(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))
	require.NoError(t, h.engine.RefreshFrames(ctx))

	h.catalog.set(nil, errors.New("rainviewer down"))
	assert.NoError(t, h.engine.RefreshFrames(ctx), "refresh failures after the first load are absorbed")
	assert.Len(t, h.engine.Frames(), domain.MaxFrames)
	assert.NoError(t, h.engine.CheckReadiness(ctx))
}

func TestEngineToggleScenario(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))
	require.NoError(t, h.engine.RefreshFrames(ctx))
	require.Equal(t, 10, h.engine.CurrentIndex())

	h.engine.Toggle()
	require.True(t, h.engine.IsPlaying())
	require.Equal(t, 0, h.engine.CurrentIndex(), "playback restarts from the earliest frame")

	for want := 1; want <= 6; want++ {
		h.clock.Advance(tickInterval)
		h.waitCurrent(t, want)
	}

	h.engine.Toggle()
	assert.False(t, h.engine.IsPlaying())
	assert.Equal(t, 10, h.engine.CurrentIndex(), "stopping mid-loop returns to the newest frame")
}

func TestEngineSeek(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))
	require.NoError(t, h.engine.RefreshFrames(ctx))

	h.engine.Play()
	require.True(t, h.engine.IsPlaying())

	h.engine.Seek(4)
	assert.False(t, h.engine.IsPlaying(), "seek halts playback")
	assert.Equal(t, 4, h.engine.CurrentIndex())

	h.engine.Seek(4)
	assert.Equal(t, 4, h.engine.CurrentIndex())
}

func TestEngineUpdateLocationFetchesAlerts(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.alerts.alerts = []domain.Alert{polygonAlert("a", domain.SeveritySevere)}
	require.NoError(t, h.engine.Init(ctx, h.surface))

	require.NoError(t, h.engine.UpdateLocation(ctx, 37.7, -97.3))

	assert.Equal(t, 1, h.alerts.callCount())
	assert.Equal(t, domain.LatLng{Lat: 37.7, Lng: -97.3}, h.alerts.lastAt)
	assert.Equal(t, 1, h.surface.PolygonCount())
	assert.Len(t, h.engine.AlertCache(), 1)
}

func TestEngineViewSettledFetchesOnce(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.alerts.alerts = []domain.Alert{polygonAlert("a", domain.SeverityMinor)}
	require.NoError(t, h.engine.Init(ctx, h.surface))

	// The first settle fetches immediately; later settles go through the
	// debounce and coalesce.
	h.surface.Emit(domain.EventViewSettled)
	assert.Equal(t, 1, h.alerts.callCount())

	h.surface.Emit(domain.EventViewSettled)
	h.surface.Emit(domain.EventViewSettled)
	assert.Equal(t, 1, h.alerts.callCount(), "later settles are debounced, not immediate")
}

func TestEngineDispose(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	h.alerts.alerts = []domain.Alert{polygonAlert("a", domain.SeverityExtreme)}
	require.NoError(t, h.engine.Init(ctx, h.surface))
	require.NoError(t, h.engine.RefreshFrames(ctx))
	require.NoError(t, h.engine.FetchAlerts(ctx, true))

	h.engine.Dispose()

	assert.False(t, h.engine.IsInitialized())
	assert.Equal(t, 0, h.surface.OverlayCount(), "all overlays detach on dispose")
	assert.ErrorIs(t, h.engine.RefreshFrames(ctx), ErrNotInitialized)

	h.engine.Dispose()
}

func TestEngineInitAfterDispose(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.Init(ctx, h.surface))
	h.engine.Dispose()

	err := h.engine.Init(ctx, h.surface)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.False(t, h.engine.IsInitialized())
}
