package radar

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// tickInterval is the playback frame advance cadence.
const tickInterval = time.Second

// Controller is the playback state machine: Stopped or Playing, with the
// current frame index. It is deliberately not self-synchronized — the
// engine owns the lock and calls every method with it held, and timer
// ticks are routed back through the engine via onTick so that frame
// rendering stays strictly serialized, one state transition per tick or
// explicit seek.
type Controller struct {
	clock  clockwork.Clock
	render func(index int)
	onTick func()

	// returnToLatest parks the index on the newest frame whenever
	// playback stops, so an idle map always shows the freshest data.
	returnToLatest bool

	length  int
	current int
	playing bool
	stopCh  chan struct{}
}

// NewController creates a stopped controller with no frames. render is
// invoked on every index change; onTick is invoked by the playback timer
// and must re-enter through the owner's lock before advancing.
func NewController(clock clockwork.Clock, returnToLatest bool, render func(index int), onTick func()) *Controller {
	return &Controller{
		clock:          clock,
		returnToLatest: returnToLatest,
		render:         render,
		onTick:         onTick,
		current:        -1,
	}
}

// SetLength replaces the frame count after a catalog refresh: playback
// halts and the index parks on the newest frame. The caller renders it.
func (c *Controller) SetLength(n int) {
	c.halt()
	c.length = n
	c.current = n - 1
}

// Current returns the current frame index, -1 when no frames are loaded.
func (c *Controller) Current() int { return c.current }

// Playing reports whether the animation timer is armed.
func (c *Controller) Playing() bool { return c.playing }

// Start begins playback. When the index is parked on the newest frame by
// returnToLatest, it resets to 0 and renders immediately so the animation
// always begins visibly at the earliest frame.
func (c *Controller) Start() {
	if c.playing || c.length == 0 {
		return
	}
	if c.returnToLatest && c.current == c.length-1 {
		c.current = 0
		c.render(0)
	}
	c.playing = true
	c.stopCh = make(chan struct{})

	ticker := c.clock.NewTicker(tickInterval)
	go func(stop chan struct{}) {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				c.onTick()
			}
		}
	}(c.stopCh)
}

// Stop cancels the timer. With returnToLatest set and the index not
// already on the newest frame, it jumps there and renders so the viewer
// lands on the freshest frame when idle.
func (c *Controller) Stop() {
	c.halt()
	if c.returnToLatest && c.length > 0 && c.current != c.length-1 {
		c.current = c.length - 1
		c.render(c.current)
	}
}

// Seek halts playback and shows the given frame. Seeking to the current
// index is a no-op, preventing a redundant re-render that could blank the
// overlay momentarily. Out-of-range indexes are ignored.
func (c *Controller) Seek(index int) {
	c.halt()
	if index < 0 || index >= c.length {
		return
	}
	if index == c.current {
		return
	}
	c.current = index
	c.render(index)
}

// Toggle starts playback when stopped and stops it when playing.
func (c *Controller) Toggle() {
	if c.playing {
		c.Stop()
		return
	}
	c.Start()
}

// Advance moves to the next frame, wrapping at the end, and renders it.
// Called from onTick with the owner's lock held.
func (c *Controller) Advance() {
	if !c.playing || c.length == 0 {
		return
	}
	c.current = (c.current + 1) % c.length
	c.render(c.current)
}

// halt cancels the timer without the return-to-latest jump.
func (c *Controller) halt() {
	if !c.playing {
		return
	}
	c.playing = false
	close(c.stopCh)
	c.stopCh = nil
}
