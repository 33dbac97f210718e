package domain

import "time"

// MaxFrames bounds the playback window. Catalog fetches returning more
// timestamps are trimmed to the newest MaxFrames.
const MaxFrames = 11

// LoadState tracks whether a frame's covering tiles have been warmed.
type LoadState string

const (
	// LoadPending means no preload pass has settled this frame yet.
	LoadPending LoadState = "pending"
	// LoadWarm means the frame's tiles resolved, or its preload timeout
	// elapsed and playback will display whatever loaded.
	LoadWarm LoadState = "warm"
)

// Frame is one time-indexed radar composite plus its cached overlay layer.
type Frame struct {
	SequenceIndex int
	SourceTime    time.Time
	URLTemplate   string // tile URL with {z}/{x}/{y} placeholders

	LoadState LoadState
	Layer     TileLayer // nil until rendered or preloaded

	// Preload accounting. TilesWarm < TilesTotal after a warm transition
	// means the 3s preload bound fired before every tile resolved.
	TilesWarm  int
	TilesTotal int
}

// Degraded reports whether the frame went warm with zero resolved tiles,
// i.e. a fully failed preload that playback will still display.
func (f *Frame) Degraded() bool {
	return f.LoadState == LoadWarm && f.TilesTotal > 0 && f.TilesWarm == 0
}

// FrameSet is the bounded, ordered window of frames available for
// playback, newest last. It is replaced wholesale on each catalog refresh.
type FrameSet []*Frame

// NewFrameSet builds a FrameSet from catalog timestamps (unix seconds,
// oldest first), trimming to the newest MaxFrames. templateFor maps a
// timestamp to its tile URL template.
func NewFrameSet(timestamps []int64, templateFor func(ts int64) string) FrameSet {
	if len(timestamps) > MaxFrames {
		timestamps = timestamps[len(timestamps)-MaxFrames:]
	}
	frames := make(FrameSet, len(timestamps))
	for i, ts := range timestamps {
		frames[i] = &Frame{
			SequenceIndex: i,
			SourceTime:    time.Unix(ts, 0).UTC(),
			URLTemplate:   templateFor(ts),
			LoadState:     LoadPending,
		}
	}
	return frames
}

// LastIndex returns the index of the newest frame, or -1 when empty.
func (s FrameSet) LastIndex() int {
	return len(s) - 1
}
