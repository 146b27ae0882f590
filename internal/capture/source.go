package capture

import (
	"context"
	"errors"
	"time"
)

// ErrDevice is wrapped by every error a Source returns when the capture
// device cannot be opened.
var ErrDevice = errors.New("capture device unavailable")

// Frame is one block of mono samples delivered by a Source at its native rate.
type Frame struct {
	Samples    []float32
	SampleRate int
	Captured   time.Time
}

// Source pushes frames to a callback from a goroutine it owns. The callback
// must return quickly; it is expected to copy and enqueue only.
type Source interface {
	// Start opens the device and begins delivery. It returns an error
	// wrapping ErrDevice if the device cannot be opened.
	Start(ctx context.Context, onFrame func(Frame)) error
	// Close stops delivery and releases the device. It is safe to call more
	// than once and before Start.
	Close() error
}

// Watcher is implemented by sources whose device can disappear after Start
// has returned, such as a recorder process that dies.
type Watcher interface {
	Failed() <-chan error
}

// Factory creates a fresh Source for each session.
type Factory func() Source
