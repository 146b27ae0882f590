package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/obiente/translate/livewhisper/internal/audio"
)

// SliceSource replays in-memory frames. With Interval zero the frames are
// delivered back to back; otherwise one frame per Interval.
type SliceSource struct {
	Frames   []Frame
	Interval time.Duration
	// Err, when set, is returned from Start wrapped in ErrDevice.
	Err error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *SliceSource) Start(ctx context.Context, onFrame func(Frame)) error {
	if s.Err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, s.Err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	done := s.doneLocked()
	s.mu.Unlock()

	go func() {
		defer close(done)
		var tick <-chan time.Time
		if s.Interval > 0 {
			t := time.NewTicker(s.Interval)
			defer t.Stop()
			tick = t.C
		}
		for _, f := range s.Frames {
			if tick != nil {
				select {
				case <-tick:
				case <-runCtx.Done():
					return
				}
			} else if runCtx.Err() != nil {
				return
			}
			onFrame(f)
		}
	}()
	return nil
}

// Done is closed once every frame has been delivered or the source closed.
// It may be called before Start.
func (s *SliceSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneLocked()
}

func (s *SliceSource) doneLocked() chan struct{} {
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

func (s *SliceSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// NewWAVSource decodes path and returns a source replaying it in frames of
// frameSize samples. With realtime set, frames are paced at the file's rate.
func NewWAVSource(path string, frameSize int, realtime bool) (*SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	defer f.Close()
	samples, rate, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrDevice, path, err)
	}
	src := &SliceSource{Frames: SplitFrames(samples, rate, frameSize)}
	if realtime {
		src.Interval = time.Duration(frameSize) * time.Second / time.Duration(rate)
	}
	return src, nil
}

// SplitFrames cuts samples into frames of frameSize; the last frame may be
// shorter.
func SplitFrames(samples []float32, rate, frameSize int) []Frame {
	if frameSize <= 0 {
		frameSize = len(samples)
	}
	var frames []Frame
	for off := 0; off < len(samples); off += frameSize {
		end := off + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		frames = append(frames, Frame{Samples: samples[off:end], SampleRate: rate})
	}
	return frames
}

// PadFrames appends silent frames so that the frames, once resampled to
// targetRate as one stream, reach a whole multiple of threshold samples.
// Without it the tail of a file shorter than one drain is never transcribed.
func PadFrames(frames []Frame, targetRate, threshold int) []Frame {
	if len(frames) == 0 || threshold <= 0 {
		return frames
	}
	last := frames[len(frames)-1]
	in := 0
	for _, f := range frames {
		in += len(f.Samples)
	}
	streamed := audio.ResampledLen(in, last.SampleRate, targetRate)
	if streamed%threshold == 0 {
		return frames
	}
	goal := (streamed/threshold + 1) * threshold

	size := len(last.Samples)
	if size == 0 {
		size = last.SampleRate
	}
	for audio.ResampledLen(in, last.SampleRate, targetRate) < goal {
		frames = append(frames, Frame{Samples: make([]float32, size), SampleRate: last.SampleRate})
		in += size
	}
	return frames
}
