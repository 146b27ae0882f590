package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livewhisper/internal/audio"
	"github.com/obiente/translate/livewhisper/internal/capture"
	"github.com/obiente/translate/livewhisper/internal/events"
	"github.com/obiente/translate/livewhisper/internal/metrics"
)

// Session is one start/stop cycle: its own frame queue, running flag and
// worker goroutine. Nothing is shared with earlier sessions.
type Session struct {
	ID      string
	Started time.Time

	queue   *capture.Queue
	running atomic.Bool
	acc     *audio.Accumulator
	log     zerolog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}

	frames    atomic.Int64
	drains    atomic.Int64
	chunks    atomic.Int64
	published atomic.Int64
	failures  atomic.Int64
}

func newSession(threshold, numChunks int) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:      id,
		Started: time.Now(),
		queue:   capture.NewQueue(),
		acc:     audio.NewAccumulator(threshold, numChunks),
		log:     log.With().Str("session", id).Logger(),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.running.Store(true)
	return s
}

// Running reports whether the session has not been stopped yet.
func (s *Session) Running() bool { return s.running.Load() }

// Wait blocks until the worker goroutine has exited.
func (s *Session) Wait() { <-s.done }

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// stop clears the running flag and enqueues the sentinel. Safe to call more
// than once.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		s.queue.Close()
		close(s.stopped)
	})
}

// onFrame is the capture callback. It copies the frame and never blocks.
func (s *Session) onFrame(f capture.Frame, m *metrics.Metrics) {
	f.Samples = append([]float32(nil), f.Samples...)
	if f.Captured.IsZero() {
		f.Captured = time.Now()
	}
	if !s.queue.Push(f) {
		return
	}
	s.frames.Add(1)
	m.FramesCaptured.Inc()
	m.QueueDepth.Set(float64(s.queue.Len()))
}

type worker struct {
	invoker    Invoker
	emitter    events.Emitter
	targetRate int
	metrics    *metrics.Metrics
}

// run consumes frames until the running flag is cleared or the sentinel is
// reached. Frames are resampled to the target rate, accumulated, and each
// drained chunk is transcribed and published in order.
func (w *worker) run(ctx context.Context, s *Session) {
	defer close(s.done)
	defer func() {
		if n := s.acc.Len(); n > 0 {
			s.log.Debug().Int("samples", n).Msg("worker: discarding partial buffer")
		}
		s.log.Info().Msg("worker: stopped")
	}()

	// One resampler per session keeps the interpolation phase continuous
	// across frame boundaries.
	var rs *audio.Resampler
	for s.running.Load() {
		f, ok := s.queue.Pop()
		w.metrics.QueueDepth.Set(float64(s.queue.Len()))
		if !ok {
			return
		}
		if rs == nil || rs.InRate() != f.SampleRate {
			rs = audio.NewResampler(f.SampleRate, w.targetRate)
		}
		samples := rs.Process(f.Samples)

		before := s.acc.Dropped()
		chunks := s.acc.Append(samples)
		if chunks == nil {
			continue
		}
		s.drains.Add(1)
		w.metrics.Drains.Inc()
		if d := s.acc.Dropped() - before; d > 0 {
			w.metrics.SamplesDropped.Add(float64(d))
		}
		w.drain(ctx, s, chunks)
	}
}

func (w *worker) drain(ctx context.Context, s *Session, chunks [][]float32) {
	for i, chunk := range chunks {
		res := w.invoker.Transcribe(ctx, i, chunk)
		s.chunks.Add(1)
		w.metrics.ChunksTranscribed.Inc()
		w.metrics.TranscriptionDuration.Observe(res.Elapsed.Seconds())

		if res.Err != nil {
			s.failures.Add(1)
			w.metrics.EngineFailures.Inc()
			s.log.Error().Err(res.Err).Int("chunk", i).Int("samples", res.Samples).Msg("worker: transcription failed")
			continue
		}
		if !res.OK() {
			s.log.Debug().Int("chunk", i).Str("raw", res.Raw).Msg("worker: empty transcription")
			continue
		}

		s.log.Info().Int("chunk", i).Dur("took", res.Elapsed).Str("text", res.Text).Msg("worker: transcribed")
		if err := w.emitter.Publish(ctx, events.NewTranscription(res.Text)); err != nil {
			w.metrics.PublishFailures.Inc()
			s.log.Warn().Err(err).Int("chunk", i).Msg("worker: publish failed")
			continue
		}
		s.published.Add(1)
		w.metrics.EventsPublished.Inc()
	}
}
