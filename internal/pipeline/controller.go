package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livewhisper/internal/audio"
	"github.com/obiente/translate/livewhisper/internal/capture"
	"github.com/obiente/translate/livewhisper/internal/events"
	"github.com/obiente/translate/livewhisper/internal/metrics"
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("transcription already running")

// State of the controller as reported by Status.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Settings fixes the chunking geometry of every session.
type Settings struct {
	TargetRate   int
	ChunkSeconds float64
	NumChunks    int
}

// Threshold is the buffer length, in target-rate samples, that triggers a
// drain.
func (s Settings) Threshold() int {
	return audio.Threshold(s.TargetRate, s.ChunkSeconds)
}

type Options struct {
	Engine   Engine
	Emitter  events.Emitter
	Source   capture.Factory
	Settings Settings
	Metrics  *metrics.Metrics
}

// Controller owns the start/stop lifecycle. At most one session runs at a
// time; each Start builds a fresh session.
type Controller struct {
	engine   Engine
	emitter  events.Emitter
	source   capture.Factory
	settings Settings
	metrics  *metrics.Metrics

	mu      sync.Mutex
	current *Session
}

func NewController(opts Options) *Controller {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	em := opts.Emitter
	if em == nil {
		em = events.Multi{}
	}
	return &Controller{
		engine:   opts.Engine,
		emitter:  em,
		source:   opts.Source,
		settings: opts.Settings,
		metrics:  m,
	}
}

// Start opens the capture device and runs a session until Stop is called or
// ctx is done. It returns ErrAlreadyRunning if a session is active and an
// error wrapping capture.ErrDevice if the device cannot be opened or is lost
// mid-session; otherwise it returns nil after the session ends.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil && c.current.Running() {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	s := newSession(c.settings.Threshold(), c.settings.NumChunks)
	c.current = s
	c.mu.Unlock()

	w := &worker{
		invoker:    Invoker{Engine: c.engine},
		emitter:    c.emitter,
		targetRate: c.settings.TargetRate,
		metrics:    c.metrics,
	}
	// Transcription of an in-flight chunk outlives the caller's context.
	go w.run(context.WithoutCancel(ctx), s)

	src := c.source()
	if err := src.Start(ctx, func(f capture.Frame) { s.onFrame(f, c.metrics) }); err != nil {
		s.stop()
		c.metrics.DeviceErrors.Inc()
		s.log.Error().Err(err).Msg("controller: capture device failed")
		return err
	}

	c.metrics.SessionsStarted.Inc()
	c.metrics.SessionActive.Set(1)
	s.log.Info().
		Int("sample_rate", c.settings.TargetRate).
		Float64("chunk_duration", c.settings.ChunkSeconds).
		Int("num_chunks", c.settings.NumChunks).
		Msg("controller: transcribing in real time")

	var failed <-chan error
	if w, ok := src.(capture.Watcher); ok {
		failed = w.Failed()
	}
	var runErr error
	select {
	case <-s.stopped:
	case <-ctx.Done():
		s.stop()
	case runErr = <-failed:
		s.stop()
		c.metrics.DeviceErrors.Inc()
		s.log.Error().Err(runErr).Msg("controller: capture device lost")
	}

	if err := src.Close(); err != nil {
		s.log.Warn().Err(err).Msg("controller: closing capture source")
	}
	c.metrics.SessionActive.Set(0)
	s.log.Info().Dur("elapsed", time.Since(s.Started)).Msg("controller: session ended")
	return runErr
}

// Stop clears the running flag and enqueues the sentinel for the current
// session. It returns immediately without waiting for the worker and is a
// no-op when nothing is running.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil || !s.Running() {
		log.Debug().Msg("controller: stop requested while idle")
		return nil
	}
	s.stop()
	return nil
}

// Wait blocks until the worker of the most recent session has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		s.Wait()
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State      State      `json:"state"`
	SessionID  string     `json:"session_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	Frames     int64      `json:"frames"`
	Drains     int64      `json:"drains"`
	Chunks     int64      `json:"chunks"`
	Published  int64      `json:"published"`
	Failures   int64      `json:"failures"`
	QueueDepth int        `json:"queue_depth"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return Status{State: StateIdle}
	}

	st := Status{
		State:      StateIdle,
		SessionID:  s.ID,
		Frames:     s.frames.Load(),
		Drains:     s.drains.Load(),
		Chunks:     s.chunks.Load(),
		Published:  s.published.Load(),
		Failures:   s.failures.Load(),
		QueueDepth: s.queue.Len(),
	}
	started := s.Started
	st.StartedAt = &started
	switch {
	case s.Running():
		st.State = StateRunning
	case !s.finished():
		st.State = StateStopping
	}
	return st
}
