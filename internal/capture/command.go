package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livewhisper/internal/audio"
)

// CommandConfig describes an external recorder that writes raw float32le mono
// PCM to stdout.
type CommandConfig struct {
	Backend    string // pw-record, parec or arecord
	Device     string
	SampleRate int
	FrameSize  int // samples per frame
}

// DefaultStartGrace is how long Start waits for the first frame before it
// takes a still-running recorder as having opened the device.
const DefaultStartGrace = 500 * time.Millisecond

// CommandSource captures audio by running a recorder process and slicing its
// stdout into fixed-size frames.
type CommandSource struct {
	cfg CommandConfig

	// StartGrace overrides DefaultStartGrace when positive.
	StartGrace time.Duration

	failed chan error

	mu       sync.Mutex
	cancel   context.CancelFunc
	exited   chan struct{}
	exitErr  error
	lastLine string
	wg       sync.WaitGroup
}

func NewCommandSource(cfg CommandConfig) *CommandSource {
	return &CommandSource{cfg: cfg, failed: make(chan error, 1)}
}

// Failed receives one error wrapping ErrDevice if the recorder exits while
// the source is open.
func (s *CommandSource) Failed() <-chan error { return s.failed }

func (s *CommandSource) Args() []string {
	rate := strconv.Itoa(s.cfg.SampleRate)
	var args []string
	switch s.cfg.Backend {
	case "parec":
		args = []string{"--raw", "--format=float32le", "--rate=" + rate, "--channels=1"}
		if s.cfg.Device != "" {
			args = append(args, "--device="+s.cfg.Device)
		}
	case "arecord":
		args = []string{"-q", "-t", "raw", "-f", "FLOAT_LE", "-r", rate, "-c", "1"}
		if s.cfg.Device != "" {
			args = append(args, "-D", s.cfg.Device)
		}
	default:
		args = []string{"--format", "f32", "--rate", rate, "--channels", "1"}
		if s.cfg.Device != "" {
			args = append(args, "--target", s.cfg.Device)
		}
		args = append(args, "-")
	}
	return args
}

func (s *CommandSource) binary() string {
	if s.cfg.Backend == "" {
		return "pw-record"
	}
	return s.cfg.Backend
}

func (s *CommandSource) Start(ctx context.Context, onFrame func(Frame)) error {
	if s.cfg.SampleRate <= 0 || s.cfg.FrameSize <= 0 {
		return fmt.Errorf("%w: invalid rate %d or frame size %d", ErrDevice, s.cfg.SampleRate, s.cfg.FrameSize)
	}
	bin := s.binary()
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrDevice, bin, err)
	}
	if bin == "pw-record" {
		if err := checkPipeWire(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrDevice, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, bin, s.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %v", ErrDevice, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stderr pipe: %v", ErrDevice, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: start %s: %v", ErrDevice, bin, err)
	}
	log.Info().Str("backend", bin).Strs("args", s.Args()).Int("rate", s.cfg.SampleRate).Msg("capture: recorder started")

	var firstOnce sync.Once
	first := make(chan struct{})
	exited := make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			s.mu.Lock()
			s.lastLine = line
			s.mu.Unlock()
			log.Warn().Str("backend", bin).Str("line", line).Msg("capture: recorder status")
		}
	}()
	go s.readLoop(runCtx, stdout, func(f Frame) {
		firstOnce.Do(func() { close(first) })
		onFrame(f)
	})
	// Wait only after both pipes are drained.
	go func() {
		s.wg.Wait()
		err := cmd.Wait()
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		close(exited)
	}()

	grace := s.StartGrace
	if grace <= 0 {
		grace = DefaultStartGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
		cancel()
		return fmt.Errorf("%w: %s exited: %s", ErrDevice, bin, s.exitReason())
	case <-first:
	case <-timer.C:
	}

	s.mu.Lock()
	s.cancel = cancel
	s.exited = exited
	s.mu.Unlock()

	go func() {
		<-exited
		if runCtx.Err() != nil {
			return
		}
		err := fmt.Errorf("%w: %s exited: %s", ErrDevice, bin, s.exitReason())
		log.Error().Err(err).Msg("capture: recorder died")
		s.failed <- err
	}()
	return nil
}

func (s *CommandSource) exitReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason := "exit status 0"
	if s.exitErr != nil {
		reason = s.exitErr.Error()
	}
	if s.lastLine != "" {
		reason += ": " + s.lastLine
	}
	return reason
}

func (s *CommandSource) readLoop(ctx context.Context, stdout io.Reader, onFrame func(Frame)) {
	defer s.wg.Done()
	buf := make([]byte, s.cfg.FrameSize*4)
	for {
		n, err := io.ReadFull(stdout, buf)
		if n >= 4 {
			onFrame(Frame{
				Samples:    audio.DecodeFloat32LE(buf[:n]),
				SampleRate: s.cfg.SampleRate,
				Captured:   time.Now(),
			})
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warn().Err(err).Msg("capture: read failed")
			}
			return
		}
	}
}

func (s *CommandSource) Close() error {
	s.mu.Lock()
	cancel, exited := s.cancel, s.exited
	s.cancel, s.exited = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-exited
	log.Info().Str("backend", s.binary()).Msg("capture: recorder stopped")
	return nil
}

func checkPipeWire(ctx context.Context) error {
	if _, err := exec.LookPath("pw-cli"); err != nil {
		return nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}
