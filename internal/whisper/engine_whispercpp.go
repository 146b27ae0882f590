//go:build whisper_cpp

package whisper

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// EngineCPP is the whisper.cpp-backed implementation of Engine.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string
	mu       sync.Mutex // Protect concurrent access to the model
}

func NewEngine(opts Options) (Engine, error) {
	threads := opts.Threads
	if threads == 0 {
		threads = uint(runtime.NumCPU())
		log.Info().Uint("threads", threads).Msg("whisper: using default thread count (CPU cores)")
	} else {
		log.Info().Uint("threads", threads).Msg("whisper: using configured thread count")
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}

	m, err := whisperpkg.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	log.Info().Str("model", opts.ModelPath).Str("language", lang).Msg("whisper: model loaded successfully")
	return &EngineCPP{model: m, threads: threads, language: lang}, nil
}

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe implements Engine by running a full-context transcription.
// Calls are serialized; whisper.cpp crashes on concurrent use of one model.
func (e *EngineCPP) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Too short to decode (< 100ms)
	if len(samples) < 1600 {
		log.Debug().Int("samples", len(samples)).Msg("whisper: skipping too-short audio")
		return "", nil
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	wctx.SetThreads(e.threads)
	if err := wctx.SetLanguage(e.language); err != nil {
		log.Warn().Err(err).Str("language", e.language).Msg("whisper: language rejected, using model default")
	}
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(0)
	wctx.SetMaxTokensPerSegment(0)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	// One line per segment; the post-processor dedupes repeated lines.
	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Warn().Err(err).Msg("whisper: error reading segment")
			break
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}

	full := strings.Join(segments, "\n")
	log.Debug().
		Str("full", full).
		Int("segments", len(segments)).
		Int("samples", len(samples)).
		Msg("whisper: transcription complete")
	return full, nil
}
