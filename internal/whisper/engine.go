package whisper

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the stub engine built without the whisper_cpp tag.
var ErrUnavailable = errors.New("whisper: native engine not compiled in (build with -tags whisper_cpp)")

// Engine is a small interface for whisper transcription.
// Implementations may be a no-op (stub) or backed by whisper.cpp (build tag: whisper_cpp).
type Engine interface {
	// Transcribe runs transcription over mono PCM32F samples at 16kHz and
	// returns the recognized text. Calls may be slow and are not cancellable
	// once decoding has started.
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

type Options struct {
	ModelPath string
	Language  string // "auto" for detection
	Threads   uint   // 0 = runtime.NumCPU()
}
