//go:build !whisper_cpp

package whisper

import "context"

// Default stub (no cgo) so the project builds without whisper_cpp tag.
type stubEngine struct{}

func NewEngine(opts Options) (Engine, error) { return &stubEngine{}, nil }
func (e *stubEngine) Close() error           { return nil }
func (e *stubEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return "", ErrUnavailable
}
