package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/obiente/translate/livewhisper/internal/textproc"
)

// Engine is the speech-to-text capability the pipeline depends on.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Result is the outcome of transcribing one chunk of a drain cycle.
type Result struct {
	Index   int
	Samples int
	Raw     string
	Text    string // Raw after textproc.Process
	Err     error
	Elapsed time.Duration
}

// OK reports whether the chunk produced publishable text.
func (r Result) OK() bool { return r.Err == nil && r.Text != "" }

// Invoker runs the engine for a single chunk and never lets a failure escape
// as anything other than Result.Err.
type Invoker struct {
	Engine Engine
}

func (inv Invoker) Transcribe(ctx context.Context, index int, chunk []float32) (res Result) {
	res = Result{Index: index, Samples: len(chunk)}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("engine panic: %v", p)
		}
		res.Elapsed = time.Since(start)
	}()

	raw, err := inv.Engine.Transcribe(ctx, chunk)
	if err != nil {
		res.Err = err
		return res
	}
	res.Raw = raw
	res.Text = textproc.Process(raw)
	return res
}
