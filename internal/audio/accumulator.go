package audio

import "math"

// Threshold returns the number of target-rate samples that triggers a drain:
// the smallest whole length not below sampleRate*seconds.
func Threshold(sampleRate int, seconds float64) int {
	return int(math.Ceil(float64(sampleRate) * seconds))
}

// Split cuts buf into n equal chunks of len(buf)/n samples each, in order.
// The len(buf)%n trailing samples are not part of any chunk.
func Split(buf []float32, n int) [][]float32 {
	if n <= 0 {
		return nil
	}
	size := len(buf) / n
	chunks := make([][]float32, n)
	for i := range chunks {
		chunks[i] = buf[i*size : (i+1)*size : (i+1)*size]
	}
	return chunks
}

// Accumulator grows a sample buffer until it holds at least threshold samples,
// then hands back the buffer split into numChunks chunks and starts over with
// an empty buffer. It is owned by a single goroutine.
type Accumulator struct {
	threshold int
	numChunks int
	buf       []float32
	dropped   int
}

func NewAccumulator(threshold, numChunks int) *Accumulator {
	if numChunks < 1 {
		numChunks = 1
	}
	return &Accumulator{
		threshold: threshold,
		numChunks: numChunks,
		buf:       make([]float32, 0, threshold),
	}
}

// Append adds samples and returns the drained chunks once the threshold is
// reached, or nil while still filling.
func (a *Accumulator) Append(samples []float32) [][]float32 {
	a.buf = append(a.buf, samples...)
	if len(a.buf) < a.threshold {
		return nil
	}
	drained := a.buf
	a.buf = make([]float32, 0, a.threshold)
	a.dropped += len(drained) % a.numChunks
	return Split(drained, a.numChunks)
}

// Len is the number of samples waiting for the next drain.
func (a *Accumulator) Len() int { return len(a.buf) }

// Dropped is the total count of remainder samples discarded by drains so far.
func (a *Accumulator) Dropped() int { return a.dropped }
