package audio

// Resampler converts a stream of PCM32F blocks from inRate to outRate with
// linear interpolation. Output sample k sits at source position k*inRate/outRate
// of the whole stream, so block boundaries neither drop samples nor reset the
// interpolation phase. A Resampler is owned by a single goroutine.
type Resampler struct {
	inRate, outRate int

	produced int64 // output samples emitted so far
	consumed int64 // input samples in blocks already processed
	last     float32
}

func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{inRate: inRate, outRate: outRate}
}

// Process returns the output samples that the stream so far fully
// determines. With equal rates it returns a copy of block.
func (r *Resampler) Process(block []float32) []float32 {
	if r.inRate <= 0 || r.outRate <= 0 || r.inRate == r.outRate {
		return append([]float32(nil), block...)
	}
	if len(block) == 0 {
		return nil
	}

	n := len(block)
	out := make([]float32, 0, ResampledLen(n, r.inRate, r.outRate)+1)
	for {
		// Position relative to block[0]; -1 addresses the previous block's tail.
		pos := float64(r.produced)*float64(r.inRate)/float64(r.outRate) - float64(r.consumed)
		i0 := int(pos)
		if pos < 0 {
			i0 = -1
		}
		frac := float32(pos - float64(i0))

		var s0, s1 float32
		switch {
		case i0 == n-1 && frac == 0:
			s0, s1 = block[i0], block[i0]
		case i0+1 >= n:
			r.consumed += int64(n)
			r.last = block[n-1]
			return out
		case i0 < 0:
			s0, s1 = r.last, block[0]
		default:
			s0, s1 = block[i0], block[i0+1]
		}
		out = append(out, s0+(s1-s0)*frac)
		r.produced++
	}
}

// InRate is the source rate the resampler was built for.
func (r *Resampler) InRate() int { return r.inRate }

// ResampledLen is the number of samples a fresh Resampler emits for a stream
// of n input samples, however the stream is split into blocks.
func ResampledLen(n, inRate, outRate int) int {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || n == 0 {
		return n
	}
	return int(int64(n-1)*int64(outRate)/int64(inRate)) + 1
}
