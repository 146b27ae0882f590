package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSplitDropsRemainder(t *testing.T) {
	tests := []struct {
		length    int
		numChunks int
	}{
		{length: 80000, numChunks: 3},
		{length: 240000, numChunks: 3},
		{length: 10, numChunks: 1},
		{length: 17, numChunks: 4},
		{length: 5, numChunks: 5},
		{length: 44100, numChunks: 7},
	}
	for _, tt := range tests {
		buf := make([]float32, tt.length)
		for i := range buf {
			buf[i] = float32(i)
		}
		chunks := Split(buf, tt.numChunks)
		if len(chunks) != tt.numChunks {
			t.Fatalf("len=%d n=%d: expected %d chunks, got %d", tt.length, tt.numChunks, tt.numChunks, len(chunks))
		}
		size := tt.length / tt.numChunks
		total := 0
		for i, c := range chunks {
			if len(c) != size {
				t.Fatalf("len=%d n=%d: chunk %d has %d samples, want %d", tt.length, tt.numChunks, i, len(c), size)
			}
			if size > 0 && c[0] != float32(i*size) {
				t.Fatalf("chunk %d starts at sample %v, want %d", i, c[0], i*size)
			}
			total += len(c)
		}
		if total > tt.length {
			t.Fatalf("emitted %d samples from a buffer of %d", total, tt.length)
		}
		if tt.length-total != tt.length%tt.numChunks {
			t.Fatalf("expected remainder %d, got %d", tt.length%tt.numChunks, tt.length-total)
		}
	}
}

func TestSplitChunksCannotGrowIntoRemainder(t *testing.T) {
	buf := []float32{1, 2, 3, 4, 5, 6, 7}
	chunks := Split(buf, 3)
	if cap(chunks[2]) != 2 {
		t.Fatalf("last chunk capacity should be clamped to its length, got %d", cap(chunks[2]))
	}
}

func TestAccumulatorFillAndDrain(t *testing.T) {
	acc := NewAccumulator(10, 3)

	if got := acc.Append(make([]float32, 6)); got != nil {
		t.Fatalf("expected no drain below threshold, got %d chunks", len(got))
	}
	if acc.Len() != 6 {
		t.Fatalf("expected 6 buffered samples, got %d", acc.Len())
	}

	chunks := acc.Append(make([]float32, 5))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 3 {
			t.Fatalf("chunk %d: expected 3 samples, got %d", i, len(c))
		}
	}
	if acc.Len() != 0 {
		t.Fatalf("buffer should be empty after drain, got %d", acc.Len())
	}
	if acc.Dropped() != 2 {
		t.Fatalf("expected 2 dropped samples, got %d", acc.Dropped())
	}
}

func TestAccumulatorDrainDoesNotAliasNextBuffer(t *testing.T) {
	acc := NewAccumulator(4, 2)
	chunks := acc.Append([]float32{1, 2, 3, 4})
	acc.Append([]float32{9, 9})
	if chunks[0][0] != 1 || chunks[1][1] != 4 {
		t.Fatalf("drained chunks were overwritten: %v", chunks)
	}
}

func TestThreshold(t *testing.T) {
	if got := Threshold(16000, 5); got != 80000 {
		t.Fatalf("expected 80000, got %d", got)
	}
	if got := Threshold(16000, 0.5); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
	// 16000 * 0.33333 = 5333.28: the buffer must hold at least that much.
	if got := Threshold(16000, 0.33333); got != 5334 {
		t.Fatalf("expected 5334, got %d", got)
	}
}

func TestAccumulatorFractionalThreshold(t *testing.T) {
	const rate, secs = 16000, 0.33333
	acc := NewAccumulator(Threshold(rate, secs), 3)
	if chunks := acc.Append(make([]float32, 5333)); chunks != nil {
		t.Fatalf("drained at 5333 samples, below %v", float64(rate)*secs)
	}
	chunks := acc.Append(make([]float32, 1))
	if len(chunks) != 3 || len(chunks[0]) != 1778 {
		t.Fatalf("expected a drain into 3 chunks of 1778 at 5334 samples, got %d chunks", len(chunks))
	}
}

func TestResampleZerosOneSecond(t *testing.T) {
	out := NewResampler(44100, 16000).Process(make([]float32, 44100))
	if n := len(out); n < 15999 || n > 16001 {
		t.Fatalf("expected ~16000 samples, got %d", n)
	}
	for i, v := range out {
		if math.Abs(float64(v)) > 1e-6 {
			t.Fatalf("sample %d not zero: %v", i, v)
		}
	}
}

func TestResamplePreservesOrder(t *testing.T) {
	in := make([]float32, 4410)
	for i := range in {
		in[i] = float32(i)
	}
	out := NewResampler(44100, 16000).Process(in)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("output not monotonic at %d: %v < %v", i, out[i], out[i-1])
		}
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := NewResampler(16000, 16000).Process(in)
	out[0] = 9
	if in[0] != 0.1 {
		t.Fatal("identity resample must not alias the input")
	}
}

// A ramp cut into capture-sized frames must come out as one continuous ramp:
// no samples lost at frame edges and no phase reset.
func TestResamplerAcrossFrames(t *testing.T) {
	const in, out, frame = 44100, 16000, 1024
	total := 10 * in
	ramp := make([]float32, total)
	for i := range ramp {
		ramp[i] = float32(i) / 1000
	}

	r := NewResampler(in, out)
	var got []float32
	for off := 0; off < total; off += frame {
		end := off + frame
		if end > total {
			end = total
		}
		got = append(got, r.Process(ramp[off:end])...)
	}

	whole := NewResampler(in, out).Process(ramp)
	want := ResampledLen(total, in, out)
	if len(got) != want || len(whole) != want {
		t.Fatalf("expected %d samples, got %d across frames and %d in one block", want, len(got), len(whole))
	}
	step := float64(in) / float64(out)
	for k, v := range got {
		exact := float64(k) * step / 1000
		if math.Abs(float64(v)-exact) > 1e-2 {
			t.Fatalf("sample %d = %v, want %v", k, v, exact)
		}
		if math.Abs(float64(v-whole[k])) > 1e-4 {
			t.Fatalf("sample %d differs from single-block output: %v vs %v", k, v, whole[k])
		}
	}
}

func TestResamplerUpsamplesAcrossFrames(t *testing.T) {
	r := NewResampler(8000, 16000)
	a := r.Process([]float32{0, 1})
	b := r.Process([]float32{2, 3})
	got := append(a, b...)
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDecodeFloat32LE(t *testing.T) {
	want := []float32{0, 0.5, -1}
	b := make([]byte, 4*len(want)+3)
	for i, v := range want {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	got := DecodeFloat32LE(b)
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	samples := make([]float32, 4410)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}
	if err := EncodeWAV(f, samples, 44100); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	got, sr, err := DecodeWAV(r)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if sr != 44100 {
		t.Fatalf("expected sample rate 44100, got %d", sr)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range got {
		if math.Abs(float64(got[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d: want %v, got %v", i, samples[i], got[i])
		}
	}
}
