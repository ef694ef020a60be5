package audio

import (
	"testing"
	"time"
)

const (
	testAnchorMs = int64(1_700_000_000_000)
	testRate     = 1000 // 1 sample per millisecond keeps the math readable
)

// newBufferedRecorder returns a started Recorder anchored at testAnchorMs
// holding totalMs milliseconds of a constant-value signal.
func newBufferedRecorder(t *testing.T, totalMs int) *Recorder {
	t.Helper()
	r := NewRecorder(testRate, WithClock(fixedClock(testAnchorMs)))
	r.Start("mic")
	samples := make([]float32, totalMs)
	for i := range samples {
		samples[i] = 0.5
	}
	r.Append(samples)
	return r
}

func TestExtractRaw_Window(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 10_000)
	e := NewExtractor(rec, WithTailMargin(0))

	s, ok := e.ExtractRaw(testAnchorMs+2000, 1500)
	if !ok {
		t.Fatal("ExtractRaw returned ok=false")
	}
	if got := len(s.Samples); got != 1500 {
		t.Errorf("len(Samples) = %d, want 1500", got)
	}
	if s.SampleRate != testRate {
		t.Errorf("SampleRate = %d, want %d", s.SampleRate, testRate)
	}
	if got := s.Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got)
	}
}

func TestExtractRaw_TailMargin(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 10_000)
	e := NewExtractor(rec, WithTailMargin(100*time.Millisecond))

	s, ok := e.ExtractRaw(testAnchorMs+2000, 1500)
	if !ok {
		t.Fatal("ExtractRaw returned ok=false")
	}
	if got := len(s.Samples); got != 1600 {
		t.Errorf("len(Samples) = %d, want 1600 with tail margin", got)
	}
}

func TestExtractRaw_PreAnchorClamped(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 10_000)
	e := NewExtractor(rec, WithTailMargin(0))

	// Starts 2 s before the anchor; only the overlapping tail survives.
	s, ok := e.ExtractRaw(testAnchorMs-2000, 3000)
	if !ok {
		t.Fatal("ExtractRaw returned ok=false")
	}
	if got := len(s.Samples); got != 1000 {
		t.Errorf("len(Samples) = %d, want 1000 after pre-anchor clamp", got)
	}
}

func TestExtractRaw_EntirelyPreAnchor(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 10_000)
	e := NewExtractor(rec, WithTailMargin(0))

	if _, ok := e.ExtractRaw(testAnchorMs-5000, 2000); ok {
		t.Error("ExtractRaw returned ok=true for a window entirely before the anchor")
	}
}

func TestExtractRaw_ClampedToBufferedEnd(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 3000)
	e := NewExtractor(rec, WithTailMargin(0))

	s, ok := e.ExtractRaw(testAnchorMs+2000, 5000)
	if !ok {
		t.Fatal("ExtractRaw returned ok=false")
	}
	if got := len(s.Samples); got != 1000 {
		t.Errorf("len(Samples) = %d, want 1000 clamped to buffered range", got)
	}
}

func TestExtractRaw_BeyondBufferMisses(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 3000)
	e := NewExtractor(rec)

	if _, ok := e.ExtractRaw(testAnchorMs+60_000, 1000); ok {
		t.Error("ExtractRaw returned ok=true for a window past the buffer")
	}
}

func TestExtractRaw_NoAnchor(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(testRate) // never started
	e := NewExtractor(rec)

	if _, ok := e.ExtractRaw(testAnchorMs, 1000); ok {
		t.Error("ExtractRaw returned ok=true with no time anchor")
	}
}

func TestExtractSmoothed_DoesNotMutateBuffer(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 2000)
	e := NewExtractor(rec, WithTailMargin(0), WithFadeRamp(40*time.Millisecond))

	s, ok := e.ExtractSmoothed(testAnchorMs, 2000)
	if !ok {
		t.Fatal("ExtractSmoothed returned ok=false")
	}
	if s.Samples[0] != 0 {
		t.Errorf("first smoothed sample = %v, want 0", s.Samples[0])
	}

	raw, ok := e.ExtractRaw(testAnchorMs, 2000)
	if !ok {
		t.Fatal("ExtractRaw returned ok=false")
	}
	if raw.Samples[0] != 0.5 {
		t.Errorf("buffered sample = %v, want 0.5 untouched", raw.Samples[0])
	}
}

func TestApplyFade_Ramps(t *testing.T) {
	t.Parallel()

	in := make([]float32, 200)
	for i := range in {
		in[i] = 1
	}

	out := ApplyFade(in, testRate, 40*time.Millisecond)

	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0", out[0])
	}
	if out[100] != 1 {
		t.Errorf("out[100] = %v, want 1 in the flat middle", out[100])
	}
	if out[199] != 0 {
		t.Errorf("out[199] = %v, want 0", out[199])
	}
	for i := 1; i < 40; i++ {
		if out[i] <= out[i-1] {
			t.Fatalf("fade-in not strictly increasing at %d: %v <= %v", i, out[i], out[i-1])
		}
		if out[199-i] <= out[200-i] {
			t.Fatalf("fade-out not strictly decreasing near end at %d", 199-i)
		}
	}
	if in[0] != 1 {
		t.Error("ApplyFade mutated its input")
	}
}

func TestApplyFade_ZeroRampCopies(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3}
	out := ApplyFade(in, testRate, 0)
	if &out[0] == &in[0] {
		t.Error("ApplyFade returned the input slice instead of a copy")
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestExtractEncoded_RoundTrip(t *testing.T) {
	t.Parallel()

	rec := newBufferedRecorder(t, 2000)
	e := NewExtractor(rec, WithTailMargin(0))

	enc, ok := e.ExtractEncoded(testAnchorMs, 1000)
	if !ok {
		t.Fatal("ExtractEncoded returned ok=false")
	}

	samples, rate, err := DecodeWAVBase64(enc)
	if err != nil {
		t.Fatalf("DecodeWAVBase64: %v", err)
	}
	if rate != testRate {
		t.Errorf("decoded rate = %d, want %d", rate, testRate)
	}
	if got := len(samples); got != 1000 {
		t.Errorf("decoded %d samples, want 1000", got)
	}
}
