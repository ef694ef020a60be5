package audio

import (
	"time"
)

// DefaultTailMargin is added to every extraction window to avoid truncating
// trailing speech. Transcription timestamps lag the true speech boundary.
const DefaultTailMargin = 100 * time.Millisecond

// DefaultFadeRamp is the length of the linear fade applied at both ends of a
// smoothed slice to eliminate boundary clicks.
const DefaultFadeRamp = 40 * time.Millisecond

// Slice is a contiguous run of samples cut from a Recorder buffer.
type Slice struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the slice.
func (s Slice) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// Extractor reads absolute-time windows out of a [Recorder]. It never mutates
// the underlying buffer.
type Extractor struct {
	rec        *Recorder
	tailMargin time.Duration
	fadeRamp   time.Duration
}

// ExtractorOption configures an [Extractor].
type ExtractorOption func(*Extractor)

// WithTailMargin overrides the trailing padding added to every window.
func WithTailMargin(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d >= 0 {
			e.tailMargin = d
		}
	}
}

// WithFadeRamp overrides the fade-in/fade-out ramp length used by
// [Extractor.ExtractSmoothed].
func WithFadeRamp(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.fadeRamp = d
		}
	}
}

// NewExtractor creates an Extractor over rec.
func NewExtractor(rec *Recorder, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		rec:        rec,
		tailMargin: DefaultTailMargin,
		fadeRamp:   DefaultFadeRamp,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractRaw copies the samples covering the absolute window
// [startAbsMs, startAbsMs+durationMs], padded by the tail margin. The window
// is clamped to the buffered range. Returns ok=false when the requested start
// lies at or beyond the end of the buffer — the audio is either older than
// the current buffer generation (ceiling reset) or not yet captured.
func (e *Extractor) ExtractRaw(startAbsMs, durationMs int64) (Slice, bool) {
	anchor := e.rec.RecordStart()
	if anchor == 0 {
		return Slice{}, false
	}

	rate := e.rec.SampleRate()
	relStartMs := startAbsMs - anchor
	if relStartMs < 0 {
		durationMs += relStartMs
		relStartMs = 0
	}
	durationMs += e.tailMargin.Milliseconds()
	if durationMs <= 0 {
		return Slice{}, false
	}

	startSample := int(relStartMs * int64(rate) / 1000)
	endSample := startSample + int(durationMs*int64(rate)/1000)

	if startSample >= e.rec.TotalSamples() {
		return Slice{}, false
	}

	samples := e.rec.readRange(startSample, endSample)
	if len(samples) == 0 {
		return Slice{}, false
	}
	return Slice{Samples: samples, SampleRate: rate}, true
}

// ExtractSmoothed extracts the window and applies a linear fade-in/fade-out
// directly to the sample values. Use this before durable encoding; the
// real-time playback path applies the same ramp via a gain envelope instead,
// leaving samples untouched.
func (e *Extractor) ExtractSmoothed(startAbsMs, durationMs int64) (Slice, bool) {
	s, ok := e.ExtractRaw(startAbsMs, durationMs)
	if !ok {
		return Slice{}, false
	}
	s.Samples = ApplyFade(s.Samples, s.SampleRate, e.fadeRamp)
	return s, true
}

// ExtractEncoded extracts the smoothed window and encodes it as a
// base64-serialized 16-bit PCM WAV file, ready for transport or storage.
func (e *Extractor) ExtractEncoded(startAbsMs, durationMs int64) (string, bool) {
	s, ok := e.ExtractSmoothed(startAbsMs, durationMs)
	if !ok {
		return "", false
	}
	return EncodeWAVBase64(s.Samples, s.SampleRate), true
}

// ApplyFade returns a copy of samples with linear fade-in and fade-out ramps
// of the given length applied at both ends. The input is never modified.
func ApplyFade(samples []float32, sampleRate int, ramp time.Duration) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	rampSamples := int(ramp.Seconds() * float64(sampleRate))
	if rampSamples <= 0 {
		return out
	}

	for i := 0; i < rampSamples && i < len(out); i++ {
		out[i] *= float32(i) / float32(rampSamples)
	}
	for i := 0; i < rampSamples && i < len(out); i++ {
		out[len(out)-1-i] *= float32(i) / float32(rampSamples)
	}
	return out
}
