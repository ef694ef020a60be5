// Package audio provides the rolling capture buffer, slice extraction, WAV
// encoding, and playback-smoothing primitives used to pair conversation
// transcripts with their audio.
//
// The central type is [Recorder]: a per-source, append-only, time-anchored
// buffer of float32 PCM samples. An [Extractor] reads absolute-time windows
// back out of a Recorder, and [EncodeWAV] / [DecodeWAV] convert between
// float32 samples and the 16-bit PCM WAV container used for storage.
//
// Samples are assumed to lie in [-1, 1]. The Recorder is safe for concurrent
// use; its buffer is written only by the capture callback and read by
// extractors.
package audio

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultBufferCeiling bounds how much audio a Recorder retains before it
// resets. Ten minutes at the source rate is a deliberate memory/data-loss
// trade-off: extractions against pre-reset timestamps return no data.
const DefaultBufferCeiling = 10 * time.Minute

// Recorder continuously captures raw audio samples from one source into an
// ordered sequence of sample chunks. The buffer is anchored to the wall-clock
// time capture started, so absolute timestamps can be mapped to sample
// offsets.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	maxSamples int

	chunks [][]float32
	total  int

	recordStart int64 // unix ms anchor for sample 0
	recording   bool
	sourceID    string

	now func() time.Time
}

// RecorderOption configures a [Recorder].
type RecorderOption func(*Recorder)

// WithBufferCeiling overrides the retention ceiling. Values ≤ 0 keep the
// default.
func WithBufferCeiling(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.maxSamples = int(d.Seconds() * float64(r.sampleRate))
		}
	}
}

// WithClock replaces the wall clock. Tests use this to control the time
// anchor.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder for a source producing mono float32 PCM at
// sampleRate Hz. Capture does not begin until [Recorder.Start] is called.
func NewRecorder(sampleRate int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sampleRate: sampleRate,
		now:        time.Now,
	}
	r.maxSamples = int(DefaultBufferCeiling.Seconds() * float64(sampleRate))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins capture from the source identified by sourceID and records the
// time anchor. Restarting on the same source identity keeps the buffer — the
// surrounding session layer may hand out new references to an unchanged
// source, and resetting on every reference change would erase audio
// mid-utterance. A genuine source change resets buffer and anchor.
func (r *Recorder) Start(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording && r.sourceID == sourceID {
		return
	}
	if r.sourceID != sourceID || r.recordStart == 0 {
		r.resetLocked()
	}
	r.sourceID = sourceID
	r.recording = true
}

// Stop halts capture. Buffered samples remain queryable until the Recorder is
// discarded, so post-hoc extraction keeps working after the source ends.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
}

// Append adds one block of captured samples to the buffer. Blocks arriving
// while the Recorder is stopped are dropped. The input is cloned; callers may
// reuse their block buffer.
//
// When appending would push the buffer past the retention ceiling, the buffer
// and time anchor reset atomically before the block is stored.
func (r *Recorder) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	if r.total+len(samples) > r.maxSamples {
		slog.Debug("audio recorder: ceiling reached, resetting buffer",
			"source_id", r.sourceID,
			"buffered_samples", r.total,
		)
		r.resetLocked()
	}

	chunk := make([]float32, len(samples))
	copy(chunk, samples)
	r.chunks = append(r.chunks, chunk)
	r.total += len(chunk)
}

// resetLocked drops all buffered samples and re-anchors the buffer at the
// current time. Must be called with r.mu held.
func (r *Recorder) resetLocked() {
	r.chunks = nil
	r.total = 0
	r.recordStart = r.now().UnixMilli()
}

// SampleRate returns the capture sample rate in Hz.
func (r *Recorder) SampleRate() int {
	return r.sampleRate
}

// RecordStart returns the unix-millisecond timestamp of sample 0, i.e. the
// time anchor of the current buffer generation.
func (r *Recorder) RecordStart() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordStart
}

// TotalSamples returns the number of samples currently buffered.
func (r *Recorder) TotalSamples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// SourceID returns the identity of the source capture was last started on.
func (r *Recorder) SourceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourceID
}

// readRange copies samples [startSample, endSample) into a fresh slice,
// touching only the chunks that overlap the window. Returns nil when the
// window does not overlap the buffer.
func (r *Recorder) readRange(startSample, endSample int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if startSample < 0 {
		startSample = 0
	}
	if endSample > r.total {
		endSample = r.total
	}
	if startSample >= endSample {
		return nil
	}

	out := make([]float32, endSample-startSample)
	dest := 0
	pos := 0
	for _, chunk := range r.chunks {
		chunkEnd := pos + len(chunk)
		if pos < endSample && chunkEnd > startSample {
			from := max(0, startSample-pos)
			to := min(len(chunk), endSample-pos)
			dest += copy(out[dest:], chunk[from:to])
		}
		pos = chunkEnd
		if pos >= endSample {
			break
		}
	}
	return out
}
