package audio

import (
	"testing"
	"time"
)

// fixedClock returns a clock stuck at the given unix-millisecond instant.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestRecorder_AppendAccumulates(t *testing.T) {
	t.Parallel()

	r := NewRecorder(1000, WithClock(fixedClock(5000)))
	r.Start("mic")

	r.Append(make([]float32, 300))
	r.Append(make([]float32, 200))

	if got := r.TotalSamples(); got != 500 {
		t.Errorf("TotalSamples = %d, want 500", got)
	}
	if got := r.RecordStart(); got != 5000 {
		t.Errorf("RecordStart = %d, want 5000", got)
	}
}

func TestRecorder_AppendWhileStoppedDropped(t *testing.T) {
	t.Parallel()

	r := NewRecorder(1000)
	r.Append(make([]float32, 100)) // never started

	if got := r.TotalSamples(); got != 0 {
		t.Errorf("TotalSamples = %d, want 0", got)
	}

	r.Start("mic")
	r.Append(make([]float32, 100))
	r.Stop()
	r.Append(make([]float32, 100))

	if got := r.TotalSamples(); got != 100 {
		t.Errorf("TotalSamples = %d, want 100 after Stop", got)
	}
}

func TestRecorder_SameSourceRestartKeepsBuffer(t *testing.T) {
	t.Parallel()

	r := NewRecorder(1000, WithClock(fixedClock(5000)))
	r.Start("mic")
	r.Append(make([]float32, 400))

	r.Stop()
	r.Start("mic")

	if got := r.TotalSamples(); got != 400 {
		t.Errorf("TotalSamples = %d, want 400 after same-source restart", got)
	}
	if got := r.RecordStart(); got != 5000 {
		t.Errorf("RecordStart = %d, want original anchor 5000", got)
	}
}

func TestRecorder_NewSourceResetsBuffer(t *testing.T) {
	t.Parallel()

	var nowMs int64 = 5000
	r := NewRecorder(1000, WithClock(func() time.Time { return time.UnixMilli(nowMs) }))
	r.Start("mic-a")
	r.Append(make([]float32, 400))

	nowMs = 9000
	r.Start("mic-b")

	if got := r.TotalSamples(); got != 0 {
		t.Errorf("TotalSamples = %d, want 0 after source change", got)
	}
	if got := r.RecordStart(); got != 9000 {
		t.Errorf("RecordStart = %d, want new anchor 9000", got)
	}
}

func TestRecorder_CeilingResetsBufferAndAnchor(t *testing.T) {
	t.Parallel()

	var nowMs int64 = 5000
	r := NewRecorder(1000,
		WithClock(func() time.Time { return time.UnixMilli(nowMs) }),
		WithBufferCeiling(time.Second), // 1000 samples at 1 kHz
	)
	r.Start("mic")
	r.Append(make([]float32, 600))

	nowMs = 5600
	r.Append(make([]float32, 600)) // would exceed the ceiling

	if got := r.TotalSamples(); got != 600 {
		t.Errorf("TotalSamples = %d, want 600 after ceiling reset", got)
	}
	if got := r.RecordStart(); got != 5600 {
		t.Errorf("RecordStart = %d, want re-anchored 5600", got)
	}
}

func TestRecorder_SourceID(t *testing.T) {
	t.Parallel()

	r := NewRecorder(1000)
	r.Start("mic-7")
	if got := r.SourceID(); got != "mic-7" {
		t.Errorf("SourceID = %q, want mic-7", got)
	}
}
