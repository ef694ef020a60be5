package audio

import (
	"fmt"
	"time"
)

// GainPoint is one automation point in a playback gain envelope. Gain ramps
// linearly between consecutive points.
type GainPoint struct {
	// At is the offset from playback start.
	At time.Duration

	// Gain is the multiplier at that offset, in [0, 1].
	Gain float64
}

// Output plays a slice of samples with a scheduled gain envelope. The
// real-time rendering backend (a speaker device, a browser bridge, a test
// double) implements this.
type Output interface {
	Play(samples []float32, sampleRate int, envelope []GainPoint) error
}

// Player replays transcript windows from a live Recorder buffer. Unlike the
// durable-encoding path, smoothing is applied through the gain envelope so
// the buffered samples are never altered.
type Player struct {
	ex   *Extractor
	out  Output
	lead time.Duration
	tail time.Duration
	ramp time.Duration
}

// NewPlayer creates a Player that reads through ex and renders via out.
// lead widens the window before the transcript start and tail after its end;
// transcription timestamps lag true speech boundaries, and the lag differs
// per speaker, so callers pass speaker-appropriate values.
func NewPlayer(ex *Extractor, out Output, lead, tail time.Duration) *Player {
	return &Player{
		ex:   ex,
		out:  out,
		lead: lead,
		tail: tail,
		ramp: DefaultFadeRamp,
	}
}

// PlaySlice extracts the window around [startAbsMs, startAbsMs+durationMs]
// and schedules it for playback with fade-in/fade-out gain ramps. Returns an
// error when no audio is available for the window.
func (p *Player) PlaySlice(startAbsMs, durationMs int64) error {
	s, ok := p.ex.ExtractRaw(startAbsMs-p.lead.Milliseconds(), durationMs+p.lead.Milliseconds()+p.tail.Milliseconds())
	if !ok {
		return fmt.Errorf("audio: no buffered audio for window at %dms", startAbsMs)
	}

	total := s.Duration()
	ramp := p.ramp
	if ramp*2 > total {
		ramp = total / 2
	}
	envelope := []GainPoint{
		{At: 0, Gain: 0},
		{At: ramp, Gain: 1},
		{At: total - ramp, Gain: 1},
		{At: total, Gain: 0},
	}
	return p.out.Play(s.Samples, s.SampleRate, envelope)
}
