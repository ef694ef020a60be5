// Package mock provides test doubles for the audio package interfaces.
//
// Mocks record every method call so tests can assert on call counts and
// arguments, and expose exported fields controlling return values. All mocks
// are safe for concurrent use.
package mock

import (
	"sync"

	"github.com/verbatimhq/verbatim/pkg/audio"
)

// PlayCall records the arguments of one [Output.Play] invocation.
type PlayCall struct {
	Samples    []float32
	SampleRate int
	Envelope   []audio.GainPoint
}

// Output is a configurable test double for [audio.Output].
type Output struct {
	mu sync.Mutex

	// PlayErr is returned by Play when non-nil.
	PlayErr error

	calls []PlayCall
}

// Play implements [audio.Output].
func (o *Output) Play(samples []float32, sampleRate int, envelope []audio.GainPoint) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := make([]float32, len(samples))
	copy(s, samples)
	env := make([]audio.GainPoint, len(envelope))
	copy(env, envelope)
	o.calls = append(o.calls, PlayCall{Samples: s, SampleRate: sampleRate, Envelope: env})
	return o.PlayErr
}

// Calls returns a copy of all recorded Play invocations.
func (o *Output) Calls() []PlayCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PlayCall, len(o.calls))
	copy(out, o.calls)
	return out
}

// CallCount returns the number of recorded Play invocations.
func (o *Output) CallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}
