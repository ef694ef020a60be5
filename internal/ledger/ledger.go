// Package ledger holds the in-memory ordered record of conversation messages
// for one active interview session.
//
// The [Ledger] is the exclusive owner of the session's [Message] set. It is
// append-mostly: messages are created when a new transcription fragment
// appears, mutated while the utterance evolves, and frozen once their audio
// is attached. Messages are never deleted during a session; the Ledger is
// garbage-collected with the session.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Participant identifies who produced a message.
type Participant string

const (
	ParticipantAgent Participant = "agent"
	ParticipantUser  Participant = "user"
)

// IsValid reports whether p is a recognised participant.
func (p Participant) IsValid() bool {
	return p == ParticipantAgent || p == ParticipantUser
}

// Message is the durable unit of record for one utterance. The JSON shape
// matches the stored interview transcript.
type Message struct {
	// TranscriptID is the system-generated unique id for this message,
	// independent of any transcription-stream key.
	TranscriptID string `json:"transcriptId"`

	// InterviewID is the session this message belongs to.
	InterviewID string `json:"interviewId"`

	Participant Participant `json:"participant"`

	// Transcript is the utterance text, mutable until the message is
	// finalized.
	Transcript string `json:"transcript"`

	// TimestampStart and TimestampEnd are unix-millisecond speech boundaries.
	TimestampStart int64 `json:"timestampStart"`
	TimestampEnd   int64 `json:"timestampEnd"`

	// AudioBase64 holds the encoded audio clip between finalization and
	// upload. Cleared once AudioURL is known; empty means absent.
	AudioBase64 string `json:"audioBase64,omitempty"`

	// AudioURL points at the durable audio object once upload succeeds.
	AudioURL string `json:"audioUrl,omitempty"`
}

// Ledger is the ordered collection of messages for one session.
// All methods are safe for concurrent use.
type Ledger struct {
	mu          sync.RWMutex
	interviewID string
	order       []string
	byID        map[string]*Message

	newID func() string
}

// Option configures a [Ledger].
type Option func(*Ledger)

// WithIDGenerator replaces the transcript-id generator. Tests use this for
// deterministic ids.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		l.newID = gen
	}
}

// New creates an empty Ledger for the given interview.
func New(interviewID string, opts ...Option) *Ledger {
	l := &Ledger{
		interviewID: interviewID,
		byID:        make(map[string]*Message),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InterviewID returns the session id this ledger records.
func (l *Ledger) InterviewID() string {
	return l.interviewID
}

// Add appends a new message and returns its generated transcript id.
func (l *Ledger) Add(participant Participant, transcript string, start, end int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.newID()
	l.byID[id] = &Message{
		TranscriptID:   id,
		InterviewID:    l.interviewID,
		Participant:    participant,
		Transcript:     transcript,
		TimestampStart: start,
		TimestampEnd:   end,
	}
	l.order = append(l.order, id)
	return id
}

// Update replaces the transcript text and end timestamp of an existing
// message. Reports whether the message exists.
func (l *Ledger) Update(transcriptID, transcript string, end int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byID[transcriptID]
	if !ok {
		return false
	}
	m.Transcript = transcript
	m.TimestampEnd = end
	return true
}

// FinalizeAudio attaches the encoded audio clip to a message. The clip is
// written once; a second call on the same message is ignored so a duplicate
// finalize trigger cannot replace already-attached audio.
func (l *Ledger) FinalizeAudio(transcriptID, audioBase64 string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byID[transcriptID]
	if !ok || m.AudioBase64 != "" || m.AudioURL != "" {
		return false
	}
	m.AudioBase64 = audioBase64
	return true
}

// SetAudioURL records the durable URL for a message's audio and clears the
// local base64 payload — the two are never held together long-term.
func (l *Ledger) SetAudioURL(transcriptID, url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byID[transcriptID]
	if !ok {
		return false
	}
	m.AudioURL = url
	m.AudioBase64 = ""
	return true
}

// Get returns a copy of the message with the given transcript id.
func (l *Ledger) Get(transcriptID string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.byID[transcriptID]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Messages returns copies of all messages in insertion order.
func (l *Ledger) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.byID[id])
	}
	return out
}

// PendingUpload returns the messages holding audio that has not been
// uploaded yet (base64 present, URL absent).
func (l *Ledger) PendingUpload() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Message
	for _, id := range l.order {
		m := l.byID[id]
		if m.AudioBase64 != "" && m.AudioURL == "" {
			out = append(out, *m)
		}
	}
	return out
}

// Len returns the number of messages in the ledger.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// JSON serializes all messages in insertion order.
func (l *Ledger) JSON() ([]byte, error) {
	return json.Marshal(l.Messages())
}

// LoadJSON replaces the ledger contents with messages parsed from data,
// preserving their order. Used when resuming a paused session.
func (l *Ledger) LoadJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("ledger: parse messages: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = l.order[:0]
	l.byID = make(map[string]*Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		l.byID[m.TranscriptID] = &m
		l.order = append(l.order, m.TranscriptID)
	}
	return nil
}
