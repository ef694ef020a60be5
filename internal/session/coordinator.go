// Package session owns the live interview session: it consumes transcript
// fragment updates and turn signals, decides when each utterance is complete,
// and drives finalization (audio extraction, upload, durable persistence).
//
// A [Coordinator] is the single owner of all per-session mutable state. Every
// state transition happens under one mutex with no blocking work held inside
// it, so a finalization decision can never interleave with a competing
// trigger for the same segment.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/verbatimhq/verbatim/internal/blob"
	"github.com/verbatimhq/verbatim/internal/config"
	"github.com/verbatimhq/verbatim/internal/ledger"
	"github.com/verbatimhq/verbatim/internal/observe"
	"github.com/verbatimhq/verbatim/internal/segment"
	"github.com/verbatimhq/verbatim/internal/store"
	"github.com/verbatimhq/verbatim/pkg/audio"
)

// Finalization triggers, recorded as the "trigger" metric attribute and in
// logs.
const (
	TriggerSourceFinal = "source_final"
	TriggerTurnEnd     = "turn_end"
	TriggerStaleness   = "staleness"
	TriggerSessionEnd  = "session_end"
)

// mapping tracks the lifecycle of one transcript fragment id. Once finalized
// is set the mapping is closed forever; late updates for the id are logged
// and dropped.
type mapping struct {
	transcriptID string
	speaker      segment.Speaker
	lastUpdated  time.Time
	finalized    bool
}

// Coordinator is the finalization state machine for one interview session.
// All exported methods are safe for concurrent use.
type Coordinator struct {
	interviewID string
	fin         config.FinalizeConfig

	led        *ledger.Ledger
	extractors map[segment.Speaker]*audio.Extractor
	store      store.Store
	blob       blob.Storage
	met        *observe.Metrics
	log        *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	fragments   map[string]segment.Fragment
	mappings    map[string]*mapping
	interrupted map[string]bool
	agentTalk   bool
	userTalk    bool
	agentTimer  *time.Timer
	userTimer   *time.Timer
	ended       bool

	done     chan struct{}
	stopOnce sync.Once
}

// CoordinatorConfig holds all dependencies for a [Coordinator].
type CoordinatorConfig struct {
	// InterviewID identifies the interview session.
	InterviewID string

	// AgentExtractor and UserExtractor read from the rolling capture buffer
	// of the respective participant.
	AgentExtractor *audio.Extractor
	UserExtractor  *audio.Extractor

	// Store persists finalized messages and the interview record.
	Store store.Store

	// Blob stores finalized audio clips.
	Blob blob.Storage

	// Finalize holds the settle, sweep, and padding tunables. Zero fields
	// are filled with package defaults.
	Finalize config.FinalizeConfig

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default] when nil.
	Logger *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewCoordinator creates a Coordinator for one interview session.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	fin := cfg.Finalize
	defInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	defInt(&fin.AgentSettleMs, config.DefaultAgentSettleMs)
	defInt(&fin.UserSettleMs, config.DefaultUserSettleMs)
	defInt(&fin.SweepIntervalMs, config.DefaultSweepIntervalMs)
	defInt(&fin.StaleAfterMs, config.DefaultStaleAfterMs)
	defInt(&fin.AgentStartPadMs, config.DefaultAgentStartPadMs)
	defInt(&fin.AgentEndPadMs, config.DefaultAgentEndPadMs)
	defInt(&fin.UserStartPadMs, config.DefaultUserStartPadMs)
	defInt(&fin.UserEndPadMs, config.DefaultUserEndPadMs)

	met := cfg.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		interviewID: cfg.InterviewID,
		fin:         fin,
		led:         ledger.New(cfg.InterviewID),
		extractors: map[segment.Speaker]*audio.Extractor{
			segment.SpeakerAgent: cfg.AgentExtractor,
			segment.SpeakerUser:  cfg.UserExtractor,
		},
		store:       cfg.Store,
		blob:        cfg.Blob,
		met:         met,
		log:         log.With(slog.String("interview_id", cfg.InterviewID)),
		now:         now,
		fragments:   make(map[string]segment.Fragment),
		mappings:    make(map[string]*mapping),
		interrupted: make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Start begins the staleness sweep in a background goroutine. The goroutine
// runs until [Coordinator.Stop] or [Coordinator.End] is called or ctx is
// cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	c.met.ActiveInterviews.Add(ctx, 1)
	go c.sweepLoop(ctx)
}

// Stop halts the sweep loop and cancels pending settle timers. Safe to call
// multiple times. Open segments are left open; use [Coordinator.End] for a
// full flush.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimersLocked()
}

// cancelTimersLocked stops any pending settle timers. Caller holds c.mu.
func (c *Coordinator) cancelTimersLocked() {
	if c.agentTimer != nil {
		c.agentTimer.Stop()
		c.agentTimer = nil
	}
	if c.userTimer != nil {
		c.userTimer.Stop()
		c.userTimer = nil
	}
}

// sweepLoop periodically finalizes segments that stopped receiving updates
// without any turn signal, the safety net for missed source hints.
func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.fin.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep finalizes every open mapping whose last update is older than the
// staleness threshold.
func (c *Coordinator) sweep(ctx context.Context) {
	cutoff := c.now().Add(-c.fin.StaleAfter())

	c.mu.Lock()
	var stale []string
	for id, m := range c.mappings {
		if !m.finalized && m.lastUpdated.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	c.mu.Unlock()

	for _, id := range stale {
		c.finalize(ctx, id, TriggerStaleness)
	}
}

// HandleFragments ingests a batch of transcription updates for one speaker
// stream. Unseen ids open a new segment; seen ids update the open segment's
// text and end boundary. Updates for an already-finalized id are dropped.
//
// A fragment carrying the source's advisory completion hint finalizes its
// segment immediately.
func (c *Coordinator) HandleFragments(ctx context.Context, frags []segment.Fragment) {
	var final []string

	c.mu.Lock()
	for _, f := range frags {
		if f.ID == "" || !f.Speaker.IsValid() {
			c.log.Warn("dropping malformed fragment", slog.String("id", f.ID))
			continue
		}
		c.met.RecordFragment(ctx, string(f.Speaker))

		prev, seen := c.fragments[f.ID]
		if seen {
			// The stream replaces text wholesale; keep the original
			// first-observed boundary.
			f.FirstObservedAt = prev.FirstObservedAt
			if f.LastObservedAt < prev.LastObservedAt {
				f.LastObservedAt = prev.LastObservedAt
			}
		}
		c.fragments[f.ID] = f

		// Status fragments are display-only; they never become messages.
		if segment.IsStatusID(f.ID) {
			continue
		}

		m, ok := c.mappings[f.ID]
		switch {
		case !ok:
			tid := c.led.Add(participantFor(f.Speaker), f.Text, f.FirstObservedAt, f.LastObservedAt)
			c.mappings[f.ID] = &mapping{
				transcriptID: tid,
				speaker:      f.Speaker,
				lastUpdated:  c.now(),
			}
			c.met.OpenSegments.Add(ctx, 1)
		case m.finalized:
			c.log.Warn("update for finalized segment dropped",
				slog.String("fragment_id", f.ID),
				slog.String("transcript_id", m.transcriptID),
			)
			continue
		default:
			c.led.Update(m.transcriptID, f.Text, f.LastObservedAt)
			m.lastUpdated = c.now()
		}

		if f.Final {
			final = append(final, f.ID)
		}
	}
	c.mu.Unlock()

	for _, id := range final {
		c.finalize(ctx, id, TriggerSourceFinal)
	}
}

// SetAgentSpeaking records an agent speaking-state transition. The
// speaking→listening edge arms the agent settle timer; once it fires, all
// open agent segments finalize. A new speaking edge cancels the pending
// timer.
//
// When the agent yields while the user is already speaking, the latest agent
// utterance is marked interrupted.
func (c *Coordinator) SetAgentSpeaking(ctx context.Context, speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if speaking == c.agentTalk {
		return
	}
	c.agentTalk = speaking

	if speaking {
		if c.agentTimer != nil {
			c.agentTimer.Stop()
			c.agentTimer = nil
		}
		return
	}

	if c.userTalk {
		if f, ok := segment.LatestAgentFragment(c.fragments); ok {
			c.interrupted[f.ID] = true
			c.log.Info("agent utterance interrupted", slog.String("fragment_id", f.ID))
		}
	}

	c.armTimerLocked(&c.agentTimer, c.fin.AgentSettle(), func() {
		c.finalizeOpen(ctx, segment.SpeakerAgent, TriggerTurnEnd)
	})
}

// SetUserSpeaking records a user voice-activity transition. The true→false
// edge arms the user settle timer; once it fires, all open user segments
// finalize. Renewed speech cancels the pending timer.
func (c *Coordinator) SetUserSpeaking(ctx context.Context, speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if speaking == c.userTalk {
		return
	}
	c.userTalk = speaking

	if speaking {
		if c.userTimer != nil {
			c.userTimer.Stop()
			c.userTimer = nil
		}
		return
	}

	c.armTimerLocked(&c.userTimer, c.fin.UserSettle(), func() {
		c.finalizeOpen(ctx, segment.SpeakerUser, TriggerTurnEnd)
	})
}

// armTimerLocked replaces the timer slot with a fresh settle timer. Caller
// holds c.mu.
func (c *Coordinator) armTimerLocked(slot **time.Timer, d time.Duration, fire func()) {
	if *slot != nil {
		(*slot).Stop()
	}
	*slot = time.AfterFunc(d, fire)
}

// finalizeOpen finalizes every open mapping belonging to speaker.
func (c *Coordinator) finalizeOpen(ctx context.Context, speaker segment.Speaker, trigger string) {
	c.mu.Lock()
	var open []string
	for id, m := range c.mappings {
		if !m.finalized && m.speaker == speaker {
			open = append(open, id)
		}
	}
	c.mu.Unlock()

	for _, id := range open {
		c.finalize(ctx, id, trigger)
	}
}

// participantFor maps a transcript stream speaker to the ledger participant.
func participantFor(s segment.Speaker) ledger.Participant {
	if s == segment.SpeakerAgent {
		return ledger.ParticipantAgent
	}
	return ledger.ParticipantUser
}

// Messages returns the session's messages in creation order.
func (c *Coordinator) Messages() []ledger.Message {
	return c.led.Messages()
}

// DisplaySegments returns the render-ready conversation view: fragments
// ordered by first observation with consecutive near-adjacent agent
// fragments merged.
func (c *Coordinator) DisplaySegments() []segment.Display {
	c.mu.Lock()
	frags := make(map[string]segment.Fragment, len(c.fragments))
	for id, f := range c.fragments {
		frags[id] = f
	}
	c.mu.Unlock()

	return segment.Merge(frags)
}

// Interrupted reports whether the given fragment id was marked as an
// interrupted agent utterance.
func (c *Coordinator) Interrupted(fragmentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupted[fragmentID]
}
