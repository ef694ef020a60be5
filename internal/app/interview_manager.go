package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verbatimhq/verbatim/internal/blob"
	"github.com/verbatimhq/verbatim/internal/config"
	"github.com/verbatimhq/verbatim/internal/session"
	"github.com/verbatimhq/verbatim/internal/store"
	"github.com/verbatimhq/verbatim/pkg/audio"
)

// InterviewInfo holds metadata about an active interview session.
type InterviewInfo struct {
	// InterviewID is the unique identifier for this interview.
	InterviewID string

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// activeInterview bundles the per-session machinery: one capture buffer per
// side of the conversation and the coordinator consuming them.
type activeInterview struct {
	info     InterviewInfo
	coord    *session.Coordinator
	agentRec *audio.Recorder
	userRec  *audio.Recorder
	cancel   context.CancelFunc
}

// InterviewManager manages the lifecycle of interview sessions. Multiple
// interviews may run concurrently; each owns its own coordinator and capture
// buffers. All exported methods are safe for concurrent use.
type InterviewManager struct {
	mu     sync.Mutex
	active map[string]*activeInterview

	// Dependencies injected at construction.
	store    store.Store
	blob     blob.Storage
	audioCfg config.AudioConfig
	finalize config.FinalizeConfig
}

// InterviewManagerConfig holds all dependencies for an [InterviewManager].
type InterviewManagerConfig struct {
	Store    store.Store
	Blob     blob.Storage
	Audio    config.AudioConfig
	Finalize config.FinalizeConfig
}

// NewInterviewManager creates an InterviewManager with the given dependencies.
func NewInterviewManager(cfg InterviewManagerConfig) *InterviewManager {
	return &InterviewManager{
		active:   make(map[string]*activeInterview),
		store:    cfg.Store,
		blob:     cfg.Blob,
		audioCfg: cfg.Audio,
		finalize: cfg.Finalize,
	}
}

// Start begins a new interview session. It creates the durable record,
// builds the per-side capture buffers and the coordinator, and starts the
// staleness sweep. When id is empty the store generates one.
//
// Returns an error if a session with this id is already active.
func (m *InterviewManager) Start(ctx context.Context, id string) (InterviewInfo, error) {
	iv, err := m.store.Create(ctx, id)
	if err != nil {
		return InterviewInfo{}, fmt.Errorf("app: create interview: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[iv.ID]; exists {
		return InterviewInfo{}, fmt.Errorf("app: interview %s is already active", iv.ID)
	}

	recOpts := []audio.RecorderOption{
		audio.WithBufferCeiling(m.audioCfg.BufferCeiling()),
	}
	agentRec := audio.NewRecorder(m.audioCfg.SampleRate, recOpts...)
	userRec := audio.NewRecorder(m.audioCfg.SampleRate, recOpts...)
	agentRec.Start(iv.ID + "/agent")
	userRec.Start(iv.ID + "/user")

	exOpts := []audio.ExtractorOption{
		audio.WithTailMargin(m.audioCfg.TailMargin()),
		audio.WithFadeRamp(m.audioCfg.FadeRamp()),
	}

	coord := session.NewCoordinator(session.CoordinatorConfig{
		InterviewID:    iv.ID,
		AgentExtractor: audio.NewExtractor(agentRec, exOpts...),
		UserExtractor:  audio.NewExtractor(userRec, exOpts...),
		Store:          m.store,
		Blob:           m.blob,
		Finalize:       m.finalize,
	})

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	coord.Start(sweepCtx)

	ai := &activeInterview{
		info: InterviewInfo{
			InterviewID: iv.ID,
			StartedAt:   iv.CreatedAt,
		},
		coord:    coord,
		agentRec: agentRec,
		userRec:  userRec,
		cancel:   cancel,
	}
	m.active[iv.ID] = ai

	slog.Info("interview started", "interview_id", iv.ID)
	return ai.info, nil
}

// Coordinator returns the coordinator for an active interview, for feeding
// fragments and turn signals.
func (m *InterviewManager) Coordinator(id string) (*session.Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ai, ok := m.active[id]
	if !ok {
		return nil, false
	}
	return ai.coord, true
}

// AppendAgentAudio adds captured agent-side samples to the interview's
// rolling buffer. Samples for unknown interviews are dropped.
func (m *InterviewManager) AppendAgentAudio(id string, samples []float32) {
	if rec, ok := m.recorder(id, true); ok {
		rec.Append(samples)
	}
}

// AppendUserAudio adds captured user-side samples to the interview's rolling
// buffer. Samples for unknown interviews are dropped.
func (m *InterviewManager) AppendUserAudio(id string, samples []float32) {
	if rec, ok := m.recorder(id, false); ok {
		rec.Append(samples)
	}
}

func (m *InterviewManager) recorder(id string, agent bool) (*audio.Recorder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ai, ok := m.active[id]
	if !ok {
		return nil, false
	}
	if agent {
		return ai.agentRec, true
	}
	return ai.userRec, true
}

// End finishes an interview: it flushes the coordinator (finalizing open
// segments and retrying pending uploads), stops capture, and removes the
// session from the active set.
func (m *InterviewManager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	ai, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("app: interview %s is not active", id)
	}

	ai.agentRec.Stop()
	ai.userRec.Stop()
	err := ai.coord.End(ctx)
	ai.cancel()

	slog.Info("interview ended", "interview_id", id)
	if err != nil {
		return fmt.Errorf("app: end interview %s: %w", id, err)
	}
	return nil
}

// UpdateFinalize replaces the finalization tunables used for interviews
// started after this call. Running coordinators keep their settings.
func (m *InterviewManager) UpdateFinalize(fin config.FinalizeConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalize = fin
}

// Active returns metadata for all currently active interviews.
func (m *InterviewManager) Active() []InterviewInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]InterviewInfo, 0, len(m.active))
	for _, ai := range m.active {
		infos = append(infos, ai.info)
	}
	return infos
}

// Close ends every active interview. Used during application shutdown.
func (m *InterviewManager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.End(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
