package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/verbatimhq/verbatim/internal/app"
	blobmock "github.com/verbatimhq/verbatim/internal/blob/mock"
	"github.com/verbatimhq/verbatim/internal/config"
	"github.com/verbatimhq/verbatim/internal/segment"
	"github.com/verbatimhq/verbatim/internal/store"
	storemock "github.com/verbatimhq/verbatim/internal/store/mock"
)

// testAudioCfg keeps capture buffers small in tests.
func testAudioCfg() config.AudioConfig {
	return config.AudioConfig{
		SampleRate:      1000,
		BufferCeilingMs: 60_000,
		TailMarginMs:    100,
		FadeRampMs:      40,
	}
}

func newTestManager() (*app.InterviewManager, *storemock.Store) {
	st := &storemock.Store{}
	return app.NewInterviewManager(app.InterviewManagerConfig{
		Store: st,
		Blob:  &blobmock.Storage{},
		Audio: testAudioCfg(),
		Finalize: config.FinalizeConfig{
			SweepIntervalMs: 50,
			StaleAfterMs:    60_000,
		},
	}), st
}

func TestManager_StartCreatesRecord(t *testing.T) {
	t.Parallel()
	m, st := newTestManager()
	ctx := context.Background()

	info, err := m.Start(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.End(ctx, info.InterviewID)

	if info.InterviewID != "iv-1" {
		t.Errorf("interview id = %q, want iv-1", info.InterviewID)
	}

	iv, err := st.Get(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if iv.Status != store.StatusInProgress {
		t.Errorf("status = %q, want %q", iv.Status, store.StatusInProgress)
	}

	if _, ok := m.Coordinator("iv-1"); !ok {
		t.Error("no coordinator for active interview")
	}
	if got := len(m.Active()); got != 1 {
		t.Errorf("active interviews = %d, want 1", got)
	}
}

func TestManager_StartTwiceFails(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Start(ctx, "iv-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.End(ctx, "iv-1")

	if _, err := m.Start(ctx, "iv-1"); err == nil {
		t.Error("second Start for the same id should fail")
	}
}

func TestManager_EndFlushesAndCompletes(t *testing.T) {
	t.Parallel()
	m, st := newTestManager()
	ctx := context.Background()

	info, err := m.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := info.InterviewID

	m.AppendUserAudio(id, make([]float32, 10_000))

	coord, ok := m.Coordinator(id)
	if !ok {
		t.Fatal("no coordinator")
	}
	now := time.Now().UnixMilli()
	coord.HandleFragments(ctx, []segment.Fragment{{
		ID:              "f1",
		Speaker:         segment.SpeakerUser,
		Text:            "hello",
		FirstObservedAt: now,
		LastObservedAt:  now + 500,
	}})

	if err := m.End(ctx, id); err != nil {
		t.Fatalf("End: %v", err)
	}

	iv, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if iv.Status != store.StatusCompleted {
		t.Errorf("status = %q, want %q", iv.Status, store.StatusCompleted)
	}
	if len(iv.Messages) != 1 {
		t.Errorf("persisted messages = %d, want 1", len(iv.Messages))
	}

	if err := m.End(ctx, id); err == nil {
		t.Error("ending an inactive interview should fail")
	}
}

func TestManager_AudioForUnknownInterviewDropped(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()

	// Must not panic or create state.
	m.AppendAgentAudio("nope", make([]float32, 100))
	m.AppendUserAudio("nope", make([]float32, 100))

	if got := len(m.Active()); got != 0 {
		t.Errorf("active interviews = %d, want 0", got)
	}
}

func TestManager_CloseEndsEverything(t *testing.T) {
	t.Parallel()
	m, st := newTestManager()
	ctx := context.Background()

	for _, id := range []string{"iv-a", "iv-b"} {
		if _, err := m.Start(ctx, id); err != nil {
			t.Fatalf("Start %s: %v", id, err)
		}
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(m.Active()); got != 0 {
		t.Errorf("active interviews after Close = %d, want 0", got)
	}

	for _, id := range []string{"iv-a", "iv-b"} {
		iv, err := st.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if iv.Status != store.StatusCompleted {
			t.Errorf("%s status = %q, want completed", id, iv.Status)
		}
	}
}
