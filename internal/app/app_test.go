package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/verbatimhq/verbatim/internal/app"
	blobmock "github.com/verbatimhq/verbatim/internal/blob/mock"
	"github.com/verbatimhq/verbatim/internal/config"
	"github.com/verbatimhq/verbatim/internal/store"
	storemock "github.com/verbatimhq/verbatim/internal/store/mock"
)

// testConfig returns a minimal config for app tests. The listen address is
// never bound because tests do not call Run.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Store: config.StoreConfig{
			PostgresDSN: "postgres://unused",
		},
		Audio: testAudioCfg(),
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_WithMocks(t *testing.T) {
	cfg := testConfig()
	st := &storemock.Store{}

	a, err := app.New(context.Background(), cfg,
		app.WithStore(st),
		app.WithBlob(&blobmock.Storage{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Interviews == nil {
		t.Fatal("interview manager not initialised")
	}
}

func TestShutdown_FlushesActiveInterviews(t *testing.T) {
	cfg := testConfig()
	st := &storemock.Store{}

	a, err := app.New(context.Background(), cfg,
		app.WithStore(st),
		app.WithBlob(&blobmock.Storage{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	info, err := a.Interviews.Start(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	iv, err := st.Get(ctx, info.InterviewID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if iv.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed after shutdown", iv.Status)
	}

	// Shutdown is idempotent.
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
