package config

import "testing"

func baseConfig() *Config {
	c := &Config{
		Server: ServerConfig{ListenAddr: ":8080", LogLevel: LogInfo},
		Store:  StoreConfig{PostgresDSN: "postgres://localhost/verbatim"},
		Blob:   BlobConfig{RootDir: "/var/lib/verbatim", URLPrefix: "/audio"},
	}
	c.ApplyDefaults()
	return c
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()

	d := Diff(old, new)
	if d.Changed() {
		t.Errorf("Diff of identical configs = %+v, want no changes", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
	if d.RestartRequired {
		t.Error("log level change should not require a restart")
	}
}

func TestDiff_Finalize(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Finalize.StaleAfterMs = 20_000

	d := Diff(old, new)
	if !d.FinalizeChanged {
		t.Error("FinalizeChanged = false, want true")
	}
	if d.RestartRequired {
		t.Error("finalize change should not require a restart")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"listen addr", func(c *Config) { c.Server.ListenAddr = ":9090" }},
		{"store dsn", func(c *Config) { c.Store.PostgresDSN = "postgres://other/db" }},
		{"blob root", func(c *Config) { c.Blob.RootDir = "/elsewhere" }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 16000 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)

			d := Diff(old, new)
			if !d.RestartRequired {
				t.Error("RestartRequired = false, want true")
			}
		})
	}
}
