package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BufferCeilingMs < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_ceiling_ms must not be negative, got %d", cfg.Audio.BufferCeilingMs))
	}
	if cfg.Finalize.SweepIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("finalize.sweep_interval_ms must be positive, got %d", cfg.Finalize.SweepIntervalMs))
	}
	if cfg.Finalize.StaleAfterMs <= cfg.Finalize.SweepIntervalMs {
		errs = append(errs, fmt.Errorf("finalize.stale_after_ms (%d) must exceed finalize.sweep_interval_ms (%d)",
			cfg.Finalize.StaleAfterMs, cfg.Finalize.SweepIntervalMs))
	}
	for name, v := range map[string]int{
		"finalize.agent_settle_ms":    cfg.Finalize.AgentSettleMs,
		"finalize.user_settle_ms":     cfg.Finalize.UserSettleMs,
		"finalize.agent_start_pad_ms": cfg.Finalize.AgentStartPadMs,
		"finalize.agent_end_pad_ms":   cfg.Finalize.AgentEndPadMs,
		"finalize.user_start_pad_ms":  cfg.Finalize.UserStartPadMs,
		"finalize.user_end_pad_ms":    cfg.Finalize.UserEndPadMs,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}

	return errors.Join(errs...)
}
