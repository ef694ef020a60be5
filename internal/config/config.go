// Package config provides the configuration schema and loader for the
// verbatim transcript engine.
package config

import "time"

// LogLevel controls log verbosity for the verbatim server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Blob     BlobConfig     `yaml:"blob"`
	Audio    AudioConfig    `yaml:"audio"`
	Finalize FinalizeConfig `yaml:"finalize"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP surface (health, metrics)
	// listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StoreConfig selects the durable interview record store.
type StoreConfig struct {
	// PostgresDSN is the connection string for the record store. Required.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig configures where per-utterance audio clips are stored.
type BlobConfig struct {
	// RootDir is the filesystem directory audio objects are written under.
	RootDir string `yaml:"root_dir"`

	// URLPrefix is prepended to object paths to form returned URLs.
	URLPrefix string `yaml:"url_prefix"`
}

// AudioConfig configures the rolling capture buffers and slice extraction.
// All durations are expressed in milliseconds in the YAML file.
type AudioConfig struct {
	// SampleRate is the capture rate of the audio sources in Hz.
	SampleRate int `yaml:"sample_rate"`

	// BufferCeilingMs bounds each capture buffer. When a buffer would grow
	// past this duration it resets, trading old audio for bounded memory.
	BufferCeilingMs int `yaml:"buffer_ceiling_ms"`

	// TailMarginMs pads every extraction window to avoid truncating
	// trailing speech.
	TailMarginMs int `yaml:"tail_margin_ms"`

	// FadeRampMs is the linear fade applied at both ends of extracted audio.
	FadeRampMs int `yaml:"fade_ramp_ms"`
}

// FinalizeConfig tunes the segment finalization triggers. The padding values
// are empirically tuned for the transcription source's latency profile and
// deliberately configuration rather than constants.
type FinalizeConfig struct {
	// AgentSettleMs is the wait after the agent stops speaking before its
	// open segments finalize, allowing trailing transcript events to arrive.
	AgentSettleMs int `yaml:"agent_settle_ms"`

	// UserSettleMs is the equivalent wait after local voice activity drops.
	// Longer than the agent delay because user ASR finalizes slower.
	UserSettleMs int `yaml:"user_settle_ms"`

	// SweepIntervalMs is the period of the staleness sweep.
	SweepIntervalMs int `yaml:"sweep_interval_ms"`

	// StaleAfterMs finalizes any segment not updated for this long,
	// regardless of speaker or source hints.
	StaleAfterMs int `yaml:"stale_after_ms"`

	// Speaker-dependent extraction window padding. User ASR lags the true
	// speech boundary more than agent TTS does, on both ends.
	AgentStartPadMs int `yaml:"agent_start_pad_ms"`
	AgentEndPadMs   int `yaml:"agent_end_pad_ms"`
	UserStartPadMs  int `yaml:"user_start_pad_ms"`
	UserEndPadMs    int `yaml:"user_end_pad_ms"`
}

// Defaults for every tunable. Applied by [ApplyDefaults] for fields left
// zero in the YAML file.
const (
	DefaultSampleRate      = 48000
	DefaultBufferCeilingMs = 600_000
	DefaultTailMarginMs    = 100
	DefaultFadeRampMs      = 40

	DefaultAgentSettleMs   = 500
	DefaultUserSettleMs    = 1000
	DefaultSweepIntervalMs = 500
	DefaultStaleAfterMs    = 10_000

	DefaultAgentStartPadMs = 1500
	DefaultAgentEndPadMs   = 2000
	DefaultUserStartPadMs  = 3000
	DefaultUserEndPadMs    = 3500
)

// ApplyDefaults fills every zero tunable with its default value.
func (c *Config) ApplyDefaults() {
	defInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	defInt(&c.Audio.SampleRate, DefaultSampleRate)
	defInt(&c.Audio.BufferCeilingMs, DefaultBufferCeilingMs)
	defInt(&c.Audio.TailMarginMs, DefaultTailMarginMs)
	defInt(&c.Audio.FadeRampMs, DefaultFadeRampMs)

	defInt(&c.Finalize.AgentSettleMs, DefaultAgentSettleMs)
	defInt(&c.Finalize.UserSettleMs, DefaultUserSettleMs)
	defInt(&c.Finalize.SweepIntervalMs, DefaultSweepIntervalMs)
	defInt(&c.Finalize.StaleAfterMs, DefaultStaleAfterMs)
	defInt(&c.Finalize.AgentStartPadMs, DefaultAgentStartPadMs)
	defInt(&c.Finalize.AgentEndPadMs, DefaultAgentEndPadMs)
	defInt(&c.Finalize.UserStartPadMs, DefaultUserStartPadMs)
	defInt(&c.Finalize.UserEndPadMs, DefaultUserEndPadMs)

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Blob.URLPrefix == "" {
		c.Blob.URLPrefix = "/api/audio/files"
	}
}

// BufferCeiling returns the capture buffer ceiling as a duration.
func (c AudioConfig) BufferCeiling() time.Duration {
	return time.Duration(c.BufferCeilingMs) * time.Millisecond
}

// TailMargin returns the extraction tail margin as a duration.
func (c AudioConfig) TailMargin() time.Duration {
	return time.Duration(c.TailMarginMs) * time.Millisecond
}

// FadeRamp returns the fade ramp length as a duration.
func (c AudioConfig) FadeRamp() time.Duration {
	return time.Duration(c.FadeRampMs) * time.Millisecond
}

// AgentSettle returns the agent settle delay as a duration.
func (c FinalizeConfig) AgentSettle() time.Duration {
	return time.Duration(c.AgentSettleMs) * time.Millisecond
}

// UserSettle returns the user settle delay as a duration.
func (c FinalizeConfig) UserSettle() time.Duration {
	return time.Duration(c.UserSettleMs) * time.Millisecond
}

// SweepInterval returns the staleness sweep period as a duration.
func (c FinalizeConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// StaleAfter returns the staleness fallback threshold as a duration.
func (c FinalizeConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}
