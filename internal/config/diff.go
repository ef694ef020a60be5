package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else sets
// RestartRequired.
type ConfigDiff struct {
	// LogLevelChanged is true when the logging verbosity changed.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// FinalizeChanged is true when any finalization tunable changed.
	// New values apply to interviews started after the reload.
	FinalizeChanged bool

	// RestartRequired is true when a field that cannot be hot-reloaded
	// changed (listen address, store DSN, blob location, audio capture).
	RestartRequired bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.FinalizeChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Finalize != new.Finalize {
		d.FinalizeChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Store != new.Store ||
		old.Blob != new.Blob ||
		old.Audio != new.Audio {
		d.RestartRequired = true
	}

	return d
}
