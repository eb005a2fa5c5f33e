package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	// LogLevelChanged is true when server.log_level changed.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ThresholdChanged is true when enrollment.similarity_threshold changed.
	ThresholdChanged bool
	NewThreshold     float64

	// NormalizeProbeChanged is true when enrollment.normalize_probe changed.
	NormalizeProbeChanged bool
	NewNormalizeProbe     bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ThresholdChanged || d.NormalizeProbeChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; registry
// backend and provider changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Enrollment.SimilarityThreshold != new.Enrollment.SimilarityThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Enrollment.SimilarityThreshold
	}

	if old.Enrollment.NormalizeProbe != new.Enrollment.NormalizeProbe {
		d.NormalizeProbeChanged = true
		d.NewNormalizeProbe = new.Enrollment.NormalizeProbe
	}

	return d
}
