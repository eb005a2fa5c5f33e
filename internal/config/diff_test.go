package config_test

import (
	"testing"

	"github.com/voxident/voxident/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Enrollment: config.EnrollmentConfig{
			RequiredClips:       4,
			SimilarityThreshold: 0.75,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.Any() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_ThresholdChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Enrollment: config.EnrollmentConfig{SimilarityThreshold: 0.75}}
	new := &config.Config{Enrollment: config.EnrollmentConfig{SimilarityThreshold: 0.85}}

	d := config.Diff(old, new)
	if !d.ThresholdChanged {
		t.Error("expected ThresholdChanged=true")
	}
	if d.NewThreshold != 0.85 {
		t.Errorf("expected NewThreshold=0.85, got %v", d.NewThreshold)
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
}

func TestDiff_NormalizeProbeChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Enrollment: config.EnrollmentConfig{NormalizeProbe: false}}
	new := &config.Config{Enrollment: config.EnrollmentConfig{NormalizeProbe: true}}

	d := config.Diff(old, new)
	if !d.NormalizeProbeChanged {
		t.Error("expected NormalizeProbeChanged=true")
	}
	if !d.NewNormalizeProbe {
		t.Error("expected NewNormalizeProbe=true")
	}
}

func TestDiff_RequiredClipsNotHotReloadable(t *testing.T) {
	t.Parallel()
	// Changing required_clips mid-round would strand staged clips, so the
	// diff deliberately ignores it.
	old := &config.Config{Enrollment: config.EnrollmentConfig{RequiredClips: 4}}
	new := &config.Config{Enrollment: config.EnrollmentConfig{RequiredClips: 6}}

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("required_clips change should not appear in diff, got %+v", d)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Enrollment: config.EnrollmentConfig{SimilarityThreshold: 0.75},
	}
	new := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogWarn},
		Enrollment: config.EnrollmentConfig{SimilarityThreshold: 0.9, NormalizeProbe: true},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.ThresholdChanged || !d.NormalizeProbeChanged {
		t.Errorf("expected all three changes, got %+v", d)
	}
}
