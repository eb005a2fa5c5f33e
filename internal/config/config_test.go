package config_test

import (
	"errors"
	"testing"

	"github.com/voxident/voxident/internal/config"
	"github.com/voxident/voxident/pkg/provider/extractor"
	extractormock "github.com/voxident/voxident/pkg/provider/extractor/mock"
	"github.com/voxident/voxident/pkg/provider/transcoder"
	transcodermock "github.com/voxident/voxident/pkg/provider/transcoder/mock"
)

// ── Type validators ──────────────────────────────────────────────────────────

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("LogLevel %q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("LogLevel \"verbose\" should be invalid")
	}
}

func TestBackendIsValid(t *testing.T) {
	if !config.BackendFile.IsValid() || !config.BackendPostgres.IsValid() {
		t.Error("built-in backends should be valid")
	}
	if config.Backend("s3").IsValid() {
		t.Error("Backend \"s3\" should be invalid")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownExtractor(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateExtractor(config.ProviderEntry{Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown extractor provider")
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownTranscoder(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTranscoder(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_RegisteredExtractor(t *testing.T) {
	reg := config.NewRegistry()
	want := &extractormock.Provider{}
	reg.RegisterExtractor("stub", func(e config.ProviderEntry) (extractor.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateExtractor(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredTranscoder(t *testing.T) {
	reg := config.NewRegistry()
	want := &transcodermock.Transcoder{}
	reg.RegisterTranscoder("stub", func(e config.ProviderEntry) (transcoder.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateTranscoder(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterExtractor("stub", func(e config.ProviderEntry) (extractor.Provider, error) {
		gotEntry = e
		return &extractormock.Provider{}, nil
	})

	entry := config.ProviderEntry{Name: "stub", BaseURL: "http://localhost:9090", Model: "resemblyzer"}
	if _, err := reg.CreateExtractor(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotEntry.BaseURL != entry.BaseURL || gotEntry.Model != entry.Model {
		t.Errorf("factory received %+v, want %+v", gotEntry, entry)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterExtractor("broken", func(e config.ProviderEntry) (extractor.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateExtractor(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	reg := config.NewRegistry()
	first := &extractormock.Provider{}
	second := &extractormock.Provider{}
	reg.RegisterExtractor("dup", func(config.ProviderEntry) (extractor.Provider, error) { return first, nil })
	reg.RegisterExtractor("dup", func(config.ProviderEntry) (extractor.Provider, error) { return second, nil })

	got, err := reg.CreateExtractor(config.ProviderEntry{Name: "dup"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != second {
		t.Error("later registration should win")
	}
}
