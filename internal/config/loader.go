package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults] when the corresponding field is unset.
const (
	DefaultListenAddr          = ":8080"
	DefaultRequiredClips       = 4
	DefaultSimilarityThreshold = 0.75
	DefaultRegistryDir         = "data/registry"
	DefaultMaxUploadBytes      = 10 << 20
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"extractor":  {"resemble"},
	"transcoder": {"ffmpeg", "pcmwav"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields of cfg with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Enrollment.RequiredClips == 0 {
		cfg.Enrollment.RequiredClips = DefaultRequiredClips
	}
	if cfg.Enrollment.SimilarityThreshold == 0 {
		cfg.Enrollment.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = BackendFile
	}
	if cfg.Registry.Backend == BackendFile && cfg.Registry.Dir == "" {
		cfg.Registry.Dir = DefaultRegistryDir
	}
	if cfg.Providers.Transcoder.Name == "" {
		cfg.Providers.Transcoder.Name = "pcmwav"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Enrollment
	if cfg.Enrollment.RequiredClips < 1 {
		errs = append(errs, fmt.Errorf("enrollment.required_clips %d must be at least 1", cfg.Enrollment.RequiredClips))
	}
	if cfg.Enrollment.SimilarityThreshold < -1 || cfg.Enrollment.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("enrollment.similarity_threshold %.2f is out of range [-1, 1]", cfg.Enrollment.SimilarityThreshold))
	}

	// Registry
	if !cfg.Registry.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("registry.backend %q is invalid; valid values: file, postgres", cfg.Registry.Backend))
	}
	if cfg.Registry.Backend == BackendPostgres && cfg.Registry.PostgresDSN == "" {
		errs = append(errs, errors.New("registry.postgres_dsn is required when registry.backend is postgres"))
	}

	// Providers
	if cfg.Providers.Extractor.Name == "" {
		errs = append(errs, errors.New("providers.extractor.name is required"))
	}
	validateProviderName("extractor", cfg.Providers.Extractor.Name)
	for _, fb := range cfg.Providers.ExtractorFallbacks {
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.extractor_fallbacks entries require a name"))
			continue
		}
		validateProviderName("extractor", fb.Name)
	}
	validateProviderName("transcoder", cfg.Providers.Transcoder.Name)

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
