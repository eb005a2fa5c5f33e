// Package app wires the enrollment, identification, and registry layers
// into one application service consumed by the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxident/voxident/internal/config"
	"github.com/voxident/voxident/internal/enroll"
	"github.com/voxident/voxident/internal/identify"
	"github.com/voxident/voxident/internal/observe"
	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/extractor"
	"github.com/voxident/voxident/pkg/provider/transcoder"
	"github.com/voxident/voxident/pkg/registry"
	registryfile "github.com/voxident/voxident/pkg/registry/file"
	registrypostgres "github.com/voxident/voxident/pkg/registry/postgres"
	"github.com/voxident/voxident/pkg/voiceid"
)

// Providers bundles the external services the app depends on.
type Providers struct {
	// Extractor produces speaker embeddings from canonical WAV clips.
	Extractor extractor.Provider

	// Transcoder converts uploaded audio to the canonical format.
	Transcoder transcoder.Provider
}

// App is the application service behind the HTTP handlers. Safe for
// concurrent use.
type App struct {
	registry    registry.Registry
	extractor   extractor.Provider
	transcoder  transcoder.Provider
	accumulator *enroll.Accumulator
	metrics     *observe.Metrics
	logger      *slog.Logger

	mu             sync.RWMutex
	matcher        *identify.Matcher
	normalizeProbe bool
}

// Option configures an App.
type Option func(*App)

// WithRegistry injects a pre-built registry, overriding the backend
// selected by the config. Used in tests.
func WithRegistry(reg registry.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds the application service from config and providers, opening
// the configured registry backend unless one was injected.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	if providers.Extractor == nil {
		return nil, errors.New("app: extractor provider is required")
	}
	if providers.Transcoder == nil {
		return nil, errors.New("app: transcoder provider is required")
	}

	a := &App{
		extractor:      providers.Extractor,
		transcoder:     providers.Transcoder,
		logger:         slog.Default(),
		normalizeProbe: cfg.Enrollment.NormalizeProbe,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.registry == nil {
		reg, err := openRegistry(ctx, cfg, providers.Extractor)
		if err != nil {
			return nil, err
		}
		a.registry = reg
	}

	a.accumulator = enroll.NewAccumulator(a.registry, a.extractor,
		enroll.WithRequiredClips(cfg.Enrollment.RequiredClips),
		enroll.WithLogger(a.logger),
	)
	a.matcher = identify.NewMatcher(a.registry,
		identify.WithThreshold(cfg.Enrollment.SimilarityThreshold),
		identify.WithNormalizeProbe(cfg.Enrollment.NormalizeProbe),
	)
	return a, nil
}

// openRegistry constructs the registry backend named in cfg.
func openRegistry(ctx context.Context, cfg *config.Config, ext extractor.Provider) (registry.Registry, error) {
	switch cfg.Registry.Backend {
	case config.BackendFile:
		return registryfile.New(cfg.Registry.Dir)
	case config.BackendPostgres:
		return registrypostgres.New(ctx, cfg.Registry.PostgresDSN, ext.Dimensions())
	default:
		return nil, fmt.Errorf("app: unknown registry backend %q", cfg.Registry.Backend)
	}
}

// Registry exposes the profile store for read paths of the HTTP layer.
func (a *App) Registry() registry.Registry {
	return a.registry
}

// RequiredClips returns the clips-per-round count of the enrollment
// pipeline.
func (a *App) RequiredClips() int {
	return a.accumulator.RequiredClips()
}

// SubmitClip transcodes an uploaded clip to the canonical format and
// stages it in the identity's enrollment round.
func (a *App) SubmitClip(ctx context.Context, identity string, slot int, raw []byte) (enroll.Progress, error) {
	ctx, span := observe.StartSpan(ctx, "enroll.submit")
	defer span.End()
	start := time.Now()

	wav, err := a.transcode(ctx, raw)
	if err != nil {
		return enroll.Progress{}, err
	}

	existed := a.profileExists(ctx, identity)

	prog, err := a.accumulator.SubmitClip(ctx, identity, slot, wav)
	a.metrics.EnrollDuration.Record(ctx, time.Since(start).Seconds())

	for _, ce := range prog.ClipErrors {
		observe.Logger(ctx).Warn("clip skipped during enrollment commit",
			"identity", prog.Identity,
			"slot", ce.Slot,
			"error", ce.Err)
		a.metrics.RecordProviderError(ctx, a.extractor.ModelID(), "extractor")
	}
	if err != nil {
		a.metrics.RecordClipSubmitted(ctx, "failed")
		return prog, err
	}

	if prog.Complete {
		a.metrics.RecordClipSubmitted(ctx, "committed")
		a.metrics.ActiveRounds.Add(ctx, -1)
		if !existed {
			a.metrics.EnrolledIdentities.Add(ctx, 1)
		}
	} else {
		a.metrics.RecordClipSubmitted(ctx, "collected")
		if prog.ClipsReceived == 1 {
			a.metrics.ActiveRounds.Add(ctx, 1)
		}
	}
	return prog, nil
}

// EnrollmentStatus reports the progress of identity's current round.
func (a *App) EnrollmentStatus(identity string) (enroll.Progress, error) {
	return a.accumulator.Status(identity)
}

// ResetEnrollment discards identity's in-progress round.
func (a *App) ResetEnrollment(ctx context.Context, identity string) error {
	status, err := a.accumulator.Status(identity)
	if err != nil {
		return err
	}
	if err := a.accumulator.Reset(identity); err != nil {
		return err
	}
	if status.ClipsReceived > 0 {
		a.metrics.ActiveRounds.Add(ctx, -1)
	}
	return nil
}

// Identify transcodes the probe clip, extracts its embedding, and matches
// it against all enrolled profiles.
func (a *App) Identify(ctx context.Context, raw []byte) (identify.Result, error) {
	ctx, span := observe.StartSpan(ctx, "identify")
	defer span.End()
	start := time.Now()

	wav, err := a.transcode(ctx, raw)
	if err != nil {
		return identify.Result{}, err
	}

	extractStart := time.Now()
	probe, err := a.extractor.Extract(ctx, wav)
	a.metrics.ExtractDuration.Record(ctx, time.Since(extractStart).Seconds())
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.extractor.ModelID(), "extractor")
		return identify.Result{}, fmt.Errorf("%w: %v", voiceid.ErrExtraction, err)
	}
	a.metrics.RecordProviderRequest(ctx, a.extractor.ModelID(), "extractor", "ok")

	a.mu.RLock()
	matcher := a.matcher
	a.mu.RUnlock()

	result, err := matcher.Identify(ctx, probe)
	a.metrics.IdentifyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return identify.Result{}, err
	}

	outcome := "match"
	if result.Prediction == identify.Unknown {
		outcome = "unknown"
	}
	a.metrics.RecordIdentification(ctx, outcome)
	return result, nil
}

// ListProfiles returns all enrolled profiles sorted by identity.
func (a *App) ListProfiles(ctx context.Context) ([]voiceid.Profile, error) {
	return a.registry.List(ctx)
}

// DeleteProfile removes identity's stored profile and discards any
// in-progress round.
func (a *App) DeleteProfile(ctx context.Context, identity string) error {
	key, err := voiceid.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	if err := a.registry.Delete(ctx, key); err != nil {
		return err
	}
	_ = a.accumulator.Reset(key)
	a.metrics.EnrolledIdentities.Add(ctx, -1)
	return nil
}

// Suggest returns an enrolled identity resembling the requested one, for
// "did you mean" hints. Empty when nothing is close enough.
func (a *App) Suggest(ctx context.Context, identity string) string {
	profiles, err := a.registry.List(ctx)
	if err != nil {
		return ""
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Identity
	}
	return suggestIdentity(identity, names)
}

// ApplyConfigDiff applies hot-reloadable config changes. Threshold and
// probe normalization swaps take effect on the next identification.
func (a *App) ApplyConfigDiff(d config.ConfigDiff) {
	if !d.ThresholdChanged && !d.NormalizeProbeChanged {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	threshold := a.matcher.Threshold()
	if d.ThresholdChanged {
		threshold = d.NewThreshold
	}
	if d.NormalizeProbeChanged {
		a.normalizeProbe = d.NewNormalizeProbe
	}
	a.matcher = identify.NewMatcher(a.registry,
		identify.WithThreshold(threshold),
		identify.WithNormalizeProbe(a.normalizeProbe),
	)
	a.logger.Info("matcher configuration reloaded",
		"threshold", threshold,
		"normalize_probe", a.normalizeProbe)
}

// Threshold returns the similarity threshold currently in effect.
func (a *App) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matcher.Threshold()
}

// Close releases the registry backend.
func (a *App) Close() error {
	return a.registry.Close()
}

// transcode converts raw audio to the canonical format, recording latency
// and mapping failures to the transcode error class.
func (a *App) transcode(ctx context.Context, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty audio upload", voiceid.ErrValidation)
	}
	start := time.Now()
	wav, err := a.transcoder.Transcode(ctx, raw, audio.Canonical)
	a.metrics.TranscodeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", voiceid.ErrTranscode, err)
	}
	return wav, nil
}

// profileExists reports whether identity already has a stored profile.
// Errors count as absent; the gauge this feeds is best-effort.
func (a *App) profileExists(ctx context.Context, identity string) bool {
	key, err := voiceid.NormalizeIdentity(identity)
	if err != nil {
		return false
	}
	_, err = a.registry.Get(ctx, key)
	return err == nil
}
