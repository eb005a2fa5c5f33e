// Package enroll implements multi-clip speaker enrollment.
//
// An enrollment round collects a fixed number of voice clips per identity.
// Clips are staged in numbered slots; submitting the final slot triggers a
// commit that extracts an embedding from every staged clip, averages the
// successful ones into a fingerprint, and stores the resulting profile.
package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxident/voxident/pkg/provider/extractor"
	"github.com/voxident/voxident/pkg/registry"
	"github.com/voxident/voxident/pkg/voiceid"
)

// DefaultRequiredClips is the number of clips an enrollment round needs
// before a profile is committed.
const DefaultRequiredClips = 4

// ClipError reports a staged clip that failed embedding extraction during
// commit. Failed clips are skipped, not fatal, as long as at least one
// clip yields an embedding.
type ClipError struct {
	// Slot is the 1-based slot number of the failed clip.
	Slot int
	// Err is the extraction error.
	Err error
}

// Progress describes the state of an identity's enrollment round after a
// clip submission.
type Progress struct {
	// Identity is the normalized identity key.
	Identity string
	// ClipsReceived is the number of distinct slots currently staged.
	// Zero after a successful commit.
	ClipsReceived int
	// RequiredClips is the round's slot count.
	RequiredClips int
	// Complete is true when the round committed and the profile is stored.
	Complete bool
	// ClipErrors lists clips skipped during commit. Populated only on the
	// submission that triggered a commit attempt.
	ClipErrors []ClipError
}

// session holds the staged clips of one in-progress enrollment round.
// done marks a committed session so a submission racing the commit starts
// a fresh round instead of re-committing.
type session struct {
	mu    sync.Mutex
	slots [][]byte
	done  bool
}

func (s *session) filled() int {
	n := 0
	for _, c := range s.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// Accumulator collects clips per identity and commits completed rounds to
// the registry. Safe for concurrent use; submissions for the same identity
// are serialized.
type Accumulator struct {
	registry  registry.Registry
	extractor extractor.Provider
	required  int
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithRequiredClips overrides the number of clips per round. Values below
// one are ignored.
func WithRequiredClips(n int) Option {
	return func(a *Accumulator) {
		if n >= 1 {
			a.required = n
		}
	}
}

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAccumulator creates an accumulator writing committed profiles to reg
// using ext for embedding extraction.
func NewAccumulator(reg registry.Registry, ext extractor.Provider, opts ...Option) *Accumulator {
	a := &Accumulator{
		registry:  reg,
		extractor: ext,
		required:  DefaultRequiredClips,
		logger:    slog.Default(),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequiredClips returns the configured clips-per-round count.
func (a *Accumulator) RequiredClips() int {
	return a.required
}

// SubmitClip stages a clip in the given 1-based slot of identity's current
// round, starting a new round if none is in progress. Re-submitting an
// occupied slot replaces its clip. When the submission fills the final
// slot the round is committed.
//
// The clip must already be in the canonical audio format. On commit
// failure the staged clips are preserved so the caller can retry; a
// successful commit discards the session, so a later submission for the
// same identity starts a fresh round.
func (a *Accumulator) SubmitClip(ctx context.Context, identity string, slot int, wav []byte) (Progress, error) {
	key, err := voiceid.NormalizeIdentity(identity)
	if err != nil {
		return Progress{}, err
	}
	if slot < 1 || slot > a.required {
		return Progress{}, fmt.Errorf("%w: slot %d out of range 1..%d",
			voiceid.ErrValidation, slot, a.required)
	}
	if len(wav) == 0 {
		return Progress{}, fmt.Errorf("%w: empty clip", voiceid.ErrValidation)
	}

	var sess *session
	for {
		sess = a.session(key)
		sess.mu.Lock()
		if !sess.done {
			break
		}
		// Lost a race with a commit on a stale session; grab a new one.
		sess.mu.Unlock()
	}
	defer sess.mu.Unlock()

	clip := make([]byte, len(wav))
	copy(clip, wav)
	sess.slots[slot-1] = clip

	filled := sess.filled()
	prog := Progress{
		Identity:      key,
		ClipsReceived: filled,
		RequiredClips: a.required,
	}
	if filled < a.required {
		return prog, nil
	}

	clipErrs, err := a.commit(ctx, key, sess)
	prog.ClipErrors = clipErrs
	if err != nil {
		return prog, err
	}

	sess.done = true
	a.dropSession(key)
	prog.ClipsReceived = 0
	prog.Complete = true
	return prog, nil
}

// Status reports the current progress of identity's round without
// modifying it.
func (a *Accumulator) Status(identity string) (Progress, error) {
	key, err := voiceid.NormalizeIdentity(identity)
	if err != nil {
		return Progress{}, err
	}

	prog := Progress{Identity: key, RequiredClips: a.required}
	a.mu.Lock()
	sess, ok := a.sessions[key]
	a.mu.Unlock()
	if !ok {
		return prog, nil
	}

	sess.mu.Lock()
	prog.ClipsReceived = sess.filled()
	sess.mu.Unlock()
	return prog, nil
}

// Reset discards identity's in-progress round, if any. The stored profile,
// if one exists, is untouched.
func (a *Accumulator) Reset(identity string) error {
	key, err := voiceid.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	a.dropSession(key)
	return nil
}

// commit extracts embeddings from every staged clip in parallel, averages
// the successful ones and stores the profile. Called with sess.mu held.
func (a *Accumulator) commit(ctx context.Context, key string, sess *session) ([]ClipError, error) {
	vectors := make([][]float32, a.required)
	errs := make([]error, a.required)

	g, gctx := errgroup.WithContext(ctx)
	for i, clip := range sess.slots {
		g.Go(func() error {
			vec, err := a.extractor.Extract(gctx, clip)
			if err != nil {
				errs[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	g.Wait()

	var clipErrs []ClipError
	var used [][]float32
	for i := range vectors {
		if errs[i] != nil {
			clipErrs = append(clipErrs, ClipError{Slot: i + 1, Err: errs[i]})
			continue
		}
		used = append(used, vectors[i])
	}

	if len(used) == 0 {
		return clipErrs, fmt.Errorf("%w: no clip yielded an embedding for %q",
			voiceid.ErrInsufficientData, key)
	}

	fp, err := voiceid.Mean(used)
	if err != nil {
		return clipErrs, fmt.Errorf("averaging embeddings for %q: %w", key, err)
	}

	profile := voiceid.Profile{
		Identity:    key,
		EnrolledAt:  time.Now().UTC(),
		ClipsCount:  len(used),
		Fingerprint: fp,
	}
	if err := a.registry.Put(ctx, profile); err != nil {
		return clipErrs, fmt.Errorf("storing profile for %q: %w", key, err)
	}

	a.logger.Info("enrollment committed",
		"identity", key,
		"clips_used", len(used),
		"clips_failed", len(clipErrs))
	return clipErrs, nil
}

// session returns identity's session, creating one if needed.
func (a *Accumulator) session(key string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[key]
	if !ok {
		sess = &session{slots: make([][]byte, a.required)}
		a.sessions[key] = sess
	}
	return sess
}

func (a *Accumulator) dropSession(key string) {
	a.mu.Lock()
	delete(a.sessions, key)
	a.mu.Unlock()
}
