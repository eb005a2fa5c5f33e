// Package mock provides an in-memory test double for registry.Registry.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/voxident/voxident/pkg/registry"
	"github.com/voxident/voxident/pkg/voiceid"
)

// Compile-time interface check.
var _ registry.Registry = (*Registry)(nil)

// Registry is an in-memory registry.Registry. The zero value is not
// usable; create instances with New.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]voiceid.Profile

	// PutErr, if non-nil, is returned from every Put call.
	PutErr error
	// GetErr, if non-nil, is returned from every Get call.
	GetErr error
	// ListErr, if non-nil, is returned from every List call.
	ListErr error
	// DeleteErr, if non-nil, is returned from every Delete call.
	DeleteErr error

	// PutCalls counts Put invocations, including failed ones.
	PutCalls int
}

// New creates an empty in-memory registry.
func New() *Registry {
	return &Registry{profiles: make(map[string]voiceid.Profile)}
}

// Put stores the profile under its identity.
func (r *Registry) Put(_ context.Context, profile voiceid.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PutCalls++
	if r.PutErr != nil {
		return r.PutErr
	}
	r.profiles[profile.Identity] = cloneProfile(profile)
	return nil
}

// Get returns the profile stored under key.
func (r *Registry) Get(_ context.Context, key string) (voiceid.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetErr != nil {
		return voiceid.Profile{}, r.GetErr
	}
	p, ok := r.profiles[key]
	if !ok {
		return voiceid.Profile{}, fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	return cloneProfile(p), nil
}

// List returns all profiles sorted by identity.
func (r *Registry) List(_ context.Context) ([]voiceid.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	out := make([]voiceid.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

// Delete removes the profile stored under key.
func (r *Registry) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	if _, ok := r.profiles[key]; !ok {
		return fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	delete(r.profiles, key)
	return nil
}

// Close is a no-op.
func (r *Registry) Close() error { return nil }

// Len reports the number of stored profiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles)
}

func cloneProfile(p voiceid.Profile) voiceid.Profile {
	p.Fingerprint = p.Fingerprint.Clone()
	return p
}
