package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxident/voxident/pkg/provider/extractor"
	"github.com/voxident/voxident/pkg/provider/transcoder"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractor  map[string]func(ProviderEntry) (extractor.Provider, error)
	transcoder map[string]func(ProviderEntry) (transcoder.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		extractor:  make(map[string]func(ProviderEntry) (extractor.Provider, error)),
		transcoder: make(map[string]func(ProviderEntry) (transcoder.Provider, error)),
	}
}

// RegisterExtractor registers an embedding extractor factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterExtractor(name string, factory func(ProviderEntry) (extractor.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractor[name] = factory
}

// RegisterTranscoder registers a transcoder factory under name.
func (r *Registry) RegisterTranscoder(name string, factory func(ProviderEntry) (transcoder.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcoder[name] = factory
}

// CreateExtractor instantiates an extractor using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateExtractor(entry ProviderEntry) (extractor.Provider, error) {
	r.mu.RLock()
	factory, ok := r.extractor[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: extractor/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTranscoder instantiates a transcoder using the factory registered under entry.Name.
func (r *Registry) CreateTranscoder(entry ProviderEntry) (transcoder.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcoder[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcoder/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
