package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] either
// failed or was skipped by its circuit breaker.
var ErrAllFailed = errors.New("all fallback providers failed")

// entry pairs a provider with its circuit breaker.
type entry[T any] struct {
	name     string
	provider T
	breaker  *CircuitBreaker
}

// FallbackGroup tries a sequence of providers in order, each guarded by
// its own [CircuitBreaker]. A tripped breaker skips straight to the next
// provider without burning a call on a known-bad backend.
type FallbackGroup[T any] struct {
	entries []entry[T]
}

// NewFallbackGroup creates an empty group. Providers are tried in the
// order they are added.
func NewFallbackGroup[T any]() *FallbackGroup[T] {
	return &FallbackGroup[T]{}
}

// Add appends a provider with a breaker configured from cfg. The config's
// Name is overridden with name so log lines identify the entry.
func (g *FallbackGroup[T]) Add(name string, provider T, cfg Config) {
	cfg.Name = name
	g.entries = append(g.entries, entry[T]{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	})
}

// Len reports the number of providers in the group.
func (g *FallbackGroup[T]) Len() int {
	return len(g.entries)
}

// Names returns the provider names in try order.
func (g *FallbackGroup[T]) Names() []string {
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.name
	}
	return names
}

// Primary returns the first provider in the group. The boolean is false
// when the group is empty.
func (g *FallbackGroup[T]) Primary() (T, bool) {
	if len(g.entries) == 0 {
		var zero T
		return zero, false
	}
	return g.entries[0].provider, true
}

// Execute runs fn against each provider in order until one succeeds.
// Context cancellation aborts the chain immediately.
func (g *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	var lastErr error
	for _, e := range g.entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.breaker.Execute(func() error {
			return fn(e.provider)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", e.name,
				"error", err)
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = ErrCircuitOpen
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult is the value-returning form of
// [FallbackGroup.Execute]. It is a package-level function because methods
// cannot introduce type parameters.
func ExecuteWithResult[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := g.Execute(ctx, func(p T) error {
		var fnErr error
		result, fnErr = fn(p)
		return fnErr
	})
	return result, err
}
