// Package file provides a filesystem-backed [registry.Registry]. Each
// identity is stored as one JSON record; durability comes from writing to a
// temporary file in the same directory and atomically renaming it into
// place, so a crash mid-write never leaves a torn record visible.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/voxident/voxident/pkg/registry"
	"github.com/voxident/voxident/pkg/voiceid"
)

// Compile-time interface check.
var _ registry.Registry = (*Store)(nil)

const (
	recordSuffix = ".json"
	tmpPrefix    = ".tmp-"
)

// Store persists one JSON record per identity under a data directory.
// Safe for concurrent use; writers to the same identity serialize on a
// per-key mutex while writers to different identities proceed in parallel.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the data directory if needed and returns a ready Store.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file registry: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file registry: create dir %q: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// keyLock returns the mutex dedicated to key, creating it on first use.
func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// path returns the record file for key. Keys are percent-escaped so any
// normalized identity maps to a safe flat filename.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+recordSuffix)
}

// Put implements [registry.Registry]. The record is serialized to a
// temporary file in the data directory, synced, and renamed over the final
// path. Readers either see the previous complete record or the new one.
func (s *Store) Put(ctx context.Context, profile voiceid.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: marshal %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}

	lock := s.keyLock(profile.Identity)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}

	if err := os.Rename(tmpName, s.path(profile.Identity)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: swap %q into place: %w", voiceid.ErrStorage, profile.Identity, err)
	}
	return nil
}

// Get implements [registry.Registry].
func (s *Store) Get(ctx context.Context, key string) (voiceid.Profile, error) {
	if err := ctx.Err(); err != nil {
		return voiceid.Profile{}, err
	}

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return voiceid.Profile{}, fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	if err != nil {
		return voiceid.Profile{}, fmt.Errorf("%w: read %q: %w", voiceid.ErrStorage, key, err)
	}

	var profile voiceid.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return voiceid.Profile{}, fmt.Errorf("%w: decode %q: %w", voiceid.ErrStorage, key, err)
	}
	return profile, nil
}

// List implements [registry.Registry]. Records are returned sorted by
// identity key; leftover temporary files from interrupted writes are skipped.
func (s *Store) List(ctx context.Context) ([]voiceid.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir: %w", voiceid.ErrStorage, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, recordSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	profiles := make([]voiceid.Profile, 0, len(keys))
	for _, key := range keys {
		p, err := s.Get(ctx, key)
		if err != nil {
			// A record deleted between ReadDir and Get is not an error.
			if errors.Is(err, voiceid.ErrNotFound) {
				continue
			}
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Delete implements [registry.Registry]. The single rename-free unlink is
// atomic on POSIX filesystems.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: delete %q: %w", voiceid.ErrStorage, key, err)
	}
	return nil
}

// Close implements [registry.Registry]. The file store holds no open
// resources between operations.
func (s *Store) Close() error { return nil }
