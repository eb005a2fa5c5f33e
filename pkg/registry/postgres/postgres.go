// Package postgres provides a PostgreSQL-backed [registry.Registry] using a
// pgvector column for fingerprints. Whole-record atomicity comes from the
// single-row upsert: metadata and fingerprint land in one statement, so a
// concurrent reader sees either the previous record or the new one.
//
// The pgvector extension must be available in the target database; [New]
// installs it via CREATE EXTENSION IF NOT EXISTS and creates the speakers
// table on first use.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxident/voxident/pkg/registry"
	"github.com/voxident/voxident/pkg/voiceid"
)

// Compile-time interface check.
var _ registry.Registry = (*Store)(nil)

// Store is a PostgreSQL-backed profile registry. All operations are safe
// for concurrent use; same-identity writers serialize on the row lock.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn, registers
// pgvector types on every connection, and ensures the schema exists.
//
// dimensions must match the output dimension of the configured embedding
// extractor. Changing it after the first migration requires a manual schema
// change.
func New(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("postgres registry: dimensions must be positive, got %d", dimensions)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres registry: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres registry: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres registry: ping: %w", err)
	}
	if err := migrate(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres registry: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// migrate installs pgvector and creates the speakers table.
func migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS speakers (
    identity     TEXT         PRIMARY KEY,
    enrolled_at  TIMESTAMPTZ  NOT NULL,
    clips_count  INT          NOT NULL,
    fingerprint  vector(%d)   NOT NULL
)`, dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Put implements [registry.Registry] via a single upsert statement.
func (s *Store) Put(ctx context.Context, profile voiceid.Profile) error {
	const q = `
		INSERT INTO speakers (identity, enrolled_at, clips_count, fingerprint)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
		    enrolled_at = EXCLUDED.enrolled_at,
		    clips_count = EXCLUDED.clips_count,
		    fingerprint = EXCLUDED.fingerprint`

	vec := pgvector.NewVector(profile.Fingerprint)
	_, err := s.pool.Exec(ctx, q, profile.Identity, profile.EnrolledAt, profile.ClipsCount, vec)
	if err != nil {
		return fmt.Errorf("%w: put %q: %w", voiceid.ErrStorage, profile.Identity, err)
	}
	return nil
}

// Get implements [registry.Registry].
func (s *Store) Get(ctx context.Context, key string) (voiceid.Profile, error) {
	const q = `
		SELECT identity, enrolled_at, clips_count, fingerprint
		FROM   speakers
		WHERE  identity = $1`

	var (
		p   voiceid.Profile
		vec pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, q, key).Scan(&p.Identity, &p.EnrolledAt, &p.ClipsCount, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return voiceid.Profile{}, fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	if err != nil {
		return voiceid.Profile{}, fmt.Errorf("%w: get %q: %w", voiceid.ErrStorage, key, err)
	}
	p.Fingerprint = vec.Slice()
	return p, nil
}

// List implements [registry.Registry], ordered by identity key.
func (s *Store) List(ctx context.Context) ([]voiceid.Profile, error) {
	const q = `
		SELECT identity, enrolled_at, clips_count, fingerprint
		FROM   speakers
		ORDER  BY identity`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", voiceid.ErrStorage, err)
	}

	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (voiceid.Profile, error) {
		var (
			p   voiceid.Profile
			vec pgvector.Vector
		)
		if err := row.Scan(&p.Identity, &p.EnrolledAt, &p.ClipsCount, &vec); err != nil {
			return voiceid.Profile{}, err
		}
		p.Fingerprint = vec.Slice()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan rows: %w", voiceid.ErrStorage, err)
	}
	if profiles == nil {
		profiles = []voiceid.Profile{}
	}
	return profiles, nil
}

// Delete implements [registry.Registry].
func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM speakers WHERE identity = $1", key)
	if err != nil {
		return fmt.Errorf("%w: delete %q: %w", voiceid.ErrStorage, key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", voiceid.ErrNotFound, key)
	}
	return nil
}

// Close implements [registry.Registry] by releasing the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
