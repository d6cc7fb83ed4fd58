// Package pg implements the durable stores and directory lookups on
// PostgreSQL via pgx.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openidx/authcore/pkg/storage"
)

// Store wraps a pgx pool and implements storage.RefreshTokenStore plus the
// read-only directory ports.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Upsert(ctx context.Context, subjectID, token string, expiresAt time.Time) error {
	const q = `
		INSERT INTO refresh_tokens (subject_id, token, created_at, updated_at, expires_at)
		VALUES ($1, $2, now(), now(), $3)
		ON CONFLICT (subject_id) DO UPDATE
		   SET token = EXCLUDED.token,
		       updated_at = now(),
		       expires_at = EXCLUDED.expires_at`
	_, err := s.pool.Exec(ctx, q, subjectID, token, expiresAt)
	return err
}

func (s *Store) FindBySubject(ctx context.Context, subjectID string) (storage.RefreshTokenRecord, error) {
	const q = `
		SELECT subject_id, token, created_at, updated_at, expires_at
		  FROM refresh_tokens
		 WHERE subject_id = $1
		   AND expires_at > now()`
	var rec storage.RefreshTokenRecord
	err := s.pool.QueryRow(ctx, q, subjectID).Scan(
		&rec.SubjectID, &rec.Token, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.RefreshTokenRecord{}, storage.ErrNotFound
		}
		return storage.RefreshTokenRecord{}, err
	}
	return rec, nil
}

func (s *Store) DeleteBySubject(ctx context.Context, subjectID string) error {
	const q = `DELETE FROM refresh_tokens WHERE subject_id = $1`
	_, err := s.pool.Exec(ctx, q, subjectID)
	return err
}

func (s *Store) DeleteByToken(ctx context.Context, token string) error {
	const q = `DELETE FROM refresh_tokens WHERE token = $1`
	_, err := s.pool.Exec(ctx, q, token)
	return err
}
