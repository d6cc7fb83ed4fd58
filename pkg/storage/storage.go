// Package storage defines the durable persistence ports of the auth core.
// The only state this core owns is one refresh-token record per subject
// (replace-on-write) and the permission-endpoint table it reads.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports an absent record
var ErrNotFound = errors.New("storage: record not found")

// RefreshTokenRecord is the durable record keyed by subject id. At most one
// live refresh token exists per subject: an upsert for the same subject
// replaces the token value and bumps UpdatedAt, never appends.
type RefreshTokenRecord struct {
	SubjectID string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// RefreshTokenStore is the authoritative backend behind the cache projection.
// It is keyed by subject; a token-value lookup is served only by the cache,
// which is why DeleteByToken exists here but no FindByToken does.
type RefreshTokenStore interface {
	// Upsert replaces the record for subjectID (replace semantics, not
	// append).
	Upsert(ctx context.Context, subjectID, token string, expiresAt time.Time) error

	// FindBySubject returns the live record for subjectID, or ErrNotFound
	// when absent or expired.
	FindBySubject(ctx context.Context, subjectID string) (RefreshTokenRecord, error)

	// DeleteBySubject removes the record. Deleting an absent record is not
	// an error.
	DeleteBySubject(ctx context.Context, subjectID string) error

	// DeleteByToken removes the record holding the given token value.
	DeleteByToken(ctx context.Context, token string) error
}
