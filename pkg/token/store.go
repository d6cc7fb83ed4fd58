package token

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/openidx/authcore/pkg/cache"
	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/logging"
	"github.com/openidx/authcore/pkg/storage"
)

// Cache key namespaces for the two projection directions
const (
	cacheKeySubjectPrefix = "refresh_token::user::"
	cacheKeyTokenPrefix   = "refresh_token::token::"
)

// Store keeps refresh tokens in a durable backend and mirrors them into a
// cache in both directions: subject -> token and token -> subject. The
// durable store is the source of truth and is always written first; cache
// failures degrade lookups but never corrupt state. The cache may be nil,
// in which case token-value lookups always miss and callers fall back to
// re-authentication.
type Store struct {
	durable storage.RefreshTokenStore
	cache   cache.Client
	logger  zerolog.Logger
}

// NewStore creates a dual refresh-token store. cacheClient may be nil.
func NewStore(durable storage.RefreshTokenStore, cacheClient cache.Client) *Store {
	return &Store{
		durable: durable,
		cache:   cacheClient,
		logger:  logging.GetLogger("token-store"),
	}
}

// Save replaces the subject's refresh token. The previous token's reverse
// cache entry is removed so a rotated-out value cannot keep resolving to the
// subject for the remainder of its TTL.
func (s *Store) Save(ctx context.Context, subjectID, tokenValue string, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)

	prev := s.cachedToken(ctx, subjectID)

	if err := s.durable.Upsert(ctx, subjectID, tokenValue, expiresAt); err != nil {
		return apperrors.NewUnavailable(err, "refresh token store")
	}

	if s.cache == nil {
		return nil
	}
	if prev != "" && prev != tokenValue {
		if err := s.cache.Delete(ctx, cacheKeyTokenPrefix+prev); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).
				Msg("failed to evict rotated refresh token from cache")
		}
	}
	if err := s.cache.Set(ctx, cacheKeySubjectPrefix+subjectID, tokenValue, ttl); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).
			Msg("failed to cache refresh token by subject")
	}
	if err := s.cache.Set(ctx, cacheKeyTokenPrefix+tokenValue, subjectID, ttl); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).
			Msg("failed to cache refresh token reverse mapping")
	}
	return nil
}

// FindTokenBySubject returns the subject's current refresh token. Cache hits
// are served directly; on a miss the durable store is consulted and the
// cache repopulated in both directions with the remaining lifetime.
func (s *Store) FindTokenBySubject(ctx context.Context, subjectID string) (string, bool, error) {
	if tok := s.cachedToken(ctx, subjectID); tok != "" {
		return tok, true, nil
	}

	rec, err := s.durable.FindBySubject(ctx, subjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewUnavailable(err, "refresh token store")
	}

	if s.cache != nil {
		if ttl := time.Until(rec.ExpiresAt); ttl > 0 {
			if err := s.cache.Set(ctx, cacheKeySubjectPrefix+subjectID, rec.Token, ttl); err == nil {
				if err := s.cache.Set(ctx, cacheKeyTokenPrefix+rec.Token, subjectID, ttl); err != nil {
					s.logger.Warn().Err(err).Str("subject_id", subjectID).
						Msg("failed to repopulate refresh token reverse mapping")
				}
			}
		}
	}
	return rec.Token, true, nil
}

// FindSubjectByToken resolves a presented refresh token to its subject. This
// direction is served by the cache alone: the durable store is not indexed
// by token value, so after a cache loss the mapping cannot be recovered and
// the subject must log in again.
func (s *Store) FindSubjectByToken(ctx context.Context, tokenValue string) (string, bool, error) {
	if s.cache == nil {
		return "", false, nil
	}
	subjectID, err := s.cache.Get(ctx, cacheKeyTokenPrefix+tokenValue)
	if cache.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewUnavailable(err, "refresh token cache")
	}
	return subjectID, true, nil
}

// DeleteBySubject removes the subject's refresh token from the durable store
// and both cache directions. Absent records are not an error, so logout is
// idempotent.
func (s *Store) DeleteBySubject(ctx context.Context, subjectID string) error {
	tok := s.cachedToken(ctx, subjectID)

	if err := s.durable.DeleteBySubject(ctx, subjectID); err != nil {
		return apperrors.NewUnavailable(err, "refresh token store")
	}

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cacheKeySubjectPrefix+subjectID); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).
			Msg("failed to evict refresh token from cache")
	}
	if tok != "" {
		if err := s.cache.Delete(ctx, cacheKeyTokenPrefix+tok); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).
				Msg("failed to evict refresh token reverse mapping")
		}
	}
	return nil
}

// DeleteByToken removes the record holding the given token value, when it is
// still current. Like DeleteBySubject this is idempotent.
func (s *Store) DeleteByToken(ctx context.Context, tokenValue string) error {
	var subjectID string
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, cacheKeyTokenPrefix+tokenValue); err == nil {
			subjectID = v
		}
	}

	if err := s.durable.DeleteByToken(ctx, tokenValue); err != nil {
		return apperrors.NewUnavailable(err, "refresh token store")
	}

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cacheKeyTokenPrefix+tokenValue); err != nil {
		s.logger.Warn().Err(err).Msg("failed to evict refresh token reverse mapping")
	}
	if subjectID != "" {
		if err := s.cache.Delete(ctx, cacheKeySubjectPrefix+subjectID); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).
				Msg("failed to evict refresh token from cache")
		}
	}
	return nil
}

// cachedToken returns the cached token for a subject, or "" on any miss or
// cache failure.
func (s *Store) cachedToken(ctx context.Context, subjectID string) string {
	if s.cache == nil {
		return ""
	}
	tok, err := s.cache.Get(ctx, cacheKeySubjectPrefix+subjectID)
	if err != nil {
		if !cache.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).
				Msg("refresh token cache read failed")
		}
		return ""
	}
	return tok
}
