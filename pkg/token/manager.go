package token

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/openidx/authcore/pkg/claims"
	"github.com/openidx/authcore/pkg/directory"
	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/logging"
)

// Default token lifetimes, matching the upstream identity platform
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
)

// ManagerConfig carries the lifecycle tunables
type ManagerConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Manager drives the token lifecycle: credential login, refresh rotation,
// and logout. It composes identity claims at issuance time, so every new
// access token reflects the subject's current roles and permissions.
type Manager struct {
	composer *claims.Composer
	signer   *Signer
	store    *Store
	users    directory.UserDirectory
	verifier directory.CredentialVerifier

	accessTTL  time.Duration
	refreshTTL time.Duration

	logger zerolog.Logger
}

// NewManager creates a lifecycle manager. Zero TTLs fall back to defaults.
func NewManager(
	composer *claims.Composer,
	signer *Signer,
	store *Store,
	users directory.UserDirectory,
	verifier directory.CredentialVerifier,
	cfg ManagerConfig,
) *Manager {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &Manager{
		composer:   composer,
		signer:     signer,
		store:      store,
		users:      users,
		verifier:   verifier,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		logger:     logging.GetLogger("token-manager"),
	}
}

// Login authenticates an identifier/secret pair and issues a fresh token
// pair. An unknown identifier and a wrong secret produce the same
// INVALID_CREDENTIALS rejection, so the endpoint cannot be used to
// enumerate accounts.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (Pair, error) {
	user, err := m.users.FindUserByEmail(ctx, identifier)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return Pair{}, apperrors.NewInvalidCredentials()
		}
		return Pair{}, apperrors.NewUnavailable(err, "user directory")
	}

	if !m.verifier.Verify(user.PasswordHash, secret) {
		return Pair{}, apperrors.NewInvalidCredentials()
	}

	if !user.Active() {
		return Pair{}, apperrors.NewSubjectNotActive(string(user.Status))
	}

	pair, err := m.issuePair(ctx, user.ID)
	if err != nil {
		return Pair{}, err
	}

	m.logger.Info().Str("subject_id", user.ID).Msg("login succeeded")
	return pair, nil
}

// Refresh redeems a refresh token for a brand-new pair. The presented token
// must both resolve to a subject and still be that subject's current token;
// a value rotated out by a later refresh is rejected even if its signature
// and lifetime are still valid. Concurrent refreshes race last-writer-wins:
// each caller gets a valid pair, and the last Save decides which refresh
// token survives.
func (m *Manager) Refresh(ctx context.Context, presented string) (Pair, error) {
	if _, err := m.signer.VerifyKind(presented, KindRefresh); err != nil {
		return Pair{}, err
	}

	subjectID, ok, err := m.store.FindSubjectByToken(ctx, presented)
	if err != nil {
		return Pair{}, err
	}
	if !ok {
		return Pair{}, apperrors.NewInvalidRefreshToken()
	}

	current, ok, err := m.store.FindTokenBySubject(ctx, subjectID)
	if err != nil {
		return Pair{}, err
	}
	if !ok || current != presented {
		return Pair{}, apperrors.NewInvalidRefreshToken()
	}

	user, err := m.users.FindUserByID(ctx, subjectID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			// a stored token for a vanished subject is an internal
			// consistency fault, not a client error
			return Pair{}, apperrors.Wrap(err, apperrors.ErrCodeSubjectNotFound,
				"refresh token subject no longer exists")
		}
		return Pair{}, apperrors.NewUnavailable(err, "user directory")
	}
	if !user.Active() {
		return Pair{}, apperrors.NewSubjectNotActive(string(user.Status))
	}

	pair, err := m.issuePair(ctx, subjectID)
	if err != nil {
		return Pair{}, err
	}

	m.logger.Info().Str("subject_id", subjectID).Msg("token pair rotated")
	return pair, nil
}

// Logout revokes the subject's refresh token. Logging out a subject with no
// stored token succeeds, so repeated logouts are harmless.
func (m *Manager) Logout(ctx context.Context, subjectID string) error {
	if err := m.store.DeleteBySubject(ctx, subjectID); err != nil {
		return err
	}
	m.logger.Info().Str("subject_id", subjectID).Msg("refresh token revoked")
	return nil
}

// Context returns the subject's current identity context, composed live from
// the directories rather than decoded from a token.
func (m *Manager) Context(ctx context.Context, subjectID string) (claims.TokenClaims, error) {
	return m.composer.Compose(ctx, subjectID)
}

// issuePair composes claims, signs both tokens, and only then stores the
// refresh token. Signing failures therefore never leave a half-written
// record behind.
func (m *Manager) issuePair(ctx context.Context, subjectID string) (Pair, error) {
	tc, err := m.composer.Compose(ctx, subjectID)
	if err != nil {
		return Pair{}, err
	}

	access, err := m.signer.Issue(tc, KindAccess, m.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.signer.Issue(tc, KindRefresh, m.refreshTTL)
	if err != nil {
		return Pair{}, err
	}

	if err := m.store.Save(ctx, subjectID, refresh.Value, m.refreshTTL); err != nil {
		return Pair{}, err
	}

	return Pair{Access: access, Refresh: refresh}, nil
}
