package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/openidx/authcore/pkg/claims"
	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/keys"
)

// wireClaims is the JWT payload layout. Access tokens carry the full identity
// context; refresh tokens carry only the subject and kind, since a refresh
// token is redeemed, never inspected for authorization.
type wireClaims struct {
	jwt.RegisteredClaims
	TokenType        string   `json:"token_type"`
	TenantID         string   `json:"tid,omitempty"`
	TenantName       string   `json:"tenant_name,omitempty"`
	OrganizationID   string   `json:"oid,omitempty"`
	OrganizationName string   `json:"org_name,omitempty"`
	Email            string   `json:"email,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
}

// VerifiedToken is the outcome of a successful signature and lifetime check.
// Claims carries the identity context for access tokens and is zero-valued
// apart from SubjectID for refresh tokens.
type VerifiedToken struct {
	Kind      Kind
	SubjectID string
	Claims    claims.TokenClaims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer issues and verifies RS256-signed tokens against a rotating key
// manager. The active key signs; the active and retired keys verify, so
// tokens issued just before a rotation stay valid until they expire.
type Signer struct {
	keys   *keys.Manager
	issuer string
}

// NewSigner creates a Signer backed by the given key manager
func NewSigner(km *keys.Manager, issuer string) *Signer {
	return &Signer{
		keys:   km,
		issuer: issuer,
	}
}

// Issue signs a token of the given kind for the identity in tc. Each issued
// token gets a fresh jti, so two tokens for the same subject are never
// byte-identical even when issued within the same second.
func (s *Signer) Issue(tc claims.TokenClaims, kind Kind, ttl time.Duration) (Token, error) {
	key, err := s.keys.Current()
	if err != nil {
		return Token{}, apperrors.Wrap(err, apperrors.ErrCodeSigningKeyUnavailable, "no signing key available")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tc.SubjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		TokenType: string(kind),
	}
	if kind == KindAccess {
		wc.TenantID = tc.TenantID
		wc.TenantName = tc.TenantName
		wc.OrganizationID = tc.OrganizationID
		wc.OrganizationName = tc.OrganizationName
		wc.Email = tc.Email
		wc.Roles = tc.Roles
		wc.Permissions = tc.Permissions
	}

	jt := jwt.NewWithClaims(jwt.SigningMethodRS256, wc)
	jt.Header["kid"] = key.KID

	signed, err := jt.SignedString(key.Private())
	if err != nil {
		return Token{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sign token")
	}

	return Token{
		Kind:      kind,
		SubjectID: tc.SubjectID,
		Value:     signed,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature, lifetime, and shape of a token. The failure
// code separates the three rejection classes: TOKEN_MALFORMED for tokens
// that do not parse, TOKEN_EXPIRED for valid-but-stale tokens, and
// SIGNATURE_INVALID for everything signed by a key this service does not
// hold.
func (s *Signer) Verify(value string) (VerifiedToken, error) {
	var wc wireClaims
	_, err := jwt.ParseWithClaims(value, &wc, s.verificationKey,
		jwt.WithValidMethods([]string{keys.SigningAlgorithm}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return VerifiedToken{}, classifyParseError(err)
	}

	vt := VerifiedToken{
		Kind:      Kind(wc.TokenType),
		SubjectID: wc.Subject,
		Claims: claims.TokenClaims{
			SubjectID:        wc.Subject,
			TenantID:         wc.TenantID,
			TenantName:       wc.TenantName,
			OrganizationID:   wc.OrganizationID,
			OrganizationName: wc.OrganizationName,
			Email:            wc.Email,
			Roles:            wc.Roles,
			Permissions:      wc.Permissions,
		},
	}
	if wc.IssuedAt != nil {
		vt.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		vt.ExpiresAt = wc.ExpiresAt.Time
	}
	return vt, nil
}

// VerifyKind verifies a token and additionally rejects it when it is not of
// the expected kind, so an access token can never be redeemed as a refresh
// token or vice versa.
func (s *Signer) VerifyKind(value string, kind Kind) (VerifiedToken, error) {
	vt, err := s.Verify(value)
	if err != nil {
		return VerifiedToken{}, err
	}
	if vt.Kind != kind {
		return VerifiedToken{}, apperrors.New(apperrors.ErrCodeWrongTokenKind,
			"token is not a "+string(kind)+" token")
	}
	return vt, nil
}

// PublicKeySet exposes the verification keys as a JWKS document
func (s *Signer) PublicKeySet() (jwk.Set, error) {
	return s.keys.PublicKeySet()
}

// verificationKey is the jwt keyfunc: it resolves the kid header against the
// active and retired keys.
func (s *Signer) verificationKey(t *jwt.Token) (interface{}, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token has no kid header")
	}
	pub, ok := s.keys.VerificationKey(kid)
	if !ok {
		return nil, errors.New("unknown signing key: " + kid)
	}
	return pub, nil
}

// classifyParseError maps golang-jwt parse failures onto the error taxonomy
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.Wrap(err, apperrors.ErrCodeTokenMalformed, "token is malformed")
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return apperrors.Wrap(err, apperrors.ErrCodeTokenExpired, "token is expired")
	default:
		// signature mismatch, unknown kid, rejected algorithm
		return apperrors.Wrap(err, apperrors.ErrCodeSignatureInvalid, "token signature is invalid")
	}
}
