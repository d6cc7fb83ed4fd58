// Package token implements the signed-token core: issuing and verifying
// access/refresh tokens, the dual-store refresh token persistence, and the
// login/refresh/logout lifecycle.
package token

import "time"

// Kind distinguishes access tokens from refresh tokens. The two share a
// shape but have different lifetimes and validation rules: only a refresh
// token may be redeemed for a new pair, and only an access token authorizes
// resource access.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// TokenType is the RFC 6750 token type label returned with every pair
const TokenType = "Bearer"

// Token is a signed artifact
type Token struct {
	Kind      Kind
	SubjectID string
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the token's validity window
func (t Token) TTL() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Pair is the access+refresh pair returned by login and refresh
type Pair struct {
	Access  Token
	Refresh Token
}
