package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/resolver"
	"github.com/openidx/authcore/pkg/token"
)

// ContextKey is the key type for values stored in the request context
type ContextKey string

// ClaimsContextKey is where RequireAccessToken stores the verified token
const ClaimsContextKey ContextKey = "verified_token"

// VerifiedFromContext returns the verified access token placed in the
// context by RequireAccessToken.
func VerifiedFromContext(ctx context.Context) (token.VerifiedToken, bool) {
	vt, ok := ctx.Value(ClaimsContextKey).(token.VerifiedToken)
	return vt, ok
}

// RequireAccessToken verifies the Bearer token on each request and stores
// the verified claims in the request context. Refresh tokens are rejected;
// they are redeemable secrets, not credentials for resource access.
//
// Router does not mount this middleware: the auth endpoints are themselves
// unauthenticated, and /auth/me trusts the gateway identity header. It is
// exported for gateways and resource services that embed this module to
// guard their own routes.
func RequireAccessToken(signer *token.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeMiddlewareError(w, apperrors.New(apperrors.ErrCodeInvalidCredentials, "missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != token.TokenType {
				writeMiddlewareError(w, apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid authorization header format"))
				return
			}

			vt, err := signer.VerifyKind(parts[1], token.KindAccess)
			if err != nil {
				writeMiddlewareError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, vt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission resolves each request against the permission-endpoint
// table and checks the verified token carries the resolved key. Unmapped
// endpoints pass through; whether they should instead be forbidden is the
// deployment's policy, decided by route layout rather than here. Must be
// mounted inside RequireAccessToken, in an embedding service's router
// rather than this module's own.
func RequirePermission(res *resolver.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok, err := res.Resolve(r.Context(), r.Method, r.URL.Path)
			if err != nil {
				writeMiddlewareError(w, err)
				return
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			vt, found := VerifiedFromContext(r.Context())
			if !found {
				writeMiddlewareError(w, apperrors.New(apperrors.ErrCodeInvalidCredentials, "no verified token in request"))
				return
			}
			for _, granted := range vt.Claims.Permissions {
				if granted == key {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeMiddlewareError(w, apperrors.New(apperrors.ErrCodeForbidden, "missing permission "+key))
		})
	}
}

func writeMiddlewareError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusOf(err))

	message := "unauthorized"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	_, _ = w.Write([]byte(`{"error":"` + string(apperrors.CodeOf(err)) + `","message":"` + message + `"}`))
}
