// Package service exposes the token core over HTTP: login, refresh, logout,
// the identity projection, the JWKS document, and the permission-spec
// export.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	openchami_logger "github.com/openchami/chi-middleware/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/logging"
	"github.com/openidx/authcore/pkg/resolver"
	"github.com/openidx/authcore/pkg/token"
)

// HeaderUserID is the gateway-asserted identity header behind /auth/me. The
// gateway terminates token verification and forwards the subject id; this
// service trusts the header the same way the rest of the platform does.
const HeaderUserID = "X-User-Id"

// Service is the HTTP surface over the token core
type Service struct {
	manager  *token.Manager
	signer   *token.Signer
	resolver *resolver.Resolver
	metrics  *Metrics

	accessTTL  time.Duration
	refreshTTL time.Duration

	logger zerolog.Logger
}

// New creates the HTTP service
func New(manager *token.Manager, signer *token.Signer, res *resolver.Resolver, metrics *Metrics, cfg *FileConfig) *Service {
	return &Service{
		manager:    manager,
		signer:     signer,
		resolver:   res,
		metrics:    metrics,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		logger:     logging.GetLogger("service"),
	}
}

// Router builds the chi router with all routes and middleware
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(openchami_logger.OpenCHAMILogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.loginHandler)
		r.Post("/refresh", s.refreshHandler)
		r.Post("/logout", s.logoutHandler)
		r.Get("/me", s.meHandler)
	})

	r.Route("/.well-known", func(r chi.Router) {
		r.Get("/jwks.json", s.jwksHandler)
	})

	r.Route("/permission-spec", func(r chi.Router) {
		r.Get("/", s.permissionSpecHandler)
		r.Get("/resolve", s.resolveHandler)
	})

	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func (s *Service) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// tokenResponse is the pair payload returned by login and refresh
type tokenResponse struct {
	SubjectID             string `json:"subject_id,omitempty"`
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
}

func pairResponse(pair token.Pair, includeSubject bool) tokenResponse {
	resp := tokenResponse{
		AccessToken:           pair.Access.Value,
		RefreshToken:          pair.Refresh.Value,
		ExpiresIn:             int64(pair.Access.TTL().Seconds()),
		RefreshTokenExpiresIn: int64(pair.Refresh.TTL().Seconds()),
		TokenType:             token.TokenType,
	}
	if includeSubject {
		resp.SubjectID = pair.Access.SubjectID
	}
	return resp
}

func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Secret     string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "identifier and secret are required"))
		return
	}

	pair, err := s.manager.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginFailed()
		}
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LoginSucceeded()
	}
	s.writeJSON(w, http.StatusOK, pairResponse(pair, true))
}

func (s *Service) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "refresh_token is required"))
		return
	}

	pair, err := s.manager.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RefreshFailed()
		}
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RefreshSucceeded()
	}
	s.writeJSON(w, http.StatusOK, pairResponse(pair, false))
}

func (s *Service) logoutHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID string `json:"subject_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubjectID == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "subject_id is required"))
		return
	}

	if err := s.manager.Logout(r.Context(), req.SubjectID); err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LogoutCompleted()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) meHandler(w http.ResponseWriter, r *http.Request) {
	subjectID := r.Header.Get(HeaderUserID)
	if subjectID == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidCredentials, "missing identity header"))
		return
	}

	tc, err := s.manager.Context(r.Context(), subjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tc)
}

func (s *Service) jwksHandler(w http.ResponseWriter, r *http.Request) {
	keySet, err := s.signer.PublicKeySet()
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeSigningKeyUnavailable, "failed to export public keys"))
		return
	}
	s.writeJSON(w, http.StatusOK, keySet)
}

func (s *Service) permissionSpecHandler(w http.ResponseWriter, r *http.Request) {
	export, err := s.resolver.BulkExport(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, export)
}

// resolveHandler answers a single (method, path) lookup for gateways that
// prefer per-request resolution over caching the bulk export.
func (s *Service) resolveHandler(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	path := r.URL.Query().Get("path")
	if method == "" || path == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "method and path are required"))
		return
	}

	key, ok, err := s.resolver.Resolve(r.Context(), method, path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.ResolverMiss()
		}
		s.writeError(w, apperrors.NewNotFound("permission mapping"))
		return
	}
	if s.metrics != nil {
		s.metrics.ResolverHit()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"permission_key": key})
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusOf(err)
	code := apperrors.CodeOf(err)

	message := "internal error"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", string(code)).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": message,
	})
}
