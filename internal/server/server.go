// Package server exposes the compare, sync and profile workflows over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kadirbelkuyu/schemasync/internal/app"
	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
	requestIDHeader = "X-Request-ID"
)

type ctxKey struct{}

// Server is the HTTP front end. It holds no state between requests besides
// its metrics.
type Server struct {
	service  *app.Service
	profiles *profiles.Manager
	logger   *logger.Logger
	metrics  *Metrics
	router   chi.Router
}

func New(service *app.Service, manager *profiles.Manager, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewJSONLogger(io.Discard, false)
	}
	if service == nil {
		service = app.NewService(nil, log)
	}
	if manager == nil {
		manager = profiles.NewManager(nil, log)
	}

	s := &Server{
		service:  service,
		profiles: manager,
		logger:   log,
		metrics:  NewMetrics(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.listProfiles)
			r.Get("/{name}", s.getProfile)
			r.Put("/{name}", s.putProfile)
			r.Delete("/{name}", s.deleteProfile)
		})

		r.Post("/compare", s.compare)
		r.Post("/sync", s.sync)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.WithFields(map[string]interface{}{
			"request_id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"duration":   elapsed.String(),
		}).Info("Handled request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pairRequest names a saved profile or carries both descriptors inline.
type pairRequest struct {
	Profile   string                 `json:"profile,omitempty"`
	DB1       *config.DatabaseConfig `json:"db1,omitempty"`
	DB2       *config.DatabaseConfig `json:"db2,omitempty"`
	Direction string                 `json:"direction,omitempty"`
}

func (s *Server) resolvePair(ctx context.Context, req pairRequest) (profiles.Pair, error) {
	if req.Profile != "" {
		if req.DB1 != nil || req.DB2 != nil {
			return profiles.Pair{}, errs.New(errs.ErrKindInvalidInput, "send either a profile name or db1/db2 descriptors, not both")
		}
		return s.profiles.Get(ctx, req.Profile)
	}
	if req.DB1 == nil || req.DB2 == nil {
		return profiles.Pair{}, errs.New(errs.ErrKindInvalidInput, "db1 and db2 descriptors are required")
	}
	pair := profiles.Pair{DB1: *req.DB1, DB2: *req.DB2}
	for i, cfg := range []*config.DatabaseConfig{&pair.DB1, &pair.DB2} {
		if err := checkInline(*cfg); err != nil {
			return profiles.Pair{}, fmt.Errorf("db%d: %w", i+1, err)
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return profiles.Pair{}, fmt.Errorf("db%d: %w", i+1, err)
		}
	}
	return pair, nil
}

// checkInline refuses descriptors that would make the server resolve its own
// secrets or read local files. Only stored profiles may carry those.
func checkInline(cfg config.DatabaseConfig) error {
	if cfg.SSH.KeyPath != "" || cfg.SSH.KnownHostsPath != "" {
		return errs.New(errs.ErrKindInvalidInput, "ssh key_path and known_hosts are only accepted in saved profiles")
	}
	fields := map[string]string{
		"host": cfg.Host, "database": cfg.Database, "username": cfg.Username,
		"password": cfg.Password, "uri": cfg.URI, "auth_database": cfg.AuthDatabase,
		"sslmode": cfg.SSLMode, "ssh host": cfg.SSH.Host, "ssh user": cfg.SSH.User,
		"ssh password": cfg.SSH.Password, "ssh key passphrase": cfg.SSH.KeyPassphrase,
	}
	for name, val := range fields {
		if config.HasSecretReference(val) {
			return errs.Newf(errs.ErrKindInvalidInput, "%s: secret references are only accepted in saved profiles", name)
		}
	}
	return nil
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.resolvePair(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cmp, err := s.service.Compare(r.Context(), app.LiveSource(pair.DB1), app.LiveSource(pair.DB2))
	if err != nil {
		s.metrics.recordOperation("compare", err, 0)
		s.writeError(w, r, err)
		return
	}
	s.metrics.recordOperation("compare", nil, cmp.Stats.Total())
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Direction == "" {
		req.Direction = string(schema.AtoB)
	}
	dir, err := schema.ParseDirection(req.Direction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.resolvePair(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.service.Sync(r.Context(), app.LiveSource(pair.DB1), app.LiveSource(pair.DB2), dir)
	if err != nil {
		s.metrics.recordOperation("sync", err, 0)
		s.writeError(w, r, err)
		return
	}
	s.metrics.recordOperation("sync", nil, res.Stats.Total())
	writeJSON(w, http.StatusOK, res)
}

type profileResponse struct {
	Name string                `json:"name"`
	DB1  config.DatabaseConfig `json:"db1"`
	DB2  config.DatabaseConfig `json:"db2"`
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.profiles.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []profiles.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location": s.profiles.Location(),
		"profiles": list,
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pair, err := s.profiles.Get(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Name: name, DB1: pair.DB1.Redacted(), DB2: pair.DB2.Redacted()})
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var pair profiles.Pair
	if err := decodeJSON(r, &pair); err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.profiles.Save(r.Context(), chi.URLParam(r, "name"), pair)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": stored})
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Side      string `json:"side,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		Kind:      errs.KindOf(err).String(),
		RequestID: requestIDFrom(r.Context()),
	}
	var side *app.SideError
	if errors.As(err, &side) {
		resp.Side = side.Side
	}

	entry := s.logger.WithField("request_id", resp.RequestID).WithField("kind", resp.Kind)
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Warnf("Request rejected: %v", err)
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput, errs.ErrKindConfiguration, errs.ErrKindUnknownDirection:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindEmptySchema:
		return http.StatusUnprocessableEntity
	case errs.ErrKindConnectionFailed, errs.ErrKindQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	return errs.KindOf(err).String()
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
