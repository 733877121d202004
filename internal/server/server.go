package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/lattelab/reliamap/pkg/buildinfo"
	"github.com/lattelab/reliamap/pkg/cache"
	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/relmap"
	"github.com/lattelab/reliamap/pkg/source"
)

// Server serves the reliability map API.
type Server struct {
	cfg    Config
	store  SnapshotStore
	cache  cache.Cache
	mock   *MockGenerator
	logger *log.Logger
	router chi.Router
}

// New assembles a server from its dependencies. A nil store gets a
// MemoryStore and a nil cache gets a NullCache, so only Config is needed
// for a demo instance.
func New(cfg Config, store SnapshotStore, c cache.Cache, logger *log.Logger) *Server {
	if store == nil {
		store = NewMemoryStore()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		cache:  c,
		mock:   NewMockGenerator(time.Now().UnixNano()),
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr, "mock_mode", s.cfg.MockMode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.apiKeyAuth)

		// The bare path is a legacy alias for the /api route.
		r.Get("/reliability_map", s.handleReliabilityMap)

		r.Route("/api", func(r chi.Router) {
			r.Get("/config", s.handleConfig)
			r.Get("/reliability_map", s.handleReliabilityMap)
			r.Post("/snapshots", s.handleCreateSnapshot)
			r.Get("/snapshots", s.handleListSnapshots)
			r.Get("/snapshots/{id}", s.handleGetSnapshot)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// apiKeyAuth rejects requests without the configured API key. An empty
// configured key disables auth, which is only sensible for local demos.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" {
			key := r.Header.Get(source.APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) != 1 {
				s.writeError(w, http.StatusUnauthorized,
					errors.New(errors.ErrCodeUnauthorized, "invalid or missing API key"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Handlers
// =============================================================================

const (
	mapCacheKey = "response:reliability_map"
	mapCacheTTL = 30 * time.Second
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Reliamap"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"mock_mode": s.cfg.MockMode,
		"version":   buildinfo.Version,
	})
}

func (s *Server) handleReliabilityMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.cfg.MockMode {
		m := s.mock.Generate()
		snap := Snapshot{ID: s.mock.RunID(), CreatedAt: time.Now().UTC(), Map: m}
		if err := s.store.Save(ctx, snap); err != nil {
			s.logger.Warn("snapshot save failed", "err", err)
		}
		s.writeJSON(w, http.StatusOK, m)
		return
	}

	// Serve the latest snapshot through a short-lived response cache so
	// repeated polls don't hit the store.
	if data, hit, err := s.cache.Get(ctx, mapCacheKey); err == nil && hit {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	snap, err := s.store.Latest(ctx)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	data, err := relmap.MarshalMap(snap.Map)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError,
			errors.Wrap(errors.ErrCodeInternal, err, "encode payload"))
		return
	}
	_ = s.cache.Set(ctx, mapCacheKey, data, mapCacheTTL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var m relmap.Map
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeError(w, http.StatusBadRequest,
			errors.Wrap(errors.ErrCodeMalformedPayload, err, "decode payload"))
		return
	}
	if err := m.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	snap := Snapshot{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Map: &m}
	if err := s.store.Save(r.Context(), snap); err != nil {
		s.writeError(w, http.StatusInternalServerError,
			errors.Wrap(errors.ErrCodeInternal, err, "save snapshot"))
		return
	}

	// A new snapshot supersedes the cached response.
	_ = s.cache.Delete(r.Context(), mapCacheKey)

	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.List(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError,
			errors.Wrap(errors.ErrCodeInternal, err, "list snapshots"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrCodeSnapshotNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError,
			errors.Wrap(errors.ErrCodeInternal, err, "get snapshot"))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// =============================================================================
// Response helpers
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	}
	_ = json.NewEncoder(w).Encode(body)
}
