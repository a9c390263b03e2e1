// Package api serves the read paths over the read cache and the stats
// engine, plus the operator triggers for cache reloads and sync runs.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"ttfl_tracker/ingestion/internal/cache"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// AdminTokenHeader carries the operator token on /admin routes
const AdminTokenHeader = "X-Admin-Token"

// ReadModel is the cached reference data the read paths are served from
type ReadModel interface {
	State() cache.State
	Team(id int) (*models.Team, bool)
	PlayerByExternalID(externalID int) (*models.Player, bool)
	PlayersForTeams(teamIDs []int, activeOnly bool) []*models.Player
	ActivePlayers() []*models.Player
	GamesForDate(date time.Time) []*models.Game
	Games() []*models.Game
	Teams() []*models.Team
	EarliestStartTimes() map[string]time.Time
	ReloadOnRequest(ctx context.Context, trigger string) (cache.ReloadResult, error)
}

// Averages computes rolling averages for batches of players
type Averages interface {
	Averages(ctx context.Context, playerIDs []int) (map[int]models.Averages, error)
	Today() time.Time
}

// Storage is the durable data read directly by the API
type Storage interface {
	GetPlayerByExternalID(ctx context.Context, externalID int) (*models.Player, error)
	PlayerScores(ctx context.Context, playerID int) ([]models.PlayerGameScore, error)
	GetMetadata(ctx context.Context, key string) (string, bool, error)
}

// SyncRunner runs a sync on behalf of an operator
type SyncRunner interface {
	RunNow(ctx context.Context, opts reconcile.Options) (*reconcile.RunResult, error)
}

// Server holds the API dependencies
type Server struct {
	cache      ReadModel
	averages   Averages
	storage    Storage
	sync       SyncRunner
	adminToken string
	now        func() time.Time
}

// NewServer creates a server. An empty admin token disables the /admin routes.
func NewServer(rm ReadModel, avg Averages, st Storage, sync SyncRunner, adminToken string) *Server {
	return &Server{
		cache:      rm,
		averages:   avg,
		storage:    st,
		sync:       sync,
		adminToken: adminToken,
		now:        time.Now,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", s.handleGames)
		r.Get("/players/tonight", s.handleTonight)
		r.Get("/players/{externalID}/stats", s.handlePlayerStats)
		r.Get("/snapshot", s.handleSnapshot)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/cache/reload", s.handleCacheReload)
		r.Post("/sync", s.handleSync)
	})

	return r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"cache":  s.cache.State().String(),
	})
}
