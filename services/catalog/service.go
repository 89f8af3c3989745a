package catalog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/cache"
	"github.com/GuardianChain/launch_layer/internal/httputil"
	"github.com/GuardianChain/launch_layer/internal/logging"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	leaderboardCacheKey = "catalog:leaderboard"
	leaderboardCacheTTL = time.Minute
)

// Service serves catalog data over HTTP.
type Service struct {
	data   *Data
	cache  cache.Cache
	logger *logging.Logger
}

// NewService creates the service. A nil cache disables caching.
func NewService(data *Data, c cache.Cache, logger *logging.Logger) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	if logger == nil {
		logger = logging.NewDiscard("catalog")
	}
	return &Service{data: data, cache: c, logger: logger}
}

// Leaderboard returns the top limit ranked entries.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	ranked, err := cache.GetOrLoad(ctx, s.cache, leaderboardCacheKey, leaderboardCacheTTL, func(context.Context) ([]LeaderboardEntry, error) {
		return Rank(s.data.Leaderboard), nil
	})
	if err != nil {
		return nil, err
	}
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RegisterRoutes registers the catalog routes.
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tiers", s.handleTiers).Methods(http.MethodGet)
	router.HandleFunc("/api/tiers/{id}", s.handleTier).Methods(http.MethodGet)
	router.HandleFunc("/api/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	router.HandleFunc("/api/capsules", s.handleCapsules).Methods(http.MethodGet)
	router.HandleFunc("/api/onboarding/progress", s.handleProgress).Methods(http.MethodGet)
}

// =============================================================================
// HTTP Handlers
// =============================================================================

func (s *Service) handleTiers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tiers": s.data.Tiers,
	})
}

func (s *Service) handleTier(w http.ResponseWriter, r *http.Request) {
	tier, ok := s.data.Tier(mux.Vars(r)["id"])
	if !ok {
		httputil.NotFound(w, "tier not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tier)
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	entries, err := s.Leaderboard(r.Context(), limit)
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("load leaderboard failed")
		httputil.InternalError(w, "failed to load leaderboard")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(s.data.Leaderboard),
	})
}

func (s *Service) handleCapsules(w http.ResponseWriter, r *http.Request) {
	capsules := s.data.CapsulesByCategory(r.URL.Query().Get("category"))
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"capsules": capsules,
		"count":    len(capsules),
	})
}

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	var xp int64
	if raw := r.URL.Query().Get("xp"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "xp must be an integer")
			return
		}
		xp = n
	}
	progress, err := s.data.ProgressFor(xp)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progress)
}
