package transport

import (
	"net/http"

	"shopdesk/internal/middleware"
	"shopdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StatsHandler handles HTTP requests for dashboard statistics
type StatsHandler struct {
	statsService service.StatsService
	logger       *zap.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(statsService service.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		logger:       logger,
	}
}

// RegisterRoutes registers all dashboard statistics routes
func (h *StatsHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/stats", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Get("/dashboard", h.Dashboard)
	})
}

// Dashboard handles the admin landing-page statistics
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("Failed to build dashboard stats", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build dashboard stats")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}
