package transport

import (
	"errors"
	"net/http"

	"shopdesk/internal/middleware"
	"shopdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AnalyticsHandler handles HTTP requests for analytics reports
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	logger           *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// RegisterRoutes registers all analytics routes
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Get("/", h.GetReport)
	})
}

// GetReport handles building (or serving from cache) one analytics report
func (h *AnalyticsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyticsService.Summarize(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		if errors.Is(err, service.ErrBadRange) {
			middleware.RespondWithError(w, http.StatusBadRequest, "range must be one of day, week, month")
			return
		}
		h.logger.Error("Failed to build analytics report", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build analytics report")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}
