package transport

import (
	"errors"
	"net/http"
	"strconv"

	"shopdesk/internal/middleware"
	"shopdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ActivityHandler handles HTTP requests for the activity feed
type ActivityHandler struct {
	activityService service.ActivityService
	logger          *zap.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activityService service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// RegisterRoutes registers all activity feed routes
func (h *ActivityHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/activities", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Get("/", h.List)
	})
}

// List handles one page of the merged activity feed
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := queryInt(query.Get("page"), 1)
	pageSize := queryInt(query.Get("limit"), 10)

	feed, err := h.activityService.ListActivities(r.Context(), query.Get("type"), query.Get("time"), page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadActivityType):
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown activity type filter")
		case errors.Is(err, service.ErrBadTimeFilter):
			middleware.RespondWithError(w, http.StatusBadRequest, "time must be one of today, yesterday, week, month, all")
		default:
			h.logger.Error("Failed to list activities", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list activities")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, feed)
}

// queryInt parses a positive integer query parameter, falling back to a
// default on absence or garbage
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
