package transport

import (
	"errors"
	"net/http"

	"shopdesk/internal/domain"
	"shopdesk/internal/middleware"
	"shopdesk/internal/repository"
	"shopdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdjustInventoryRequest represents a signed stock adjustment payload
type AdjustInventoryRequest struct {
	Change            int    `json:"change"`
	Reason            string `json:"reason" validate:"required"`
	Notes             string `json:"notes"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// SetStockStatusRequest represents a manual visibility override payload
type SetStockStatusRequest struct {
	InStock *bool `json:"in_stock" validate:"required"`
}

// AdjustInventoryResponse pairs the updated record with its audit entry
type AdjustInventoryResponse struct {
	Inventory *domain.Inventory    `json:"inventory"`
	Log       *domain.InventoryLog `json:"log"`
}

// InventoryHandler handles HTTP requests for inventory operations
type InventoryHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers all inventory routes. Everything here is
// back-office surface, so the whole subtree requires an admin token.
func (h *InventoryHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/adjust", h.Adjust)
		r.Patch("/{id}/stock-status", h.SetStockStatus)
		r.Get("/{id}/logs", h.ListLogs)
	})
}

// List handles listing inventory records filtered by stock state
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.inventoryService.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, service.ErrBadFilter) {
			middleware.RespondWithError(w, http.StatusBadRequest, "status must be one of all, low, out")
			return
		}
		h.logger.Error("Failed to list inventory", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, records)
}

// Get handles retrieving one inventory record
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid inventory ID")
		return
	}

	inv, err := h.inventoryService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "inventory not found")
			return
		}
		h.logger.Error("Failed to get inventory", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get inventory")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, inv)
}

// Adjust handles an audited quantity adjustment
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid inventory ID")
		return
	}

	var req AdjustInventoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Adjustment validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, log, err := h.inventoryService.Adjust(r.Context(), id, req.Change, req.Reason, req.Notes, req.LowStockThreshold)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrZeroChange),
			errors.Is(err, service.ErrReasonMissing),
			errors.Is(err, service.ErrBadReason):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrInventoryNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "inventory not found")
		default:
			h.logger.Error("Failed to adjust inventory", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to adjust inventory")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AdjustInventoryResponse{Inventory: inv, Log: log})
}

// SetStockStatus handles the manual visibility override
func (h *InventoryHandler) SetStockStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid inventory ID")
		return
	}

	var req SetStockStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, err := h.inventoryService.SetInStock(r.Context(), id, *req.InStock)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "inventory not found")
			return
		}
		h.logger.Error("Failed to update stock status", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update stock status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, inv)
}

// ListLogs handles retrieving the audit trail for one inventory record
func (h *InventoryHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid inventory ID")
		return
	}

	logs, err := h.inventoryService.ListLogs(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "inventory not found")
			return
		}
		h.logger.Error("Failed to list inventory logs", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list inventory logs")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, logs)
}
