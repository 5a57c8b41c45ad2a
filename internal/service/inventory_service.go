package service

import (
	"context"
	"errors"
	"fmt"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultLogLimit bounds how many audit entries a log listing returns
	DefaultLogLimit = 50
)

var (
	ErrZeroChange    = errors.New("change amount must be non-zero")
	ErrReasonMissing = errors.New("adjustment reason is required")
	ErrBadReason     = errors.New("unknown adjustment reason")
	ErrBadFilter     = errors.New("unknown stock filter")
)

// InventoryService defines the interface for inventory business logic
type InventoryService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Inventory, error)
	List(ctx context.Context, filter string) ([]*domain.Inventory, error)
	Adjust(ctx context.Context, id uuid.UUID, change int, reason, notes string, threshold *int) (*domain.Inventory, *domain.InventoryLog, error)
	SetInStock(ctx context.Context, id uuid.UUID, inStock bool) (*domain.Inventory, error)
	ListLogs(ctx context.Context, id uuid.UUID) ([]*domain.InventoryLog, error)
}

// ReportInvalidator drops cached analytics reports after a write that
// changes their inputs.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context)
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	reports       ReportInvalidator
	logger        *zap.Logger
}

// NewInventoryService creates a new instance of InventoryService. The
// invalidator may be nil when no report cache is configured.
func NewInventoryService(inventoryRepo repository.InventoryRepository, reports ReportInvalidator, logger *zap.Logger) InventoryService {
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		reports:       reports,
		logger:        logger,
	}
}

// Get retrieves one inventory record with its product
func (s *inventoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Inventory, error) {
	return s.inventoryRepo.FindByID(ctx, id)
}

// List retrieves inventory records filtered by stock state
func (s *inventoryService) List(ctx context.Context, filter string) ([]*domain.Inventory, error) {
	if filter == "" {
		filter = string(repository.StockFilterAll)
	}

	switch repository.StockFilter(filter) {
	case repository.StockFilterAll, repository.StockFilterLow, repository.StockFilterOut:
	default:
		return nil, ErrBadFilter
	}

	return s.inventoryRepo.List(ctx, repository.StockFilter(filter))
}

// Adjust applies a signed, audited quantity change to one inventory record.
// Input is validated before any read; the repository executes the
// read-modify-write-log sequence atomically. The resulting quantity is
// floored at zero while the audit entry keeps the requested delta.
func (s *inventoryService) Adjust(ctx context.Context, id uuid.UUID, change int, reason, notes string, threshold *int) (*domain.Inventory, *domain.InventoryLog, error) {
	if change == 0 {
		return nil, nil, ErrZeroChange
	}
	if reason == "" {
		return nil, nil, ErrReasonMissing
	}
	if !domain.ValidAdjustmentReason(reason) {
		return nil, nil, ErrBadReason
	}

	inv, log, err := s.inventoryRepo.AdjustQuantity(ctx, id, change, reason, notes, threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to adjust inventory: %w", err)
	}

	s.logger.Info("Inventory adjusted",
		zap.String("inventory_id", id.String()),
		zap.Int("change", change),
		zap.Int("new_quantity", inv.Quantity),
		zap.String("reason", reason),
	)

	if s.reports != nil {
		s.reports.InvalidateReports(ctx)
	}

	return inv, log, nil
}

// SetInStock writes the manual visibility override. The derived in_stock
// value stays tied to quantity; this flag only hides a product without
// touching its stock, and the change is not audited.
func (s *inventoryService) SetInStock(ctx context.Context, id uuid.UUID, inStock bool) (*domain.Inventory, error) {
	inv, err := s.inventoryRepo.SetVisibility(ctx, id, inStock)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory visibility updated",
		zap.String("inventory_id", id.String()),
		zap.Bool("visible", inStock),
	)

	return inv, nil
}

// ListLogs retrieves the most recent audit entries, newest first
func (s *inventoryService) ListLogs(ctx context.Context, id uuid.UUID) ([]*domain.InventoryLog, error) {
	return s.inventoryRepo.ListLogs(ctx, id, DefaultLogLimit)
}
