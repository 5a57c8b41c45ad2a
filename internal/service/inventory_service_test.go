package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func newTestInventoryService(repo *mockInventoryRepository) (InventoryService, *invalidatorSpy) {
	spy := &invalidatorSpy{}
	return NewInventoryService(repo, spy, zap.NewNop()), spy
}

func seedInventory(repo *mockInventoryRepository, quantity int) *domain.Inventory {
	inv := &domain.Inventory{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		Quantity:          quantity,
		LowStockThreshold: 5,
		IsVisible:         true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	repo.add(inv)
	return inv
}

func TestAdjustRejectsZeroChange(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, spy := newTestInventoryService(repo)
	inv := seedInventory(repo, 10)

	_, _, err := svc.Adjust(context.Background(), inv.ID, 0, domain.ReasonRestock, "", nil)
	if !errors.Is(err, ErrZeroChange) {
		t.Fatalf("expected ErrZeroChange, got %v", err)
	}
	if spy.calls != 0 {
		t.Error("rejected adjustment must not invalidate reports")
	}
	if got, _ := repo.FindByID(context.Background(), inv.ID); got.Quantity != 10 {
		t.Errorf("quantity changed on rejected adjustment: %d", got.Quantity)
	}
}

func TestAdjustRejectsMissingReason(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 10)

	_, _, err := svc.Adjust(context.Background(), inv.ID, 5, "", "", nil)
	if !errors.Is(err, ErrReasonMissing) {
		t.Fatalf("expected ErrReasonMissing, got %v", err)
	}
}

func TestAdjustRejectsUnknownReason(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 10)

	_, _, err := svc.Adjust(context.Background(), inv.ID, 5, "shrinkage", "", nil)
	if !errors.Is(err, ErrBadReason) {
		t.Fatalf("expected ErrBadReason, got %v", err)
	}

	logs, _ := svc.ListLogs(context.Background(), inv.ID)
	if len(logs) != 0 {
		t.Errorf("rejected adjustment must not append audit entries, got %d", len(logs))
	}
}

func TestAdjustMissingInventory(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)

	_, _, err := svc.Adjust(context.Background(), uuid.New(), 5, domain.ReasonRestock, "", nil)
	if !errors.Is(err, repository.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestAdjustIncrementAppendsLog(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, spy := newTestInventoryService(repo)
	inv := seedInventory(repo, 10)

	updated, log, err := svc.Adjust(context.Background(), inv.ID, 5, domain.ReasonRestock, "weekly delivery", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Quantity != 15 {
		t.Errorf("expected quantity 15, got %d", updated.Quantity)
	}
	if !updated.InStock {
		t.Error("expected in_stock true after increment")
	}
	if log.Change != 5 || log.NewQuantity != 15 || log.Reason != domain.ReasonRestock {
		t.Errorf("unexpected log entry: %+v", log)
	}
	if log.Metadata["notes"] != "weekly delivery" {
		t.Errorf("expected notes in metadata, got %v", log.Metadata)
	}
	if spy.calls != 1 {
		t.Errorf("expected one report invalidation, got %d", spy.calls)
	}
}

func TestAdjustClampRetainsRequestedDelta(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 3)

	updated, log, err := svc.Adjust(context.Background(), inv.ID, -10, domain.ReasonSale, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Quantity != 0 {
		t.Errorf("expected clamped quantity 0, got %d", updated.Quantity)
	}
	if updated.InStock {
		t.Error("expected in_stock false at zero quantity")
	}
	if log.Change != -10 {
		t.Errorf("audit entry must keep the requested delta, got %d", log.Change)
	}
	if log.NewQuantity != 0 {
		t.Errorf("audit entry must record the clamped quantity, got %d", log.NewQuantity)
	}
}

func TestAdjustUpdatesThresholdWhenGiven(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 10)

	threshold := 8
	updated, _, err := svc.Adjust(context.Background(), inv.ID, 1, domain.ReasonAdjustment, "", &threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LowStockThreshold != 8 {
		t.Errorf("expected threshold 8, got %d", updated.LowStockThreshold)
	}
}

func TestSetInStockDoesNotTouchQuantityOrAudit(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 7)

	updated, err := svc.SetInStock(context.Background(), inv.ID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.IsVisible {
		t.Error("expected is_visible false")
	}
	if updated.Quantity != 7 {
		t.Errorf("visibility override must not change quantity, got %d", updated.Quantity)
	}
	if !updated.InStock {
		t.Error("derived in_stock must still follow quantity")
	}

	logs, _ := svc.ListLogs(context.Background(), inv.ID)
	if len(logs) != 0 {
		t.Errorf("visibility override must not be audited, got %d entries", len(logs))
	}
}

func TestListRejectsUnknownFilter(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)

	if _, err := svc.List(context.Background(), "backordered"); !errors.Is(err, ErrBadFilter) {
		t.Fatalf("expected ErrBadFilter, got %v", err)
	}
}

func TestListLogsNewestFirst(t *testing.T) {
	repo := newMockInventoryRepository()
	svc, _ := newTestInventoryService(repo)
	inv := seedInventory(repo, 100)

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Adjust(context.Background(), inv.ID, -1, domain.ReasonSale, "", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	logs, err := svc.ListLogs(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].CreatedAt.After(logs[i-1].CreatedAt) {
			t.Error("logs must be ordered newest first")
		}
	}
	if logs[0].NewQuantity != 97 {
		t.Errorf("expected newest entry at quantity 97, got %d", logs[0].NewQuantity)
	}
}

func TestProperty_AdjustmentClampsAtZero(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quantity after any adjustment is max(0, current+change)", prop.ForAll(
		func(initial int, change int) bool {
			if change == 0 {
				return true
			}

			repo := newMockInventoryRepository()
			svc, _ := newTestInventoryService(repo)
			inv := seedInventory(repo, initial)

			updated, log, err := svc.Adjust(context.Background(), inv.ID, change, domain.ReasonAdjustment, "", nil)
			if err != nil {
				return false
			}

			expected := initial + change
			if expected < 0 {
				expected = 0
			}
			return updated.Quantity == expected &&
				updated.Quantity >= 0 &&
				log.Change == change &&
				log.NewQuantity == expected
		},
		gen.IntRange(0, 1000),
		gen.IntRange(-2000, 2000),
	))

	properties.TestingRun(t)
}
