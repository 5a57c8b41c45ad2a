package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shopdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInventoryNotFound = errors.New("inventory item not found")
)

// StockFilter selects which slice of the inventory a listing returns
type StockFilter string

const (
	StockFilterAll StockFilter = "all"
	StockFilterLow StockFilter = "low"
	StockFilterOut StockFilter = "out"
)

// InventorySummary holds current-state stock counts, independent of any
// analytics window.
type InventorySummary struct {
	TotalProducts int `json:"totalProducts"`
	InStock       int `json:"inStock"`
	LowStock      int `json:"lowStock"`
	OutOfStock    int `json:"outOfStock"`
}

// InventoryRepository defines the interface for inventory data access
type InventoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Inventory, error)
	FindByProductID(ctx context.Context, productID uuid.UUID) (*domain.Inventory, error)
	List(ctx context.Context, filter StockFilter) ([]*domain.Inventory, error)
	AdjustQuantity(ctx context.Context, id uuid.UUID, change int, reason string, notes string, threshold *int) (*domain.Inventory, *domain.InventoryLog, error)
	SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (*domain.Inventory, error)
	ListLogs(ctx context.Context, id uuid.UUID, limit int) ([]*domain.InventoryLog, error)
	Summary(ctx context.Context) (*InventorySummary, error)
	ListLowStock(ctx context.Context, maxQuantity int, start, end *time.Time, limit int) ([]*domain.Inventory, error)
	CountAtOrBelow(ctx context.Context, quantity int) (int, error)
}

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new instance of InventoryRepository
func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

const inventorySelect = `
	SELECT i.id, i.product_id, i.quantity, i.low_stock_threshold,
	       i.quantity > 0 AS in_stock, i.is_visible, i.created_at, i.updated_at,
	       p.id, p.name, p.slug, p.price, p.cost_price
	FROM inventories i
	JOIN products p ON p.id = i.product_id
`

func scanInventory(row interface{ Scan(...interface{}) error }) (*domain.Inventory, error) {
	inv := &domain.Inventory{Product: &domain.Product{}}
	var costPrice decimal.NullDecimal
	err := row.Scan(
		&inv.ID,
		&inv.ProductID,
		&inv.Quantity,
		&inv.LowStockThreshold,
		&inv.InStock,
		&inv.IsVisible,
		&inv.CreatedAt,
		&inv.UpdatedAt,
		&inv.Product.ID,
		&inv.Product.Name,
		&inv.Product.Slug,
		&inv.Product.Price,
		&costPrice,
	)
	if err != nil {
		return nil, err
	}
	if costPrice.Valid {
		inv.Product.CostPrice = &costPrice.Decimal
	}
	return inv, nil
}

// FindByID retrieves an inventory record with its product using parameterized queries
func (r *inventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Inventory, error) {
	query := inventorySelect + `WHERE i.id = $1`

	inv, err := scanInventory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to find inventory by ID: %w", err)
	}

	return inv, nil
}

// FindByProductID retrieves the inventory record owned by a product
func (r *inventoryRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (*domain.Inventory, error) {
	query := inventorySelect + `WHERE i.product_id = $1`

	inv, err := scanInventory(r.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to find inventory by product ID: %w", err)
	}

	return inv, nil
}

// List retrieves inventory records filtered by stock state, lowest quantity first.
// "low" compares each item against its own low_stock_threshold.
func (r *inventoryRepository) List(ctx context.Context, filter StockFilter) ([]*domain.Inventory, error) {
	query := inventorySelect

	switch filter {
	case StockFilterLow:
		query += `WHERE i.quantity > 0 AND i.quantity <= i.low_stock_threshold `
	case StockFilterOut:
		query += `WHERE i.quantity <= 0 `
	}
	query += `ORDER BY i.quantity ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := []*domain.Inventory{}
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		items = append(items, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}

	return items, nil
}

// AdjustQuantity applies a signed delta to one inventory row and appends an
// audit log entry, all inside a single transaction. The row is locked with
// FOR UPDATE so concurrent adjustments serialize instead of losing updates.
//
// The resulting quantity is floored at zero. The log records the requested
// delta, not the clamped one, and the clamped new quantity.
func (r *inventoryRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, change int, reason string, notes string, threshold *int) (*domain.Inventory, *domain.InventoryLog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventories WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrInventoryNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock inventory row: %w", err)
	}

	newQuantity := current + change
	if newQuantity < 0 {
		newQuantity = 0
	}

	now := time.Now().UTC()

	if threshold != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE inventories SET quantity = $2, low_stock_threshold = $3, updated_at = $4 WHERE id = $1`,
			id, newQuantity, *threshold, now,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE inventories SET quantity = $2, updated_at = $3 WHERE id = $1`,
			id, newQuantity, now,
		)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update inventory: %w", err)
	}

	log := &domain.InventoryLog{
		ID:          uuid.New(),
		InventoryID: id,
		Change:      change,
		NewQuantity: newQuantity,
		Reason:      reason,
		CreatedAt:   now,
	}
	if notes != "" {
		log.Metadata = map[string]string{"notes": notes}
	}

	metadata, err := marshalMetadata(log.Metadata)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_logs (id, inventory_id, change, new_quantity, reason, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.InventoryID, log.Change, log.NewQuantity, log.Reason, metadata, log.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert inventory log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit inventory adjustment: %w", err)
	}

	inv, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return inv, log, nil
}

// SetVisibility toggles the stored manual-override flag. No audit log entry
// is produced for this path.
func (r *inventoryRepository) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (*domain.Inventory, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE inventories SET is_visible = $2, updated_at = $3 WHERE id = $1`,
		id, visible, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update inventory visibility: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrInventoryNotFound
	}

	return r.FindByID(ctx, id)
}

// ListLogs retrieves the most recent audit entries for one inventory record,
// newest first.
func (r *inventoryRepository) ListLogs(ctx context.Context, id uuid.UUID, limit int) ([]*domain.InventoryLog, error) {
	query := `
		SELECT id, inventory_id, change, new_quantity, reason, metadata, created_at
		FROM inventory_logs
		WHERE inventory_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	defer rows.Close()

	logs := []*domain.InventoryLog{}
	for rows.Next() {
		log := &domain.InventoryLog{}
		var metadata []byte
		err := rows.Scan(
			&log.ID,
			&log.InventoryID,
			&log.Change,
			&log.NewQuantity,
			&log.Reason,
			&metadata,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory log: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &log.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode log metadata: %w", err)
			}
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory logs: %w", err)
	}

	return logs, nil
}

// Summary computes current-state stock counts across the whole inventory
func (r *inventoryRepository) Summary(ctx context.Context) (*InventorySummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE quantity > 0),
		       COUNT(*) FILTER (WHERE quantity > 0 AND quantity <= low_stock_threshold),
		       COUNT(*) FILTER (WHERE quantity <= 0)
		FROM inventories
	`

	summary := &InventorySummary{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&summary.TotalProducts,
		&summary.InStock,
		&summary.LowStock,
		&summary.OutOfStock,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize inventory: %w", err)
	}

	return summary, nil
}

// ListLowStock retrieves inventories at or below maxQuantity, most recently
// updated first, optionally bounded to a date range on updated_at.
func (r *inventoryRepository) ListLowStock(ctx context.Context, maxQuantity int, start, end *time.Time, limit int) ([]*domain.Inventory, error) {
	query := inventorySelect + `WHERE i.quantity <= $1`
	args := []interface{}{maxQuantity}
	argIndex := 2

	if start != nil {
		query += fmt.Sprintf(" AND i.updated_at >= $%d", argIndex)
		args = append(args, *start)
		argIndex++
	}
	if end != nil {
		query += fmt.Sprintf(" AND i.updated_at < $%d", argIndex)
		args = append(args, *end)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY i.updated_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list low-stock inventory: %w", err)
	}
	defer rows.Close()

	items := []*domain.Inventory{}
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan low-stock inventory: %w", err)
		}
		items = append(items, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating low-stock inventory: %w", err)
	}

	return items, nil
}

// CountAtOrBelow counts inventories with quantity at or below the given value
func (r *inventoryRepository) CountAtOrBelow(ctx context.Context, quantity int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventories WHERE quantity <= $1`, quantity,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count low inventory: %w", err)
	}
	return count, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log metadata: %w", err)
	}
	return data, nil
}
