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
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error)
	TotalsBetween(ctx context.Context, start, end time.Time) (int, decimal.Decimal, error)
	RevenueBetween(ctx context.Context, start, end time.Time, statuses []string) (decimal.Decimal, error)
	CountBetween(ctx context.Context, start, end time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderSelect = `
	SELECT o.id, o.order_number, o.user_id, o.status,
	       o.subtotal, o.tax, o.discount, o.total,
	       o.shipping_address, o.created_at, o.updated_at,
	       u.id, u.username, u.email
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id
`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var (
		address  []byte
		userID   *uuid.UUID
		username sql.NullString
		email    sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.Subtotal,
		&order.Tax,
		&order.Discount,
		&order.Total,
		&address,
		&order.CreatedAt,
		&order.UpdatedAt,
		&userID,
		&username,
		&email,
	)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
	}
	if userID != nil {
		order.User = &domain.User{ID: *userID, Username: username.String, Email: email.String}
	}
	return order, nil
}

// Create inserts a new order and its items using parameterized queries
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, subtotal, tax, discount, total, shipping_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.Tax, order.Discount, order.Total,
		address, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)`,
			item.ID, order.ID, item.ProductID, item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// FindByID retrieves a single order with its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+`WHERE o.id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	items, err := r.itemsForOrders(ctx, `WHERE oi.order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// ListBetween retrieves all orders created in [start, end] with their items,
// item products, and user summary, newest first. The end bound is inclusive
// so a window ending at the current instant still counts orders placed at
// exactly that instant.
func (r *orderRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	query := orderSelect + `
		WHERE o.created_at >= $1 AND o.created_at <= $2
		ORDER BY o.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.itemsForOrders(ctx,
		`JOIN orders o ON o.id = oi.order_id WHERE o.created_at >= $1 AND o.created_at <= $2`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}

	return orders, nil
}

// itemsForOrders loads order items with their product name and cost price,
// grouped by order id. The whereClause must reference oi (order_items).
func (r *orderRepository) itemsForOrders(ctx context.Context, whereClause string, args ...interface{}) (map[uuid.UUID][]domain.OrderItem, error) {
	query := fmt.Sprintf(`
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
		       p.name, p.cost_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		%s
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := map[uuid.UUID][]domain.OrderItem{}
	for rows.Next() {
		item := domain.OrderItem{Product: &domain.Product{}}
		var costPrice decimal.NullDecimal
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&item.Product.Name,
			&costPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Product.ID = item.ProductID
		if costPrice.Valid {
			item.Product.CostPrice = &costPrice.Decimal
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// TotalsBetween returns the order count and summed totals for the half-open
// window [start, end), so a comparison window abutting the primary one never
// double counts its boundary. Only totals are read; the comparison window
// never needs items.
func (r *orderRepository) TotalsBetween(ctx context.Context, start, end time.Time) (int, decimal.Decimal, error) {
	var (
		count int
		sum   decimal.Decimal
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(&count, &sum)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to total orders: %w", err)
	}
	return count, sum, nil
}

// RevenueBetween sums order totals in [start, end) restricted to the given statuses
func (r *orderRepository) RevenueBetween(ctx context.Context, start, end time.Time, statuses []string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(total), 0) FROM orders WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{start, end}

	if len(statuses) > 0 {
		query += ` AND status IN (`
		for i, status := range statuses {
			if i > 0 {
				query += ", "
			}
			query += fmt.Sprintf("$%d", len(args)+1)
			args = append(args, status)
		}
		query += `)`
	}

	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum order revenue: %w", err)
	}
	return sum, nil
}

// CountBetween counts orders created in [start, end)
func (r *orderRepository) CountBetween(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// Count counts all orders
func (r *orderRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// ListRecent retrieves the newest orders with their user summary, optionally
// bounded to a creation date range. Items are not loaded.
func (r *orderRepository) ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Order, error) {
	query := orderSelect
	args := []interface{}{}
	conditions := ""

	if start != nil {
		args = append(args, *start)
		conditions = fmt.Sprintf("WHERE o.created_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		if conditions == "" {
			conditions = fmt.Sprintf("WHERE o.created_at < $%d", len(args))
		} else {
			conditions += fmt.Sprintf(" AND o.created_at < $%d", len(args))
		}
	}

	args = append(args, limit)
	query += fmt.Sprintf("%s ORDER BY o.created_at DESC LIMIT $%d", conditions, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent orders: %w", err)
	}

	return orders, nil
}
