package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shopdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductSlugExists = errors.New("product with this slug already exists")
)

// ProductListOptions narrows a paginated product listing
type ProductListOptions struct {
	Search     string
	CategoryID *uuid.UUID
	Status     StockFilter // all, low, out; "in" is expressed via StatusInStock
	InStock    *bool
	Page       int
	PageSize   int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product, initialQuantity, lowStockThreshold int) (*domain.Inventory, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, opts ProductListOptions) ([]*domain.Product, int, error)
	Count(ctx context.Context) (int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `p.id, p.name, p.slug, p.description, p.price, p.cost_price, p.tax, p.discount, p.category_id, p.avg_rating, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	product := &domain.Product{}
	var costPrice decimal.NullDecimal
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Slug,
		&product.Description,
		&product.Price,
		&costPrice,
		&product.Tax,
		&product.Discount,
		&product.CategoryID,
		&product.AvgRating,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if costPrice.Valid {
		product.CostPrice = &costPrice.Decimal
	}
	return product, nil
}

// Create inserts a product together with its inventory record inside one
// transaction. When the initial quantity is positive an initial_stock audit
// log entry is appended so the trail starts at creation.
func (r *productRepository) Create(ctx context.Context, product *domain.Product, initialQuantity, lowStockThreshold int) (*domain.Inventory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, slug, description, price, cost_price, tax, discount, category_id, avg_rating, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.Price,
		product.CostPrice,
		product.Tax,
		product.Discount,
		product.CategoryID,
		product.AvgRating,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "products_slug_key") {
			return nil, ErrProductSlugExists
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	for _, image := range product.Images {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO product_images (id, product_id, url, alt_text, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			image.ID, product.ID, image.URL, image.AltText, image.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create product image: %w", err)
		}
	}

	inv := &domain.Inventory{
		ID:                uuid.New(),
		ProductID:         product.ID,
		Quantity:          initialQuantity,
		LowStockThreshold: lowStockThreshold,
		InStock:           initialQuantity > 0,
		IsVisible:         true,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.CreatedAt,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventories (id, product_id, quantity, low_stock_threshold, is_visible, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.ProductID, inv.Quantity, inv.LowStockThreshold, inv.IsVisible, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory: %w", err)
	}

	if initialQuantity > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inventory_logs (id, inventory_id, change, new_quantity, reason, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
			uuid.New(), inv.ID, initialQuantity, initialQuantity, domain.ReasonInitialStock, product.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create initial stock log: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product: %w", err)
	}

	return inv, nil
}

// Update updates an existing product using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, slug = $3, description = $4, price = $5, cost_price = $6,
		    tax = $7, discount = $8, category_id = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.Price,
		product.CostPrice,
		product.Tax,
		product.Discount,
		product.CategoryID,
		product.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "products_slug_key") {
			return ErrProductSlugExists
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product. Inventory, logs, images, and reviews cascade.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its category and images
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if product.CategoryID != nil {
		category := &domain.Category{}
		err = r.db.QueryRowContext(ctx,
			`SELECT id, name, slug, description, created_at FROM categories WHERE id = $1`,
			*product.CategoryID,
		).Scan(&category.ID, &category.Name, &category.Slug, &category.Description, &category.CreatedAt)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to load product category: %w", err)
		}
		if err == nil {
			product.Category = category
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, url, alt_text, created_at FROM product_images WHERE product_id = $1 ORDER BY created_at ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		image := domain.ProductImage{}
		if err := rows.Scan(&image.ID, &image.ProductID, &image.URL, &image.AltText, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		product.Images = append(product.Images, image)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}

	return product, nil
}

// List retrieves products with search, category, and stock-status filtering,
// paginated and newest first. Stock filters compare against the product's
// inventory row.
func (r *productRepository) List(ctx context.Context, opts ProductListOptions) ([]*domain.Product, int, error) {
	conditions := []string{}
	args := []interface{}{}

	if search := strings.TrimSpace(opts.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if opts.CategoryID != nil {
		args = append(args, *opts.CategoryID)
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if opts.InStock != nil {
		if *opts.InStock {
			conditions = append(conditions, "i.quantity > 0")
		} else {
			conditions = append(conditions, "i.quantity <= 0")
		}
	}
	switch opts.Status {
	case StockFilterLow:
		conditions = append(conditions, "i.quantity > 0 AND i.quantity <= i.low_stock_threshold")
	case StockFilterOut:
		conditions = append(conditions, "i.quantity <= 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	from := `FROM products p LEFT JOIN inventories i ON i.product_id = p.id`

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", from, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	args = append(args, pageSize, offset)
	query := fmt.Sprintf(`
		SELECT `+productColumns+`
		%s
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d
	`, from, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// Count counts all products
func (r *productRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}
