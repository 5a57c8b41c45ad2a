package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrBadPrice = errors.New("price must not be negative")

// CreateProductInput carries the fields for a new product. Money fields are
// decimal strings as received on the wire.
type CreateProductInput struct {
	Name              string
	Description       string
	Price             decimal.Decimal
	CostPrice         *decimal.Decimal
	Tax               decimal.Decimal
	Discount          decimal.Decimal
	CategoryID        *uuid.UUID
	ImageURLs         []string
	InitialQuantity   int
	LowStockThreshold int
}

// UpdateProductInput carries the mutable product fields. Nil fields are left
// unchanged.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	CostPrice   *decimal.Decimal
	Tax         *decimal.Decimal
	Discount    *decimal.Decimal
	CategoryID  *uuid.UUID
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Data       []*domain.Product `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

// CatalogService defines the interface for product and category business logic
type CatalogService interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, opts repository.ProductListOptions) (*ProductPage, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	reports      ReportInvalidator
	logger       *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService. The
// invalidator may be nil when no report cache is configured.
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	reports ReportInvalidator,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		reports:      reports,
		logger:       logger,
	}
}

// CreateProduct validates the input, resolves the category, and creates the
// product together with its inventory record and initial audit entry.
func (s *catalogService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if input.Price.IsNegative() {
		return nil, ErrBadPrice
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}
	if input.InitialQuantity < 0 {
		input.InitialQuantity = 0
	}
	if input.LowStockThreshold <= 0 {
		input.LowStockThreshold = domain.DefaultLowStockThreshold
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Slug:        slugify(input.Name),
		Description: input.Description,
		Price:       input.Price,
		CostPrice:   input.CostPrice,
		Tax:         input.Tax,
		Discount:    input.Discount,
		CategoryID:  input.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, url := range input.ImageURLs {
		product.Images = append(product.Images, domain.ProductImage{
			ID:        uuid.New(),
			ProductID: product.ID,
			URL:       url,
			AltText:   input.Name,
			CreatedAt: now,
		})
	}

	if _, err := s.productRepo.Create(ctx, product, input.InitialQuantity, input.LowStockThreshold); err != nil {
		return nil, err
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("slug", product.Slug),
		zap.Int("initial_quantity", input.InitialQuantity),
	)
	if s.reports != nil {
		s.reports.InvalidateReports(ctx)
	}

	return s.productRepo.FindByID(ctx, product.ID)
}

// UpdateProduct applies the non-nil input fields to a product
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
		product.Slug = slugify(*input.Name)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, ErrBadPrice
		}
		product.Price = *input.Price
	}
	if input.CostPrice != nil {
		product.CostPrice = input.CostPrice
	}
	if input.Tax != nil {
		product.Tax = *input.Tax
	}
	if input.Discount != nil {
		product.Discount = *input.Discount
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = input.CategoryID
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	if s.reports != nil {
		s.reports.InvalidateReports(ctx)
	}
	return s.productRepo.FindByID(ctx, id)
}

// DeleteProduct removes a product and its dependent rows, then drops any
// cached reports that may still count it.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	if s.reports != nil {
		s.reports.InvalidateReports(ctx)
	}
	return nil
}

// GetProduct retrieves a product with its category and images
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// ListProducts retrieves a filtered, paginated product page
func (s *catalogService) ListProducts(ctx context.Context, opts repository.ProductListOptions) (*ProductPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}

	products, total, err := s.productRepo.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Data:       products,
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: (total + opts.PageSize - 1) / opts.PageSize,
	}, nil
}

// CreateCategory creates a category with a slug derived from its name
func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slugify(name),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// ListCategories retrieves all categories with product counts
func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

// slugify lowercases a name and collapses non-alphanumeric runs to hyphens
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
