package service

import (
	"context"
	"errors"
	"testing"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockProductRepository struct {
	products    map[uuid.UUID]*domain.Product
	inventories map[uuid.UUID]*domain.Inventory
	logs        []*domain.InventoryLog
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:    make(map[uuid.UUID]*domain.Product),
		inventories: make(map[uuid.UUID]*domain.Inventory),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product, initialQuantity, lowStockThreshold int) (*domain.Inventory, error) {
	for _, existing := range m.products {
		if existing.Slug == product.Slug {
			return nil, repository.ErrProductSlugExists
		}
	}
	m.products[product.ID] = product

	inv := &domain.Inventory{
		ID:                uuid.New(),
		ProductID:         product.ID,
		Quantity:          initialQuantity,
		LowStockThreshold: lowStockThreshold,
		InStock:           initialQuantity > 0,
		IsVisible:         true,
	}
	m.inventories[product.ID] = inv

	if initialQuantity > 0 {
		m.logs = append(m.logs, &domain.InventoryLog{
			ID:          uuid.New(),
			InventoryID: inv.ID,
			Change:      initialQuantity,
			NewQuantity: initialQuantity,
			Reason:      domain.ReasonInitialStock,
		})
	}
	return inv, nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	delete(m.inventories, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepository) List(ctx context.Context, opts repository.ProductListOptions) ([]*domain.Product, int, error) {
	result := []*domain.Product{}
	for _, product := range m.products {
		result = append(result, product)
	}
	return result, len(result), nil
}

func (m *mockProductRepository) Count(ctx context.Context) (int, error) {
	return len(m.products), nil
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, existing := range m.categories {
		if existing.Name == category.Name || existing.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	result := []*domain.Category{}
	for _, category := range m.categories {
		result = append(result, category)
	}
	return result, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

func newTestCatalogService() (CatalogService, *mockProductRepository, *mockCategoryRepository, *invalidatorSpy) {
	productRepo := newMockProductRepository()
	categoryRepo := newMockCategoryRepository()
	spy := &invalidatorSpy{}
	return NewCatalogService(productRepo, categoryRepo, spy, zap.NewNop()), productRepo, categoryRepo, spy
}

func TestCreateProductSeedsInventoryAndAudit(t *testing.T) {
	svc, productRepo, _, spy := newTestCatalogService()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:              "Espresso Machine",
		Price:             decimal.NewFromFloat(249.99),
		InitialQuantity:   12,
		LowStockThreshold: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Slug != "espresso-machine" {
		t.Errorf("expected slug espresso-machine, got %s", product.Slug)
	}

	inv := productRepo.inventories[product.ID]
	if inv == nil || inv.Quantity != 12 || inv.LowStockThreshold != 3 {
		t.Fatalf("expected seeded inventory, got %+v", inv)
	}
	if len(productRepo.logs) != 1 {
		t.Fatalf("expected one initial_stock entry, got %d", len(productRepo.logs))
	}
	if productRepo.logs[0].Reason != domain.ReasonInitialStock || productRepo.logs[0].Change != 12 {
		t.Errorf("unexpected audit entry: %+v", productRepo.logs[0])
	}
	if spy.calls != 1 {
		t.Errorf("expected one report invalidation, got %d", spy.calls)
	}
}

func TestCreateProductZeroStockSkipsAudit(t *testing.T) {
	svc, productRepo, _, _ := newTestCatalogService()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Backordered Grinder",
		Price: decimal.NewFromInt(80),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(productRepo.logs) != 0 {
		t.Errorf("zero initial stock must not append an audit entry, got %d", len(productRepo.logs))
	}
	if got := productRepo.inventories[product.ID].LowStockThreshold; got != domain.DefaultLowStockThreshold {
		t.Errorf("expected default threshold %d, got %d", domain.DefaultLowStockThreshold, got)
	}
}

func TestCatalogServiceNilInvalidator(t *testing.T) {
	svc := NewCatalogService(newMockProductRepository(), newMockCategoryRepository(), nil, zap.NewNop())

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Uncached",
		Price: decimal.NewFromInt(15),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name := "Renamed"
	if _, err := svc.UpdateProduct(context.Background(), product.ID, UpdateProductInput{Name: &name}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeleteProduct(context.Background(), product.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	svc, _, _, _ := newTestCatalogService()

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Refund Trap",
		Price: decimal.NewFromInt(-1),
	})
	if !errors.Is(err, ErrBadPrice) {
		t.Fatalf("expected ErrBadPrice, got %v", err)
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	svc, _, _, _ := newTestCatalogService()

	missing := uuid.New()
	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:       "Orphan",
		Price:      decimal.NewFromInt(5),
		CategoryID: &missing,
	})
	if !errors.Is(err, repository.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestDeleteProductInvalidatesReports(t *testing.T) {
	svc, _, _, spy := newTestCatalogService()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Ephemeral",
		Price: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteProduct(context.Background(), product.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spy.calls != 2 {
		t.Errorf("expected invalidation on create and delete, got %d", spy.calls)
	}

	if err := svc.DeleteProduct(context.Background(), product.ID); !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on second delete, got %v", err)
	}
}

func TestCreateCategoryDerivesSlug(t *testing.T) {
	svc, _, _, _ := newTestCatalogService()

	category, err := svc.CreateCategory(context.Background(), "Kitchen & Dining", "cookware")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category.Slug != "kitchen-dining" {
		t.Errorf("expected slug kitchen-dining, got %s", category.Slug)
	}

	if _, err := svc.CreateCategory(context.Background(), "Kitchen & Dining", "dup"); !errors.Is(err, repository.ErrCategoryAlreadyExists) {
		t.Fatalf("expected ErrCategoryAlreadyExists, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Espresso Machine", "espresso-machine"},
		{"  Trimmed  ", "trimmed"},
		{"Ünicode Näme", "ünicode-näme"},
		{"100% Cotton T-Shirt", "100-cotton-t-shirt"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
