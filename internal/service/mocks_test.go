package service

import (
	"context"
	"sort"
	"time"

	"shopdesk/internal/cache"
	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory repository fakes shared by the service tests. They reproduce the
// same observable behavior as the SQL implementations: clamped adjustments,
// newest-first listings, and half-open [start, end) time ranges.

type mockInventoryRepository struct {
	records map[uuid.UUID]*domain.Inventory
	logs    map[uuid.UUID][]*domain.InventoryLog
}

func newMockInventoryRepository() *mockInventoryRepository {
	return &mockInventoryRepository{
		records: make(map[uuid.UUID]*domain.Inventory),
		logs:    make(map[uuid.UUID][]*domain.InventoryLog),
	}
}

func (m *mockInventoryRepository) add(inv *domain.Inventory) {
	inv.InStock = inv.Quantity > 0
	m.records[inv.ID] = inv
}

func (m *mockInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Inventory, error) {
	inv, ok := m.records[id]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	inv.InStock = inv.Quantity > 0
	return inv, nil
}

func (m *mockInventoryRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (*domain.Inventory, error) {
	for _, inv := range m.records {
		if inv.ProductID == productID {
			inv.InStock = inv.Quantity > 0
			return inv, nil
		}
	}
	return nil, repository.ErrInventoryNotFound
}

func (m *mockInventoryRepository) List(ctx context.Context, filter repository.StockFilter) ([]*domain.Inventory, error) {
	result := []*domain.Inventory{}
	for _, inv := range m.records {
		inv.InStock = inv.Quantity > 0
		switch filter {
		case repository.StockFilterLow:
			if !inv.LowStock() {
				continue
			}
		case repository.StockFilterOut:
			if inv.Quantity > 0 {
				continue
			}
		}
		result = append(result, inv)
	}
	return result, nil
}

func (m *mockInventoryRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, change int, reason string, notes string, threshold *int) (*domain.Inventory, *domain.InventoryLog, error) {
	inv, ok := m.records[id]
	if !ok {
		return nil, nil, repository.ErrInventoryNotFound
	}

	newQuantity := inv.Quantity + change
	if newQuantity < 0 {
		newQuantity = 0
	}
	inv.Quantity = newQuantity
	inv.InStock = newQuantity > 0
	inv.UpdatedAt = time.Now()
	if threshold != nil {
		inv.LowStockThreshold = *threshold
	}

	log := &domain.InventoryLog{
		ID:          uuid.New(),
		InventoryID: id,
		Change:      change,
		NewQuantity: newQuantity,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if notes != "" {
		log.Metadata = map[string]string{"notes": notes}
	}
	m.logs[id] = append([]*domain.InventoryLog{log}, m.logs[id]...)

	return inv, log, nil
}

func (m *mockInventoryRepository) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (*domain.Inventory, error) {
	inv, ok := m.records[id]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	inv.IsVisible = visible
	inv.InStock = inv.Quantity > 0
	return inv, nil
}

func (m *mockInventoryRepository) ListLogs(ctx context.Context, id uuid.UUID, limit int) ([]*domain.InventoryLog, error) {
	if _, ok := m.records[id]; !ok {
		return nil, repository.ErrInventoryNotFound
	}
	logs := m.logs[id]
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (m *mockInventoryRepository) Summary(ctx context.Context) (*repository.InventorySummary, error) {
	summary := &repository.InventorySummary{}
	for _, inv := range m.records {
		summary.TotalProducts++
		if inv.Quantity > 0 {
			summary.InStock++
		} else {
			summary.OutOfStock++
		}
		if inv.LowStock() {
			summary.LowStock++
		}
	}
	return summary, nil
}

func (m *mockInventoryRepository) ListLowStock(ctx context.Context, maxQuantity int, start, end *time.Time, limit int) ([]*domain.Inventory, error) {
	result := []*domain.Inventory{}
	for _, inv := range m.records {
		if inv.Quantity > maxQuantity {
			continue
		}
		if start != nil && inv.UpdatedAt.Before(*start) {
			continue
		}
		if end != nil && !inv.UpdatedAt.Before(*end) {
			continue
		}
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockInventoryRepository) CountAtOrBelow(ctx context.Context, quantity int) (int, error) {
	count := 0
	for _, inv := range m.records {
		if inv.Quantity <= quantity {
			count++
		}
	}
	return count, nil
}

type mockOrderRepository struct {
	orders []*domain.Order
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	for _, order := range m.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) between(start, end time.Time, includeEnd bool) []*domain.Order {
	result := []*domain.Order{}
	for _, order := range m.orders {
		if order.CreatedAt.Before(start) {
			continue
		}
		if order.CreatedAt.After(end) || (!includeEnd && order.CreatedAt.Equal(end)) {
			continue
		}
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// ListBetween mirrors the repository's inclusive end bound.
func (m *mockOrderRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	return m.between(start, end, true), nil
}

func (m *mockOrderRepository) TotalsBetween(ctx context.Context, start, end time.Time) (int, decimal.Decimal, error) {
	total := decimal.Zero
	orders := m.between(start, end, false)
	for _, order := range orders {
		total = total.Add(order.Total)
	}
	return len(orders), total, nil
}

func (m *mockOrderRepository) RevenueBetween(ctx context.Context, start, end time.Time, statuses []string) (decimal.Decimal, error) {
	allowed := map[string]bool{}
	for _, status := range statuses {
		allowed[status] = true
	}
	total := decimal.Zero
	for _, order := range m.between(start, end, false) {
		if allowed[order.Status] {
			total = total.Add(order.Total)
		}
	}
	return total, nil
}

func (m *mockOrderRepository) CountBetween(ctx context.Context, start, end time.Time) (int, error) {
	return len(m.between(start, end, false)), nil
}

func (m *mockOrderRepository) Count(ctx context.Context) (int, error) {
	return len(m.orders), nil
}

func (m *mockOrderRepository) ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Order, error) {
	result := []*domain.Order{}
	for _, order := range m.orders {
		if start != nil && order.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && !order.CreatedAt.Before(*end) {
			continue
		}
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	for email, existing := range m.users {
		if existing.ID == user.ID {
			if email != user.Email {
				if _, exists := m.users[user.Email]; exists {
					return repository.ErrUserAlreadyExists
				}
				delete(m.users, email)
			}
			m.users[user.Email] = user
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	for _, user := range m.users {
		if user.ID == id {
			user.IsActive = false
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context, activeOnly bool) ([]*domain.User, error) {
	result := []*domain.User{}
	for _, user := range m.users {
		if activeOnly && !user.IsActive {
			continue
		}
		result = append(result, user)
	}
	return result, nil
}

func (m *mockUserRepository) ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.User, error) {
	result := []*domain.User{}
	for _, user := range m.users {
		if start != nil && user.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && !user.CreatedAt.Before(*end) {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockUserRepository) CountBetween(ctx context.Context, start, end time.Time) (int, error) {
	count := 0
	for _, user := range m.users {
		if !user.CreatedAt.Before(start) && user.CreatedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

func (m *mockUserRepository) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type mockReviewRepository struct {
	reviews []*domain.Review
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviewRepository) ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Review, error) {
	result := []*domain.Review{}
	for _, review := range m.reviews {
		if start != nil && review.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && !review.CreatedAt.Before(*end) {
			continue
		}
		result = append(result, review)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockReviewRepository) Count(ctx context.Context) (int, error) {
	return len(m.reviews), nil
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var deleted int64
	now := time.Now()
	for key, token := range m.tokens {
		if now.After(token.ExpiresAt) {
			delete(m.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

// memoryStore is an in-process cache.Store for tests
type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return data, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.data[key] = value
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// invalidatorSpy counts report invalidations
type invalidatorSpy struct {
	calls int
}

func (s *invalidatorSpy) InvalidateReports(ctx context.Context) {
	s.calls++
}
