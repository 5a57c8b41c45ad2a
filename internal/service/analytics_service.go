package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"shopdesk/internal/cache"
	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrBadRange = errors.New("unknown analytics range")
)

var hundred = decimal.NewFromInt(100)

// Summary holds the headline window metrics with their period-over-period
// changes. Currency is rounded to 2 decimal places, percentages to 1.
type Summary struct {
	TotalRevenue        float64 `json:"totalRevenue"`
	RevenueChange       float64 `json:"revenueChange"`
	TotalOrders         int     `json:"totalOrders"`
	OrdersChange        float64 `json:"ordersChange"`
	AvgOrderValue       float64 `json:"avgOrderValue"`
	AvgOrderValueChange float64 `json:"avgOrderValueChange"`
}

// TrendPoint is one calendar day's summed order totals
type TrendPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// MarginPoint is one calendar day's profit margin percentage. Margin is
// computed independently per day, never cumulatively.
type MarginPoint struct {
	Date   string  `json:"date"`
	Margin float64 `json:"margin"`
}

// TopProduct is one entry of the revenue leaderboard
type TopProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Revenue   float64 `json:"revenue"`
}

// RecentOrder is an order serialized for the dashboard, decimal fields
// converted to plain numbers.
type RecentOrder struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	Status      string    `json:"status"`
	Subtotal    float64   `json:"subtotal"`
	Tax         float64   `json:"tax"`
	Discount    float64   `json:"discount"`
	Total       float64   `json:"total"`
	Customer    string    `json:"customer"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AnalyticsReport is the full response for one lookback window
type AnalyticsReport struct {
	Summary          Summary                      `json:"summary"`
	InventorySummary *repository.InventorySummary `json:"inventorySummary"`
	SalesTrend       []TrendPoint                 `json:"salesTrend"`
	ProfitTrend      []MarginPoint                `json:"profitTrend"`
	TopProducts      []TopProduct                 `json:"topProducts"`
	RecentOrders     []RecentOrder                `json:"recentOrders"`
}

// AnalyticsService defines the interface for revenue and trend aggregation
type AnalyticsService interface {
	Summarize(ctx context.Context, rangeName string) (*AnalyticsReport, error)
	InvalidateReports(ctx context.Context)
}

type analyticsService struct {
	orderRepo     repository.OrderRepository
	inventoryRepo repository.InventoryRepository
	store         cache.Store
	ttl           time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewAnalyticsService creates a new instance of AnalyticsService. The cache
// store may be nil, in which case every call recomputes the report.
func NewAnalyticsService(
	orderRepo repository.OrderRepository,
	inventoryRepo repository.InventoryRepository,
	store cache.Store,
	ttl time.Duration,
	logger *zap.Logger,
) AnalyticsService {
	return &analyticsService{
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
		store:         store,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

func rangeDays(rangeName string) (int, error) {
	switch rangeName {
	case "day":
		return 1, nil
	case "week", "":
		return 7, nil
	case "month":
		return 30, nil
	}
	return 0, ErrBadRange
}

// Summarize computes the analytics report for the last N calendar days with
// a comparison against the immediately preceding N calendar days. Money
// arithmetic stays decimal until the output boundary.
func (s *analyticsService) Summarize(ctx context.Context, rangeName string) (*AnalyticsReport, error) {
	days, err := rangeDays(rangeName)
	if err != nil {
		return nil, err
	}

	if report := s.cached(ctx, rangeName); report != nil {
		return report, nil
	}

	now := s.now()
	start := startOfDay(now).AddDate(0, 0, -(days - 1))
	prevStart := start.AddDate(0, 0, -days)

	// Primary window [start, now] is end-inclusive; the comparison window
	// [prevStart, start) is half-open so the boundary is never counted twice.
	orders, err := s.orderRepo.ListBetween(ctx, start, now)
	if err != nil {
		return nil, err
	}

	prevCount, prevRevenue, err := s.orderRepo.TotalsBetween(ctx, prevStart, start)
	if err != nil {
		return nil, err
	}

	inventorySummary, err := s.inventoryRepo.Summary(ctx)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{
		Summary:          summarize(orders, prevCount, prevRevenue),
		InventorySummary: inventorySummary,
		SalesTrend:       salesTrend(orders, start, days),
		ProfitTrend:      profitTrend(orders, start, days),
		TopProducts:      topProducts(orders, 5),
		RecentOrders:     recentOrders(orders, 5),
	}

	s.storeReport(ctx, rangeName, report)

	return report, nil
}

// InvalidateReports drops every cached report. Called after writes that
// change analytics inputs.
func (s *analyticsService) InvalidateReports(ctx context.Context) {
	if s.store == nil {
		return
	}
	for _, rangeName := range []string{"day", "week", "month"} {
		if err := s.store.Delete(ctx, reportCacheKey(rangeName)); err != nil {
			s.logger.Warn("Failed to invalidate cached report",
				zap.String("range", rangeName),
				zap.Error(err),
			)
		}
	}
}

func reportCacheKey(rangeName string) string {
	if rangeName == "" {
		rangeName = "week"
	}
	return "analytics:report:" + rangeName
}

func (s *analyticsService) cached(ctx context.Context, rangeName string) *AnalyticsReport {
	if s.store == nil {
		return nil
	}

	data, err := s.store.Get(ctx, reportCacheKey(rangeName))
	if err != nil {
		if err != cache.ErrMiss {
			s.logger.Warn("Report cache read failed", zap.Error(err))
		}
		return nil
	}

	report := &AnalyticsReport{}
	if err := json.Unmarshal(data, report); err != nil {
		s.logger.Warn("Dropping undecodable cached report", zap.Error(err))
		return nil
	}

	return report
}

func (s *analyticsService) storeReport(ctx context.Context, rangeName string, report *AnalyticsReport) {
	if s.store == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("Failed to encode report for cache", zap.Error(err))
		return
	}

	if err := s.store.Set(ctx, reportCacheKey(rangeName), data, s.ttl); err != nil {
		s.logger.Warn("Report cache write failed", zap.Error(err))
	}
}

// summarize computes the headline metrics and their changes versus the
// prior window. Change from a zero baseline is pinned to +100% when the
// current value is positive and 0% when both windows are empty.
func summarize(orders []*domain.Order, prevCount int, prevRevenue decimal.Decimal) Summary {
	totalRevenue := decimal.Zero
	for _, order := range orders {
		totalRevenue = totalRevenue.Add(order.Total)
	}

	totalOrders := len(orders)

	avgOrderValue := decimal.Zero
	if totalOrders > 0 {
		avgOrderValue = totalRevenue.Div(decimal.NewFromInt(int64(totalOrders)))
	}

	prevAvg := decimal.Zero
	if prevCount > 0 {
		prevAvg = prevRevenue.Div(decimal.NewFromInt(int64(prevCount)))
	}

	return Summary{
		TotalRevenue:        round2(totalRevenue),
		RevenueChange:       pctChange(totalRevenue, prevRevenue),
		TotalOrders:         totalOrders,
		OrdersChange:        pctChange(decimal.NewFromInt(int64(totalOrders)), decimal.NewFromInt(int64(prevCount))),
		AvgOrderValue:       round2(avgOrderValue),
		AvgOrderValueChange: pctChange(avgOrderValue, prevAvg),
	}
}

// salesTrend fills one entry per calendar day, ascending, with zero for days
// that had no orders.
func salesTrend(orders []*domain.Order, start time.Time, days int) []TrendPoint {
	totals := make([]decimal.Decimal, days)
	for i := range totals {
		totals[i] = decimal.Zero
	}

	for _, order := range orders {
		if i, ok := dayIndex(order.CreatedAt, start, days); ok {
			totals[i] = totals[i].Add(order.Total)
		}
	}

	trend := make([]TrendPoint, days)
	for i := range trend {
		trend[i] = TrendPoint{
			Date:  start.AddDate(0, 0, i).Format(time.RFC3339),
			Total: round2(totals[i]),
		}
	}
	return trend
}

// profitTrend computes an independent per-day margin percentage from item
// revenue and cost. Missing cost prices count as zero cost.
func profitTrend(orders []*domain.Order, start time.Time, days int) []MarginPoint {
	revenue := make([]decimal.Decimal, days)
	cost := make([]decimal.Decimal, days)
	for i := 0; i < days; i++ {
		revenue[i] = decimal.Zero
		cost[i] = decimal.Zero
	}

	for _, order := range orders {
		i, ok := dayIndex(order.CreatedAt, start, days)
		if !ok {
			continue
		}
		for _, item := range order.Items {
			qty := decimal.NewFromInt(int64(item.Quantity))
			revenue[i] = revenue[i].Add(item.Price.Mul(qty))
			if item.Product != nil && item.Product.CostPrice != nil {
				cost[i] = cost[i].Add(item.Product.CostPrice.Mul(qty))
			}
		}
	}

	trend := make([]MarginPoint, days)
	for i := range trend {
		margin := decimal.Zero
		if revenue[i].IsPositive() {
			margin = revenue[i].Sub(cost[i]).Div(revenue[i]).Mul(hundred)
		}
		trend[i] = MarginPoint{
			Date:   start.AddDate(0, 0, i).Format(time.RFC3339),
			Margin: round1(margin),
		}
	}
	return trend
}

// topProducts accumulates revenue per product across the window and returns
// the top n by revenue, descending.
func topProducts(orders []*domain.Order, n int) []TopProduct {
	type bucket struct {
		name    string
		revenue decimal.Decimal
	}
	buckets := map[string]*bucket{}
	order := []string{}

	for _, o := range orders {
		for _, item := range o.Items {
			id := item.ProductID.String()
			b, ok := buckets[id]
			if !ok {
				name := ""
				if item.Product != nil {
					name = item.Product.Name
				}
				b = &bucket{name: name, revenue: decimal.Zero}
				buckets[id] = b
				order = append(order, id)
			}
			b.revenue = b.revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	top := make([]TopProduct, 0, len(order))
	for _, id := range order {
		top = append(top, TopProduct{
			ProductID: id,
			Name:      buckets[id].name,
			Revenue:   round2(buckets[id].revenue),
		})
	}

	sort.Slice(top, func(i, j int) bool { return top[i].Revenue > top[j].Revenue })

	if len(top) > n {
		top = top[:n]
	}
	return top
}

// recentOrders serializes the newest n orders in the window. Orders arrive
// from the repository newest first.
func recentOrders(orders []*domain.Order, n int) []RecentOrder {
	if len(orders) > n {
		orders = orders[:n]
	}

	recent := make([]RecentOrder, 0, len(orders))
	for _, order := range orders {
		customer := "Guest"
		if order.User != nil {
			if order.User.Username != "" {
				customer = order.User.Username
			} else if order.User.Email != "" {
				customer = order.User.Email
			}
		}
		recent = append(recent, RecentOrder{
			ID:          order.ID.String(),
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			Subtotal:    round2(order.Subtotal),
			Tax:         round2(order.Tax),
			Discount:    round2(order.Discount),
			Total:       round2(order.Total),
			Customer:    customer,
			CreatedAt:   order.CreatedAt,
		})
	}
	return recent
}

// pctChange computes (current-previous)/previous*100 rounded to 1 decimal
// place, with the zero-baseline policy: +100 when previous is zero and
// current is positive, 0 when both are zero.
func pctChange(current, previous decimal.Decimal) float64 {
	if previous.IsPositive() {
		return round1(current.Sub(previous).Div(previous).Mul(hundred))
	}
	if current.IsPositive() {
		return 100
	}
	return 0
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func round1(d decimal.Decimal) float64 {
	f, _ := d.Round(1).Float64()
	return f
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayIndex maps a timestamp to its calendar-day offset from start,
// reporting false when it falls outside the window.
func dayIndex(t time.Time, start time.Time, days int) (int, bool) {
	local := t.In(start.Location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, start.Location())
	i := int(day.Sub(start).Hours() / 24)
	if i < 0 || i >= days {
		return 0, false
	}
	return i, true
}
