package service

import (
	"context"
	"time"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"go.uber.org/zap"
)

// RevenueStats holds realized revenue for the dashboard's two windows
type RevenueStats struct {
	Today float64 `json:"today"`
	Week  float64 `json:"week"`
}

// OverviewStats holds all-time totals
type OverviewStats struct {
	TotalUsers        int `json:"totalUsers"`
	TotalOrders       int `json:"totalOrders"`
	TotalProducts     int `json:"totalProducts"`
	LowInventoryCount int `json:"lowInventoryCount"`
}

// WeeklyStats holds rolling seven-day counters
type WeeklyStats struct {
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
	Users   int     `json:"users"`
}

// RecentOrderStat is one row of the dashboard's recent-orders widget
type RecentOrderStat struct {
	ID        string    `json:"id"`
	Total     float64   `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Customer  string    `json:"customer"`
}

// RecentUserStat is one row of the dashboard's recent-registrations widget
type RecentUserStat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DashboardStats is the admin landing-page payload
type DashboardStats struct {
	TotalActivities int           `json:"totalActivities"`
	Revenue         RevenueStats  `json:"revenue"`
	NewUsersToday   int           `json:"newUsersToday"`
	OrdersToday     int           `json:"ordersToday"`
	Overview        OverviewStats `json:"overview"`
	Weekly          WeeklyStats   `json:"weekly"`
	Recent          struct {
		Orders []RecentOrderStat `json:"orders"`
		Users  []RecentUserStat  `json:"users"`
	} `json:"recent"`
}

// StatsService defines the interface for dashboard statistics
type StatsService interface {
	Dashboard(ctx context.Context) (*DashboardStats, error)
}

type statsService struct {
	orderRepo     repository.OrderRepository
	userRepo      repository.UserRepository
	reviewRepo    repository.ReviewRepository
	inventoryRepo repository.InventoryRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewStatsService creates a new instance of StatsService
func NewStatsService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	reviewRepo repository.ReviewRepository,
	inventoryRepo repository.InventoryRepository,
	logger *zap.Logger,
) StatsService {
	return &statsService{
		orderRepo:     orderRepo,
		userRepo:      userRepo,
		reviewRepo:    reviewRepo,
		inventoryRepo: inventoryRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// Dashboard assembles the admin landing-page statistics. Revenue counts
// only orders in a realized status; all other counters include every order.
func (s *statsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekAgo := now.AddDate(0, 0, -7)

	totalOrders, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalReviews, err := s.reviewRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	lowInventory, err := s.inventoryRepo.CountAtOrBelow(ctx, LowStockAlertQuantity)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalActivities: totalOrders + totalUsers + totalReviews + lowInventory,
	}

	revenueToday, err := s.orderRepo.RevenueBetween(ctx, dayStart, dayEnd, domain.RevenueStatuses)
	if err != nil {
		return nil, err
	}
	revenueWeek, err := s.orderRepo.RevenueBetween(ctx, weekAgo, now, domain.RevenueStatuses)
	if err != nil {
		return nil, err
	}
	stats.Revenue = RevenueStats{
		Today: round2(revenueToday),
		Week:  round2(revenueWeek),
	}

	stats.NewUsersToday, err = s.userRepo.CountBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	stats.OrdersToday, err = s.orderRepo.CountBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	totalProducts, err := s.inventoryRepo.Summary(ctx)
	if err != nil {
		return nil, err
	}
	stats.Overview = OverviewStats{
		TotalUsers:        totalUsers,
		TotalOrders:       totalOrders,
		TotalProducts:     totalProducts.TotalProducts,
		LowInventoryCount: lowInventory,
	}

	weeklyOrders, err := s.orderRepo.CountBetween(ctx, weekAgo, now)
	if err != nil {
		return nil, err
	}
	weeklyUsers, err := s.userRepo.CountBetween(ctx, weekAgo, now)
	if err != nil {
		return nil, err
	}
	stats.Weekly = WeeklyStats{
		Revenue: round2(revenueWeek),
		Orders:  weeklyOrders,
		Users:   weeklyUsers,
	}

	recentOrders, err := s.orderRepo.ListRecent(ctx, nil, nil, 5)
	if err != nil {
		return nil, err
	}
	for _, order := range recentOrders {
		customer := "Guest"
		if order.User != nil {
			if order.User.Username != "" {
				customer = order.User.Username
			} else if order.User.Email != "" {
				customer = order.User.Email
			}
		}
		stats.Recent.Orders = append(stats.Recent.Orders, RecentOrderStat{
			ID:        order.ID.String(),
			Total:     round2(order.Total),
			Status:    order.Status,
			CreatedAt: order.CreatedAt,
			Customer:  customer,
		})
	}

	recentUsers, err := s.userRepo.ListRecent(ctx, nil, nil, 5)
	if err != nil {
		return nil, err
	}
	for _, user := range recentUsers {
		name := user.Username
		if name == "" {
			name = user.Email
		}
		stats.Recent.Users = append(stats.Recent.Users, RecentUserStat{
			ID:        user.ID.String(),
			Name:      name,
			CreatedAt: user.CreatedAt,
		})
	}

	return stats, nil
}
