package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Activity types
const (
	ActivityOrderCreated    = "order_created"
	ActivityUserRegistered  = "user_registered"
	ActivityReviewSubmitted = "review_submitted"
	ActivityInventoryLow    = "inventory_low"
)

// LowStockAlertQuantity is the fixed cutoff for system-generated low-stock
// feed events. It is independent of each item's own low_stock_threshold.
const LowStockAlertQuantity = 10

var (
	ErrBadActivityType = errors.New("unknown activity type filter")
	ErrBadTimeFilter   = errors.New("unknown time filter")
)

// Activity is one normalized feed entry. User is nil for system-generated
// events such as low-stock alerts.
type Activity struct {
	ID          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"createdAt"`
	User        *ActivityUser          `json:"user"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// ActivityUser is the actor summary attached to a feed entry
type ActivityUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// ActivityPage is one page of the merged feed. Total counts the merged,
// per-kind-capped set, so pagination metadata is approximate under the
// "all" filter.
type ActivityPage struct {
	Data       []Activity `json:"data"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// ActivityService merges recent domain events from independent sources into
// one reverse-chronological feed.
type ActivityService interface {
	ListActivities(ctx context.Context, typeFilter, timeFilter string, page, pageSize int) (*ActivityPage, error)
}

type activityService struct {
	orderRepo     repository.OrderRepository
	userRepo      repository.UserRepository
	reviewRepo    repository.ReviewRepository
	inventoryRepo repository.InventoryRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewActivityService creates a new instance of ActivityService
func NewActivityService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	reviewRepo repository.ReviewRepository,
	inventoryRepo repository.InventoryRepository,
	logger *zap.Logger,
) ActivityService {
	return &activityService{
		orderRepo:     orderRepo,
		userRepo:      userRepo,
		reviewRepo:    reviewRepo,
		inventoryRepo: inventoryRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// timeRange translates a named filter into an absolute [start, end) range.
// today and yesterday are fixed calendar days; week and month are rolling
// lookbacks from now. A nil bound means unbounded.
func (s *activityService) timeRange(timeFilter string) (start, end *time.Time, err error) {
	now := s.now()

	switch timeFilter {
	case "today", "":
		from := startOfDay(now)
		return &from, nil, nil
	case "yesterday":
		to := startOfDay(now)
		from := to.AddDate(0, 0, -1)
		return &from, &to, nil
	case "week":
		from := now.AddDate(0, 0, -7)
		return &from, nil, nil
	case "month":
		from := now.AddDate(0, 0, -30)
		return &from, nil, nil
	case "all":
		return nil, nil, nil
	}
	return nil, nil, ErrBadTimeFilter
}

// ListActivities merges the selected event kinds, each fetched newest-first
// and capped per kind, then globally sorts and slices the page. With four
// kinds merged, each source is capped at ceil(pageSize/4) before the merge,
// so an "all" page can hold fewer than pageSize items even when more exist.
func (s *activityService) ListActivities(ctx context.Context, typeFilter, timeFilter string, page, pageSize int) (*ActivityPage, error) {
	if typeFilter == "" {
		typeFilter = "all"
	}
	switch typeFilter {
	case "all", ActivityOrderCreated, ActivityUserRegistered, ActivityReviewSubmitted, ActivityInventoryLow:
	default:
		return nil, ErrBadActivityType
	}

	start, end, err := s.timeRange(timeFilter)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	perKind := pageSize
	if typeFilter == "all" {
		perKind = (pageSize + 3) / 4
	}

	activities := []Activity{}

	if typeFilter == "all" || typeFilter == ActivityOrderCreated {
		orders, err := s.orderRepo.ListRecent(ctx, start, end, perKind)
		if err != nil {
			return nil, err
		}
		for _, order := range orders {
			activities = append(activities, orderActivity(order))
		}
	}

	if typeFilter == "all" || typeFilter == ActivityUserRegistered {
		users, err := s.userRepo.ListRecent(ctx, start, end, perKind)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			activities = append(activities, userActivity(user))
		}
	}

	if typeFilter == "all" || typeFilter == ActivityReviewSubmitted {
		reviews, err := s.reviewRepo.ListRecent(ctx, start, end, perKind)
		if err != nil {
			return nil, err
		}
		for _, review := range reviews {
			activities = append(activities, reviewActivity(review))
		}
	}

	if typeFilter == "all" || typeFilter == ActivityInventoryLow {
		lowStock, err := s.inventoryRepo.ListLowStock(ctx, LowStockAlertQuantity, start, end, perKind)
		if err != nil {
			return nil, err
		}
		for _, inv := range lowStock {
			activities = append(activities, inventoryActivity(inv))
		}
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})

	total := len(activities)
	from := (page - 1) * pageSize
	if from > total {
		from = total
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	return &ActivityPage{
		Data:       activities[from:to],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func orderActivity(order *domain.Order) Activity {
	activity := Activity{
		ID:          order.ID,
		Type:        ActivityOrderCreated,
		Description: fmt.Sprintf("New order #%s created - $%.2f", order.OrderNumber, round2(order.Total)),
		CreatedAt:   order.CreatedAt,
		Metadata: map[string]interface{}{
			"orderId": order.ID.String(),
			"total":   round2(order.Total),
			"status":  order.Status,
		},
	}
	if order.User != nil {
		activity.User = &ActivityUser{
			ID:       order.User.ID,
			Username: order.User.Username,
			Email:    order.User.Email,
		}
	}
	return activity
}

func userActivity(user *domain.User) Activity {
	name := user.Username
	if name == "" {
		name = user.Email
	}
	return Activity{
		ID:          user.ID,
		Type:        ActivityUserRegistered,
		Description: fmt.Sprintf("New user registered: %s", name),
		CreatedAt:   user.CreatedAt,
		User: &ActivityUser{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
		Metadata: map[string]interface{}{
			"userId": user.ID.String(),
			"role":   user.Role,
		},
	}
}

func reviewActivity(review *domain.Review) Activity {
	productName := "product"
	if review.Product != nil && review.Product.Name != "" {
		productName = review.Product.Name
	}
	activity := Activity{
		ID:          review.ID,
		Type:        ActivityReviewSubmitted,
		Description: fmt.Sprintf("New %d-star review for %s", review.Rating, productName),
		CreatedAt:   review.CreatedAt,
		Metadata: map[string]interface{}{
			"reviewId":  review.ID.String(),
			"rating":    review.Rating,
			"productId": review.ProductID.String(),
		},
	}
	if review.User != nil {
		activity.User = &ActivityUser{
			ID:       review.User.ID,
			Username: review.User.Username,
			Email:    review.User.Email,
		}
	}
	return activity
}

func inventoryActivity(inv *domain.Inventory) Activity {
	productName := "Unknown Product"
	if inv.Product != nil && inv.Product.Name != "" {
		productName = inv.Product.Name
	}
	return Activity{
		ID:          inv.ID,
		Type:        ActivityInventoryLow,
		Description: fmt.Sprintf("Low inventory alert: %s (%d remaining)", productName, inv.Quantity),
		CreatedAt:   inv.UpdatedAt,
		User:        nil, // system generated
		Metadata: map[string]interface{}{
			"inventoryId": inv.ID.String(),
			"productId":   inv.ProductID.String(),
			"quantity":    inv.Quantity,
		},
	}
}
