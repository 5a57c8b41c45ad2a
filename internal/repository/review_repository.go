package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shopdesk/internal/domain"
)

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Review, error)
	Count(ctx context.Context) (int, error)
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create inserts a new review using parameterized queries
func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, content, is_verified, is_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.ProductID,
		review.UserID,
		review.Rating,
		review.Content,
		review.IsVerified,
		review.IsApproved,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// ListRecent retrieves the newest reviews with their user and product
// summaries, optionally bounded to a creation date range.
func (r *reviewRepository) ListRecent(ctx context.Context, start, end *time.Time, limit int) ([]*domain.Review, error) {
	query := `
		SELECT rv.id, rv.product_id, rv.user_id, rv.rating, rv.content,
		       rv.is_verified, rv.is_approved, rv.created_at,
		       u.username, u.email, p.name
		FROM reviews rv
		JOIN users u ON u.id = rv.user_id
		JOIN products p ON p.id = rv.product_id
	`
	args := []interface{}{}

	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" WHERE rv.created_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		if start == nil {
			query += fmt.Sprintf(" WHERE rv.created_at < $%d", len(args))
		} else {
			query += fmt.Sprintf(" AND rv.created_at < $%d", len(args))
		}
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY rv.created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review := &domain.Review{
			User:    &domain.User{},
			Product: &domain.Product{},
		}
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.Rating,
			&review.Content,
			&review.IsVerified,
			&review.IsApproved,
			&review.CreatedAt,
			&review.User.Username,
			&review.User.Email,
			&review.Product.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		review.User.ID = review.UserID
		review.Product.ID = review.ProductID
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent reviews: %w", err)
	}

	return reviews, nil
}

// Count counts all reviews
func (r *reviewRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}
