package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"shop/models"
)

func (s *Store) ListReviews(ctx context.Context, itemID int64) ([]models.Review, error) {
	query, args, err := s.qb.Select("review_id", "item_id", "user_id", "rating", "review", "created_at").
		From("reviews").
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("review_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reviews: %w", err)
	}

	reviews := []models.Review{}
	if err := s.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return reviews, nil
}

// AddReview validates the rating and persists the review for an existing item.
func (s *Store) AddReview(ctx context.Context, review models.Review) (models.Review, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return models.Review{}, ErrInvalidRating
	}
	if _, err := s.GetItem(ctx, review.ItemID); err != nil {
		return models.Review{}, err
	}
	review.CreatedAt = s.now()

	query, args, err := s.qb.Insert("reviews").
		Columns("item_id", "user_id", "rating", "review", "created_at").
		Values(review.ItemID, review.UserID, review.Rating, review.Text, review.CreatedAt).
		Suffix("RETURNING review_id").
		ToSql()
	if err != nil {
		return models.Review{}, fmt.Errorf("build insert review: %w", err)
	}

	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&review.ID); err != nil {
		return models.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

// ReviewableItems lists the distinct items the user has ordered.
func (s *Store) ReviewableItems(ctx context.Context, username string) ([]models.OrderedItem, error) {
	query, args, err := s.qb.Select("i.item_id", "i.name").
		Distinct().
		From("order_items oi").
		Join("items i ON i.item_id = oi.item_id").
		Join("orders o ON o.order_id = oi.order_id").
		Where(squirrel.Eq{"o.user_id": username}).
		OrderBy("i.item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reviewable items: %w", err)
	}

	items := []models.OrderedItem{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select reviewable items: %w", err)
	}
	return items, nil
}
