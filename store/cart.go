package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"shop/models"
)

// AddToCart increments the quantity of item in the user's cart by one,
// creating the entry when absent.
func (s *Store) AddToCart(ctx context.Context, username string, itemID int64) error {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return err
	}

	query, args, err := s.qb.Insert("cart_entries").
		Columns("user_id", "item_id", "quantity").
		Values(username, itemID, 1).
		Suffix("ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_entries.quantity + 1").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert cart entry: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert cart entry: %w", err)
	}
	return nil
}

// RemoveFromCart deletes the entry whatever its quantity.
func (s *Store) RemoveFromCart(ctx context.Context, username string, itemID int64) error {
	query, args, err := s.qb.Delete("cart_entries").
		Where(squirrel.Eq{"user_id": username, "item_id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete cart entry: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete cart entry: %w", err)
	}
	return expectAffected(res)
}

func (s *Store) Cart(ctx context.Context, username string) (models.Cart, error) {
	lines, err := s.cartLines(ctx, s.db, username)
	if err != nil {
		return models.Cart{}, err
	}
	return models.Cart{Lines: lines, Total: cartTotal(lines)}, nil
}

func (s *Store) cartLines(ctx context.Context, q sqlx.QueryerContext, username string) ([]models.CartLine, error) {
	query, args, err := s.qb.Select("i.item_id", "i.name", "i.price", "c.quantity").
		From("cart_entries c").
		Join("items i ON i.item_id = c.item_id").
		Where(squirrel.Eq{"c.user_id": username}).
		OrderBy("i.item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select cart: %w", err)
	}

	lines := []models.CartLine{}
	if err := sqlx.SelectContext(ctx, q, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	return lines, nil
}

func cartTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
