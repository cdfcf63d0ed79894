package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"shop/models"
)

var itemColumns = []string{"item_id", "name", "price", "description"}

func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	return s.selectItems(ctx, s.qb.Select(itemColumns...).From("items").OrderBy("item_id"))
}

// SearchItems matches query as a substring of the item name using the
// store's LIKE semantics.
func (s *Store) SearchItems(ctx context.Context, query string) ([]models.Item, error) {
	return s.selectItems(ctx, s.qb.Select(itemColumns...).
		From("items").
		Where(squirrel.Like{"name": "%" + query + "%"}).
		OrderBy("item_id"))
}

func (s *Store) selectItems(ctx context.Context, builder squirrel.SelectBuilder) ([]models.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select items: %w", err)
	}

	items := []models.Item{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (models.Item, error) {
	query, args, err := s.qb.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"item_id": id}).
		ToSql()
	if err != nil {
		return models.Item{}, fmt.Errorf("build select item: %w", err)
	}

	var item models.Item
	if err := s.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Item{}, ErrNotFound
		}
		return models.Item{}, fmt.Errorf("select item: %w", err)
	}
	return item, nil
}

// ItemDetail returns one item together with its reviews.
func (s *Store) ItemDetail(ctx context.Context, id int64) (models.ItemDetail, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return models.ItemDetail{}, err
	}
	reviews, err := s.ListReviews(ctx, id)
	if err != nil {
		return models.ItemDetail{}, err
	}
	return models.ItemDetail{Item: item, Reviews: reviews}, nil
}

func (s *Store) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	query, args, err := s.qb.Insert("items").
		Columns("name", "price", "description").
		Values(item.Name, item.Price, item.Description).
		Suffix("RETURNING item_id").
		ToSql()
	if err != nil {
		return models.Item{}, fmt.Errorf("build insert item: %w", err)
	}

	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&item.ID); err != nil {
		return models.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item models.Item) error {
	query, args, err := s.qb.Update("items").
		Set("name", item.Name).
		Set("price", item.Price).
		Set("description", item.Description).
		Where(squirrel.Eq{"item_id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update item: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectAffected(res)
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	query, args, err := s.qb.Delete("items").Where(squirrel.Eq{"item_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete item: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
