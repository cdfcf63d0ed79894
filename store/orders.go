package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"shop/database"
	"shop/models"
)

// NewOrderID returns an unguessable order identifier: a random (v4) UUID
// without dashes.
func NewOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Checkout turns the user's cart into an order. Reading the cart, writing the
// order with its items and clearing the cart happen in one transaction.
func (s *Store) Checkout(ctx context.Context, username, address, phone string) (models.OrderDetail, error) {
	return s.checkoutWithID(ctx, NewOrderID(), username, address, phone)
}

func (s *Store) checkoutWithID(ctx context.Context, orderID, username, address, phone string) (models.OrderDetail, error) {
	order := models.OrderDetail{
		Order: models.Order{
			ID:              orderID,
			UserID:          username,
			ShippingAddress: address,
			Phone:           phone,
			CreatedAt:       s.now(),
		},
	}

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		lines, err := s.cartLines(ctx, tx, username)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		query, args, err := s.qb.Insert("orders").
			Columns("order_id", "user_id", "shipping_address", "phone", "created_at").
			Values(order.ID, order.UserID, order.ShippingAddress, order.Phone, order.CreatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		insertItems := s.qb.Insert("order_items").Columns("order_id", "item_id", "quantity", "price")
		for _, line := range lines {
			insertItems = insertItems.Values(order.ID, line.ItemID, line.Quantity, line.Price)
			order.Items = append(order.Items, models.OrderItem{
				OrderID:  order.ID,
				ItemID:   line.ItemID,
				Name:     line.Name,
				Quantity: line.Quantity,
				Price:    line.Price,
			})
		}
		query, args, err = insertItems.ToSql()
		if err != nil {
			return fmt.Errorf("build insert order items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if err := s.clearCartLines(ctx, tx, username, lines); err != nil {
			return err
		}

		order.Total = cartTotal(lines)
		return nil
	})
	if err != nil {
		return models.OrderDetail{}, err
	}
	return order, nil
}

// clearCartLines deletes only the entries that were ordered, so an item added
// while the order was being written stays in the cart.
func (s *Store) clearCartLines(ctx context.Context, tx *sqlx.Tx, username string, lines []models.CartLine) error {
	itemIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		itemIDs = append(itemIDs, line.ItemID)
	}

	query, args, err := s.qb.Delete("cart_entries").
		Where(squirrel.Eq{"user_id": username, "item_id": itemIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear cart: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// SetPaymentSession records the hosted payment session created for an order.
func (s *Store) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	query, args, err := s.qb.Update("orders").
		Set("payment_session_id", sessionID).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update order: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return expectAffected(res)
}

func (s *Store) ordersQuery() squirrel.SelectBuilder {
	return s.qb.Select(
		"o.order_id",
		"o.user_id",
		"o.shipping_address",
		"o.phone",
		"o.created_at",
		"o.payment_session_id",
	).
		From("orders o")
}

// ListOrders returns the user's orders, newest first, with totals computed
// from the prices paid. Totals are summed here rather than in SQL because
// SQLite stores prices as floating point.
func (s *Store) ListOrders(ctx context.Context, username string) ([]models.Order, error) {
	query, args, err := s.ordersQuery().
		Where(squirrel.Eq{"o.user_id": username}).
		OrderBy("o.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select orders: %w", err)
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	query, args, err = s.qb.Select("oi.order_id", "oi.item_id", "oi.quantity", "oi.price").
		From("order_items oi").
		Join("orders o ON o.order_id = oi.order_id").
		Where(squirrel.Eq{"o.user_id": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order items: %w", err)
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}

	totals := make(map[string]decimal.Decimal, len(orders))
	for _, item := range items {
		totals[item.OrderID] = totals[item.OrderID].Add(item.Subtotal())
	}
	for i := range orders {
		orders[i].Total = totals[orders[i].ID]
	}
	return orders, nil
}

// GetOrder returns one of the user's orders with its items. Orders belonging
// to someone else are reported as ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, username, orderID string) (models.OrderDetail, error) {
	query, args, err := s.ordersQuery().
		Where(squirrel.Eq{"o.user_id": username, "o.order_id": orderID}).
		ToSql()
	if err != nil {
		return models.OrderDetail{}, fmt.Errorf("build select order: %w", err)
	}

	var detail models.OrderDetail
	if err := s.db.GetContext(ctx, &detail.Order, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OrderDetail{}, ErrNotFound
		}
		return models.OrderDetail{}, fmt.Errorf("select order: %w", err)
	}

	query, args, err = s.qb.Select("oi.order_id", "oi.item_id", "COALESCE(i.name, '') AS name", "oi.quantity", "oi.price").
		From("order_items oi").
		LeftJoin("items i ON i.item_id = oi.item_id").
		Where(squirrel.Eq{"oi.order_id": orderID}).
		OrderBy("oi.item_id").
		ToSql()
	if err != nil {
		return models.OrderDetail{}, fmt.Errorf("build select order items: %w", err)
	}

	detail.Items = []models.OrderItem{}
	if err := s.db.SelectContext(ctx, &detail.Items, query, args...); err != nil {
		return models.OrderDetail{}, fmt.Errorf("select order items: %w", err)
	}

	total := decimal.Zero
	for _, item := range detail.Items {
		total = total.Add(item.Subtotal())
	}
	detail.Total = total
	return detail, nil
}
