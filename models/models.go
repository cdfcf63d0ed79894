package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Item struct {
	ID          int64           `json:"item_id" db:"item_id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Description string          `json:"description" db:"description"`
}

type Review struct {
	ID        int64     `json:"review_id" db:"review_id"`
	ItemID    int64     `json:"item_id" db:"item_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Text      string    `json:"review" db:"review"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CartEntry struct {
	UserID   string `json:"user_id" db:"user_id"`
	ItemID   int64  `json:"item_id" db:"item_id"`
	Quantity int    `json:"quantity" db:"quantity"`
}

// CartLine is a cart entry joined with the current catalog details of its item.
type CartLine struct {
	ItemID   int64           `json:"item_id" db:"item_id"`
	Name     string          `json:"name" db:"name"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Quantity int             `json:"quantity" db:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type Order struct {
	ID               string          `json:"order_id" db:"order_id"`
	UserID           string          `json:"user_id" db:"user_id"`
	ShippingAddress  string          `json:"shipping_address" db:"shipping_address"`
	Phone            string          `json:"phone" db:"phone"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	PaymentSessionID *string         `json:"payment_session_id,omitempty" db:"payment_session_id"`
	Total            decimal.Decimal `json:"total" db:"total"`
}

// OrderItem is a cart line frozen at checkout; Price is the unit price paid.
type OrderItem struct {
	OrderID  string          `json:"order_id" db:"order_id"`
	ItemID   int64           `json:"item_id" db:"item_id"`
	Name     string          `json:"name" db:"name"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}

// OrderedItem is an item the user bought at least once.
type OrderedItem struct {
	ItemID int64  `json:"item_id" db:"item_id"`
	Name   string `json:"name" db:"name"`
}

type ItemDetail struct {
	Item
	Reviews []Review `json:"reviews"`
}
