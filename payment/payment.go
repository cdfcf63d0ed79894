// Package payment creates hosted payment sessions for placed orders.
package payment

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("payment provider not configured")

type Request struct {
	OrderID     string
	Currency    string
	AmountMinor int64
	SuccessURL  string
	CancelURL   string
}

type Session struct {
	ID  string `json:"payment_session_id,omitempty"`
	URL string `json:"payment_url,omitempty"`
}

type Provider interface {
	CreateSession(ctx context.Context, req Request) (Session, error)
}

// Disabled is used when no provider key is configured; every checkout then
// fails at the payment step.
type Disabled struct{}

func (Disabled) CreateSession(context.Context, Request) (Session, error) {
	return Session{}, ErrNotConfigured
}
