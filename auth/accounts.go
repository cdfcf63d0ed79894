package auth

import (
	"context"
	"errors"
	"strings"

	"shop/models"
	"shop/store"
	"shop/utils"
)

var (
	ErrMissingFields      = errors.New("username, email and password are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserStore is the slice of the persistence layer accounts need.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, username string) (models.User, error)
}

type Accounts struct {
	users UserStore
}

func NewAccounts(users UserStore) *Accounts {
	return &Accounts{users: users}
}

type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register validates the form and stores a new customer with a bcrypt hash
// of the password. Nothing is written when validation fails.
func (a *Accounts) Register(ctx context.Context, reg Registration) (models.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return models.User{}, ErrMissingFields
	}
	if reg.Password != reg.ConfirmPassword {
		return models.User{}, ErrPasswordMismatch
	}
	// bcrypt rejects anything longer.
	if len(reg.Password) > 72 {
		return models.User{}, ErrPasswordTooLong
	}

	hashed, err := utils.HashPassword(reg.Password)
	if err != nil {
		return models.User{}, utils.ErrorWithTrace(err, "failed to hash password")
	}

	return a.users.CreateUser(ctx, models.User{
		Username: reg.Username,
		Email:    reg.Email,
		Password: hashed,
		Role:     models.RoleCustomer,
	})
}

// Login returns the user when the password matches the stored hash. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (a *Accounts) Login(ctx context.Context, username, password string) (models.User, error) {
	user, err := a.users.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if err := utils.CheckPassword(user.Password, password); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}
