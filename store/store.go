// Package store is the persistence layer: one method per shop operation,
// each built with squirrel and executed through sqlx on the shared pool.
package store

import (
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shop/config"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")
)

type Store struct {
	db  *sqlx.DB
	qb  squirrel.StatementBuilderType
	now func() time.Time
}

func New(db *sqlx.DB, driver string) *Store {
	var format squirrel.PlaceholderFormat = squirrel.Dollar
	if driver == config.DriverSQLite {
		format = squirrel.Question
	}
	return &Store{
		db:  db,
		qb:  squirrel.StatementBuilder.PlaceholderFormat(format),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
