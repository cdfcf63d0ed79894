package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"shop/config"
)

//go:embed migrations
var migrations embed.FS

// Open connects to the database and configures the pool. SQLite is limited
// to a single connection so that ":memory:" databases are shared.
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	switch driver {
	case config.DriverSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Migrate applies the embedded migrations for driver. Postgres migrations run
// on their own connection built from dsn; SQLite reuses db.
func Migrate(db *sqlx.DB, driver, dsn string) error {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var m *migrate.Migrate
	switch driver {
	case config.DriverSQLite:
		instance, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("could not create migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, driver, instance)
		if err != nil {
			return fmt.Errorf("could not create migrate instance: %w", err)
		}
	case config.DriverPostgres:
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
		if err != nil {
			return fmt.Errorf("could not create migrate instance: %w", err)
		}
		defer m.Close()
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	return fn(tx)
}
