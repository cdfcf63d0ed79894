package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_CONNECTION_STR", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "sgd", cfg.Currency)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
port: "9000"
db_driver: sqlite
database_connection_str: "file:shop.db"
jwt_secret: from-file
token_ttl: 2h
allowed_origins: ["https://shop.example"]
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://shop.example"}, cfg.AllowedOrigins)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Setenv("DATABASE_CONNECTION_STR", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("DATABASE_CONNECTION_STR", "postgres://localhost/shop")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "forever")

	_, err := Load("")
	assert.ErrorContains(t, err, "TOKEN_TTL")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaults()
		cfg.DatabaseURL = "postgres://localhost/shop"
		cfg.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_CONNECTION_STR"},
		{"no secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"admin without password", func(c *Config) { c.AdminUsername = "admin" }, "ADMIN_PASSWORD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
