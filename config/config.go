package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port           string        `yaml:"port"`
	DBDriver       string        `yaml:"db_driver"`
	DatabaseURL    string        `yaml:"database_connection_str"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	AdminUsername  string        `yaml:"admin_username"`
	AdminPassword  string        `yaml:"admin_password"`
	AdminEmail     string        `yaml:"admin_email"`
	StripeKey      string        `yaml:"stripe_secret_key"`
	Currency       string        `yaml:"currency"`
	Domain         string        `yaml:"domain"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func defaults() *Config {
	return &Config{
		Port:           "8000",
		DBDriver:       DriverPostgres,
		TokenTTL:       24 * time.Hour,
		SessionTTL:     7 * 24 * time.Hour,
		Currency:       "sgd",
		Domain:         "http://localhost:8000",
		AllowedOrigins: []string{"*"},
		RequestTimeout: 30 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, an optional .env file and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// .env is optional; values already in the environment are not overridden
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_CONNECTION_STR")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AdminUsername, "ADMIN_USERNAME")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.AdminEmail, "ADMIN_EMAIL")
	setString(&c.StripeKey, "STRIPE_SECRET_KEY")
	setString(&c.Currency, "CURRENCY")
	setString(&c.Domain, "DOMAIN")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}

	for key, dst := range map[string]*time.Duration{
		"TOKEN_TTL":       &c.TokenTTL,
		"SESSION_TTL":     &c.SessionTTL,
		"REQUEST_TIMEOUT": &c.RequestTimeout,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_CONNECTION_STR not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET not set")
	}
	if c.TokenTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("TOKEN_TTL and SESSION_TTL must be positive")
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
