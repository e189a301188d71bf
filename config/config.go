// Package config loads process configuration from the environment and builds
// the structured logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Skryldev/useradmin/db"
)

// Config is the full process configuration. Zero values are never used
// directly; Load fills every field.
type Config struct {
	APIAddr string
	UIAddr  string
	// APIURL is where the admin UI finds the user service.
	APIURL string

	DatabaseDriver string
	DatabaseURL    string
	DBTimeout      time.Duration
	DBMaxOpenConns int

	ClientTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. When DATABASE_URL is
// unset for a server database, the DSN is assembled from DB_HOST, DB_PORT,
// DB_USER, DB_PASSWORD, DB_NAME and DB_SSLMODE.
func Load() (Config, error) {
	cfg := Config{
		APIAddr:        envOr("USERADMIN_API_ADDR", ":8080"),
		UIAddr:         envOr("USERADMIN_UI_ADDR", ":8081"),
		APIURL:         envOr("USERADMIN_API_URL", ""),
		DatabaseDriver: envOr("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       envOr("USERADMIN_LOG_LEVEL", "info"),
		LogFormat:      envOr("USERADMIN_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.DBTimeout, err = envDuration("USERADMIN_DB_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ClientTimeout, err = envDuration("USERADMIN_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = envInt("USERADMIN_DB_MAX_OPEN_CONNS", 10); err != nil {
		return Config{}, err
	}

	if cfg.APIURL == "" {
		cfg.APIURL = "http://" + localAddr(cfg.APIAddr)
	}

	if cfg.DatabaseURL == "" {
		if cfg.DatabaseURL, err = dsnFromEnv(cfg.DatabaseDriver); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// DB returns the db.Config for the configured database.
func (c Config) DB(hooks ...db.Hook) db.Config {
	return db.Config{
		DSN:             c.DatabaseURL,
		DriverName:      c.DatabaseDriver,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxOpenConns,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		DefaultTimeout:  c.DBTimeout,
		Hooks:           hooks,
	}
}

// WithDriver returns c switched to driver. Unless DATABASE_URL is set, the
// DSN is rebuilt for the new driver the same way Load builds it.
func (c Config) WithDriver(driver string) (Config, error) {
	if driver == c.DatabaseDriver {
		return c, nil
	}
	c.DatabaseDriver = driver
	if os.Getenv("DATABASE_URL") != "" {
		return c, nil
	}
	dsn, err := dsnFromEnv(driver)
	if err != nil {
		return Config{}, err
	}
	c.DatabaseURL = dsn
	return c, nil
}

func dsnFromEnv(driver string) (string, error) {
	if driver == "sqlite3" {
		return db.BuildDSN(driver, db.DriverOptions{Database: envOr("DB_NAME", "./users.db")})
	}

	port, err := envInt("DB_PORT", defaultPort(driver))
	if err != nil {
		return "", err
	}
	return db.BuildDSN(driver, db.DriverOptions{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: envOr("DB_NAME", "useradmin"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	})
}

func defaultPort(driver string) int {
	if driver == "mysql" {
		return 3306
	}
	return 5432
}

// localAddr turns a listen address such as ":8080" into a dialable one.
func localAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger builds a slog.Logger writing to w in "json" or "text" format.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: l}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("config: unknown log format %q", format)
}
