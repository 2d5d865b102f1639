package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"temperature-consumer/internal/config"
)

// Open opens a single, statement-logging connection to the configured
// datastore. The caller owns the returned handle and must Close it; the poller
// opens one per cycle and never reuses it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	drv, err := driverFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	connector, err := NewLoggingConnector(drv, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Validate connectivity early
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return sqlx.NewDb(db, cfg.DBDriver), nil
}

func Close(db *sqlx.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func driverFor(name string) (driver.Driver, error) {
	switch name {
	case config.DriverPostgres:
		return stdlib.GetDefaultDriver(), nil
	case config.DriverSQLite:
		return &sqlite3.SQLiteDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", name)
	}
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DBDSN != "" {
		return cfg.DBDSN, nil
	}
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return buildPostgresDSN(cfg), nil
	case config.DriverSQLite:
		return buildSQLiteDSN(cfg.SQLitePath)
	default:
		return "", fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

func buildPostgresDSN(cfg config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:   "/" + cfg.DBName,
	}
	if cfg.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.DBSSLMode}}.Encode()
	}
	return u.String()
}

func buildSQLiteDSN(path string) (string, error) {
	// Ensure directory exists for file-backed sqlite db
	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// - busy_timeout: the external producer may hold the write lock
	// - journal_mode=WAL: readers do not block the producer
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	// If caller provided something like "file:/data/app.db?x=y" as path, don't double-wrap
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
