package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

//go:embed sql/postgres/average-since.sql
var postgresAverageSinceSQL string

//go:embed sql/sqlite/average-since.sql
var sqliteAverageSinceSQL string

// SQLiteTimeLayout is how readings timestamps are stored and compared in SQLite.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

type TemperatureRepository interface {
	// AverageSince returns the mean temperature of readings recorded at or
	// after since. The result is invalid (not an error) when no rows match.
	AverageSince(ctx context.Context, since time.Time) (decimal.NullDecimal, error)
	// Close releases the underlying connection.
	Close() error
}

type repositoryImpl struct {
	db *sqlx.DB
}

// NewRepository wraps db. The repository owns db and closes it on Close.
func NewRepository(db *sqlx.DB) TemperatureRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) AverageSince(ctx context.Context, since time.Time) (decimal.NullDecimal, error) {
	var avg decimal.NullDecimal
	var err error
	switch r.db.DriverName() {
	case "sqlite3":
		err = r.db.GetContext(ctx, &avg, sqliteAverageSinceSQL, since.UTC().Format(SQLiteTimeLayout))
	default:
		err = r.db.GetContext(ctx, &avg, postgresAverageSinceSQL, since)
	}
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("average since %s: %w", since.Format(time.RFC3339), err)
	}
	return avg, nil
}

func (r *repositoryImpl) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
