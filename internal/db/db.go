package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"school-directory/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
)

// DSN builds a postgres:// URL from cfg, escaping the credentials.
func DSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// New opens the record store described by cfg and sizes its pool.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*bun.DB, error) {
	db, err := Open(ctx, DSN(cfg), logger)
	if err != nil {
		return nil, err
	}

	pool := poolSettings{
		maxOpen:     orDefault(cfg.MaxOpenConns, defaultMaxOpenConns),
		maxIdle:     orDefault(cfg.MaxIdleConns, defaultMaxIdleConns),
		maxLifetime: secondsOr(cfg.ConnMaxLifetime, defaultConnMaxLifetime),
		maxIdleTime: secondsOr(cfg.ConnMaxIdleTime, defaultConnMaxIdleTime),
	}
	pool.apply(db.DB)

	logger.Info("database pool configured",
		"max_open_conns", pool.maxOpen,
		"max_idle_conns", pool.maxIdle,
		"conn_max_lifetime", pool.maxLifetime,
		"conn_max_idle_time", pool.maxIdleTime,
	)
	return db, nil
}

// Open connects with an explicit DSN. Test containers use it directly.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected")
	return db, nil
}

func Close(db *bun.DB) {
	if db != nil {
		db.Close()
	}
}

// Migrate creates the table of every model that lacks one. Models that need
// indexes add them in an AfterCreateTable hook.
func Migrate(ctx context.Context, db *bun.DB, logger *slog.Logger, models ...interface{}) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	logger.Info("database migrations completed", "tables", len(models))
	return nil
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

func (p poolSettings) apply(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)
	sqlDB.SetConnMaxIdleTime(p.maxIdleTime)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
