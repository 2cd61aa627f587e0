// Package database owns the PostgreSQL connection for the assistant
// service and routes GORM's driver logs through the service logger.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Config controls connectivity and pool sizing.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// SlowThreshold marks queries worth a warning. Zero means 200ms.
	SlowThreshold time.Duration
}

// Connect opens the service database, creating it first when the DSN
// names one that does not exist yet.
func Connect(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	if err := createDatabaseIfMissing(cfg.DSN); err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		PrepareStmt: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		Logger: newGormLogger(log, slow),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// createDatabaseIfMissing connects to the postgres maintenance database
// and creates the target one when absent. Keyword/value DSNs and DSNs
// already pointing at the maintenance database are left to the driver.
func createDatabaseIfMissing(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return nil
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" || name == "postgres" {
		return nil
	}

	admin := *u
	admin.Path = "/postgres"
	conn, err := sql.Open("postgres", admin.String())
	if err != nil {
		return err
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = conn.Exec(`CREATE DATABASE "` + strings.ReplaceAll(name, `"`, `""`) + `"`)
	return err
}

// gormZerolog adapts the service logger to GORM's logging interface.
// Fast successful queries stay silent; slow ones warn, failures error.
type gormZerolog struct {
	log  zerolog.Logger
	slow time.Duration
}

func newGormLogger(log zerolog.Logger, slow time.Duration) gormlogger.Interface {
	return &gormZerolog{
		log:  log.With().Str("component", "gorm").Logger(),
		slow: slow,
	}
}

func (l *gormZerolog) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *gormZerolog) Info(_ context.Context, msg string, args ...any) {
	l.log.Info().Msgf(msg, args...)
}

func (l *gormZerolog) Warn(_ context.Context, msg string, args ...any) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *gormZerolog) Error(_ context.Context, msg string, args ...any) {
	l.log.Error().Msgf(msg, args...)
}

func (l *gormZerolog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		query, rows := fc()
		l.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("query", query).Msg("query failed")
	case elapsed > l.slow:
		query, rows := fc()
		l.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("query", query).Msg("slow query")
	}
}
