package utils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"live-auction/internal/config"
	"live-auction/pkg/logger"
)

// OpenDatabase opens and pings the SQL pool selected by cfg.Storage.Driver.
// The caller owns the returned *sql.DB. The driver packages are registered
// by internal/infrastructure/sqlstore.
func OpenDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err = sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		db, err = sql.Open("sqlite", cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows a single writer; one connection serializes every transaction.
		db.SetMaxOpenConns(1)

	default:
		return nil, fmt.Errorf("storage driver %q is not backed by a database", cfg.Storage.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Storage.Driver, err)
	}

	log.Info("Connected to database", "driver", cfg.Storage.Driver)
	return db, nil
}
