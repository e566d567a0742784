package db

import (
	"context"
	"fmt"

	"github.com/nexuswars/server/config"
	dbmysql "github.com/nexuswars/server/db/mysql"
	dbsqlite "github.com/nexuswars/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Gateway is the only component that talks to durable storage.
// In sqlite mode the underlying pool holds exactly one connection, so
// transactions are fully serialized by the gateway itself. In mysql mode a
// bounded pool is used and correctness relies on row locking plus ordinary
// transaction isolation.
type Gateway struct {
	db   *gorm.DB
	mode string
}

// Open connects to the configured backend and returns a Gateway.
// Connection failure here is fatal to the caller; it must not be retried
// into a half-initialized state.
func Open(cfg config.DatabaseConfig) (*Gateway, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Mode {
	case ModeSQLite:
		db, err = dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		db, err = dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", cfg.Mode, err)
	}
	return &Gateway{db: db, mode: cfg.Mode}, nil
}

// WithTransaction runs work inside a single database transaction,
// committing on nil and rolling back on error. The error is returned to the
// caller unchanged so state-conflict rejections keep their identity.
func (g *Gateway) WithTransaction(ctx context.Context, work func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(work)
}

// DB exposes the underlying handle for idempotent reads and simple writes
// that do not need an explicit transaction.
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// Mode reports which backend flavor the gateway was opened with.
func (g *Gateway) Mode() string {
	return g.mode
}

// Ping verifies the backing store is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
