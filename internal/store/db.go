package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the gorm-backed persistence layer shared by all stores.
type DB struct {
	gorm *gorm.DB
}

// Tx is a unit of work. Store methods given a non-nil Tx run inside it; a
// nil Tx runs against the database directly.
type Tx struct {
	db *gorm.DB
}

// Open connects to the database named by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer; one connection serializes
		// transactions instead of failing them with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	return &DB{gorm: g}, nil
}

// Migrate creates or updates the schema.
func (d *DB) Migrate(ctx context.Context) error {
	err := d.gorm.WithContext(ctx).AutoMigrate(
		&walletModel{},
		&transactionModel{},
		&holdingModel{},
		&orderModel{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside one database transaction. Any error returned
// by fn rolls back every write made through tx.
func (d *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return d.gorm.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		return fn(&Tx{db: g})
	})
}

// conn returns the handle for a store call: the transaction when one is
// given, otherwise the root connection.
func (d *DB) conn(ctx context.Context, tx *Tx) *gorm.DB {
	if tx != nil {
		return tx.db.WithContext(ctx)
	}
	return d.gorm.WithContext(ctx)
}

// storageErr wraps an infrastructure error so callers can match
// domain.ErrStorageFailure while the cause stays available for logging.
func storageErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, domain.ErrConcurrencyConflict)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageFailure, op, err)
}
