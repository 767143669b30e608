package store

import (
	"context"
	"errors"
	"fmt"

	"auftrag.chapter42.de/dispatch/internal/data"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store kapselt den Zugriff auf die Supabase-Datenbank.
type Store struct {
	db *gorm.DB
}

// Open verbindet sich mit Postgres. Für den Supabase-Pooler (pgbouncer im
// Transaction-Modus) werden keine Prepared Statements verwendet.
func Open(cfg data.DatabaseConfig, debug bool) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn ist nicht gesetzt")
	}

	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: NewGormLogger(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("verbindung zur Datenbank fehlgeschlagen: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate legt die Tabellen an bzw. ergänzt fehlende Spalten.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&data.Master{}, &data.Request{}, &data.Candidate{}, &data.Assignment{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction führt fn in einer Transaktion aus. Der übergebene Store arbeitet
// ausschließlich auf der Transaktion.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
