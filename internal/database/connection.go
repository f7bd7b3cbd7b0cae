package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pixelforge/internal/config"
	"pixelforge/internal/domain"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	db *gorm.DB
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 10 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Init opens the process-wide connection and migrates the schema.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) error {
	log = log.Named("db")

	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	if cfg.IsPostgres() {
		log.Info("connected to PostgreSQL", zap.Int("max_open", maxOpenConns), zap.Int("max_idle", maxIdleConns))
	} else {
		log.Info("connected to SQLite", zap.String("path", cfg.GetSQLitePath()))
	}

	log.Info("running database migrations")
	if err := Migrate(conn); err != nil {
		return err
	}

	db = conn
	log.Info("database connected and migrated")
	return nil
}

// Open connects to the database described by cfg and verifies it with a ping.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	if cfg.IsPostgres() {
		dialector = postgres.Open(cfg.GetPostgresDSN())
	} else {
		dbPath := cfg.GetSQLitePath()
		sqlDB, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite allows a single writer; an in-memory database also lives
		// only as long as its one connection.
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        dbPath,
			Conn:       sqlDB,
		}
	}

	// SQL is never logged: queries carry emails and password hashes.
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	conn, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.IsPostgres() {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	}

	if err := ping(context.Background(), conn); err != nil {
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return conn, nil
}

// Migrate creates or updates every table the API uses.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&domain.User{},
		&domain.Contact{},
		&domain.Quote{},
		&domain.QuoteReply{},
		&domain.Subscriber{},
		&domain.Newsletter{},
		&domain.Project{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func ping(ctx context.Context, conn *gorm.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized: call database.Init first")
	}
	return db
}

// Close closes the process-wide connection.
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck performs a database health check
func HealthCheck(ctx context.Context, conn *gorm.DB) error {
	return ping(ctx, conn)
}

// GetStats returns database connection statistics
func GetStats(conn *gorm.DB) (*sql.DBStats, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	return &stats, nil
}
