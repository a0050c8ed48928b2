package persistence

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/gridsync/internal/infrastructure/config"
	"github.com/erp/gridsync/internal/infrastructure/telemetry"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// Option configures NewDatabase
type Option func(*options)

type options struct {
	logger  logger.Interface
	tracing *telemetry.DBTracingConfig
	zap     *zap.Logger
}

// WithGormLogger sets the GORM logger. Default is silent.
func WithGormLogger(l logger.Interface) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracing registers OpenTelemetry callbacks on the connection
func WithTracing(cfg telemetry.DBTracingConfig, zapLogger *zap.Logger) Option {
	return func(o *options) {
		o.tracing = &cfg
		o.zap = zapLogger
	}
}

// NewDatabase opens a connection for the configured driver
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{logger: logger.Default.LogMode(logger.Silent)}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// one writer; an in-memory database also lives on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if o.tracing != nil {
		if o.zap == nil {
			o.zap = zap.NewNop()
		}
		if err := telemetry.RegisterDBTracing(db, *o.tracing, o.zap); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	return &Database{DB: db}, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		return postgres.Open(cfg.DSN()), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// AutoMigrate creates the grid tables from the models. Used for sqlite; the
// postgres schema is owned by the SQL migrations.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(Models()...)
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
