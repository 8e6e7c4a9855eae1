package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-stream/internal/domain"
)

// Service exposes the shared gorm handle plus pool lifecycle helpers.
type Service interface {
	Health() map[string]string
	Migrate() error
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db   *gorm.DB
	name string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes how to reach the database.
type Config struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Schema   string
	LogLevel logger.LogLevel
}

// ConfigFromEnv reads the BLUEPRINT_DB_* variables.
func ConfigFromEnv() Config {
	driver := os.Getenv("BLUEPRINT_DB_DRIVER")
	if driver == "" {
		driver = DriverPostgres
	}
	return Config{
		Driver:   driver,
		DSN:      os.Getenv("BLUEPRINT_DB_DSN"),
		Host:     os.Getenv("BLUEPRINT_DB_HOST"),
		Port:     os.Getenv("BLUEPRINT_DB_PORT"),
		Username: os.Getenv("BLUEPRINT_DB_USERNAME"),
		Password: os.Getenv("BLUEPRINT_DB_PASSWORD"),
		Database: os.Getenv("BLUEPRINT_DB_DATABASE"),
		Schema:   os.Getenv("BLUEPRINT_DB_SCHEMA"),
		LogLevel: ParseLogLevel(os.Getenv("BLUEPRINT_DB_LOG_LEVEL")),
	}
}

// ParseLogLevel maps silent/error/warn/info onto gorm log levels. Unknown
// values fall back to warn.
func ParseLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres:
		dsn := c.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
				c.Host, c.Username, c.Password, c.Database, c.Port)
			if c.Schema != "" {
				dsn += " search_path=" + c.Schema
			}
		}
		return postgres.New(postgres.Config{DSN: dsn}), nil
	case DriverSQLite:
		dsn := c.DSN
		if dsn == "" {
			dsn = "todo-stream.sqlite3"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func (c Config) displayName() string {
	if c.Database != "" {
		return c.Database
	}
	if c.Driver == DriverSQLite && c.DSN != "" {
		return c.DSN
	}
	return c.Driver
}

// New opens the connection pool described by cfg.
func New(cfg Config) (Service, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer; in-memory databases also vanish
		// once their last connection closes.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &service{db: db, name: cfg.displayName()}, nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the todos table.
func (s *service) Migrate() error {
	if err := s.db.AutoMigrate(&domain.Todo{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Health pings the pool and reports its statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("failed to get underlying DB for health check: %v", err)
		slog.Error("health check: get db", "err", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		slog.Error("health check: db down", "err", err)
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["message"] = poolMessage(dbStats)
	stats["max_open_connections"] = strconv.Itoa(dbStats.MaxOpenConnections)
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	return stats
}

// poolMessage describes pool pressure relative to the configured limits. A
// single-connection pool serialises every query, so waits there are normal.
func poolMessage(st sql.DBStats) string {
	limit := st.MaxOpenConnections
	if limit == 1 {
		return "It's healthy"
	}

	waitLimit := int64(1000)
	if limit > 0 {
		waitLimit = int64(limit) * 10
	}

	switch {
	case limit > 0 && st.OpenConnections*10 >= limit*8:
		return "The database is experiencing heavy load."
	case st.WaitCount > waitLimit:
		return "The database has a high number of wait events, indicating potential bottlenecks."
	case st.MaxIdleClosed > int64(st.OpenConnections)/2 && st.OpenConnections > st.Idle:
		return "Many idle connections are being closed, consider revising the connection pool settings (MaxIdleConns, ConnMaxIdleTime)."
	case st.MaxLifetimeClosed > int64(st.OpenConnections)/2:
		return "Many connections are being closed due to max lifetime, consider increasing ConnMaxLifetime or revising the connection usage pattern."
	default:
		return "It's healthy"
	}
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB for closing: %w", err)
	}
	slog.Info("closing connection pool", "database", s.name)
	return sqlDB.Close()
}

// NewInMemory opens a private in-memory sqlite database with the todos table
// already migrated.
func NewInMemory() (Service, error) {
	svc, err := New(Config{
		Driver:   DriverSQLite,
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Migrate(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}
