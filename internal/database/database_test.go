package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-stream/internal/domain"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BLUEPRINT_DB_DRIVER", "")
	t.Setenv("BLUEPRINT_DB_HOST", "db.internal")
	t.Setenv("BLUEPRINT_DB_DATABASE", "todos")
	t.Setenv("BLUEPRINT_DB_LOG_LEVEL", "INFO")

	cfg := ConfigFromEnv()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "todos", cfg.Database)
	assert.Equal(t, logger.Info, cfg.LogLevel)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, logger.Error, ParseLogLevel(" error "))
	assert.Equal(t, logger.Warn, ParseLogLevel(""))
	assert.Equal(t, logger.Warn, ParseLogLevel("verbose"))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}

func TestInMemoryHealthAndMigrate(t *testing.T) {
	svc, err := NewInMemory()
	require.NoError(t, err)
	defer svc.Close()

	health := svc.Health()
	assert.Equal(t, "up", health["status"])
	assert.Equal(t, "It's healthy", health["message"])
	assert.Equal(t, "1", health["max_open_connections"])

	assert.True(t, svc.GetDB().Migrator().HasTable(&domain.Todo{}))
}

func TestPoolMessageScalesWithPoolLimit(t *testing.T) {
	tests := []struct {
		name  string
		stats sql.DBStats
		want  string
	}{
		{
			name:  "single connection pool with waits",
			stats: sql.DBStats{MaxOpenConnections: 1, OpenConnections: 1, InUse: 1, WaitCount: 50000},
			want:  "It's healthy",
		},
		{
			name:  "pool near its limit",
			stats: sql.DBStats{MaxOpenConnections: 10, OpenConnections: 8},
			want:  "The database is experiencing heavy load.",
		},
		{
			name:  "large pool with few connections",
			stats: sql.DBStats{MaxOpenConnections: 100, OpenConnections: 8, Idle: 8},
			want:  "It's healthy",
		},
		{
			name:  "waits relative to pool size",
			stats: sql.DBStats{MaxOpenConnections: 10, OpenConnections: 2, Idle: 2, WaitCount: 101},
			want:  "The database has a high number of wait events, indicating potential bottlenecks.",
		},
		{
			name:  "unlimited pool uses fixed wait threshold",
			stats: sql.DBStats{OpenConnections: 2, Idle: 2, WaitCount: 500},
			want:  "It's healthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, poolMessage(tt.stats))
		})
	}
}

func TestHealthReportsClosedPool(t *testing.T) {
	svc, err := NewInMemory()
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	health := svc.Health()
	assert.Equal(t, "down", health["status"])
	assert.Contains(t, health["error"], "db down")
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("todos"),
		tcpostgres.WithUsername("todo"),
		tcpostgres.WithPassword("todo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	svc, err := New(Config{Driver: DriverPostgres, DSN: dsn, Database: "todos", LogLevel: logger.Silent})
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Migrate())
	assert.Equal(t, "up", svc.Health()["status"])

	todo := domain.Todo{Title: "Buy milk", Status: domain.StatusPending}
	require.NoError(t, svc.GetDB().WithContext(ctx).Create(&todo).Error)
	assert.NotZero(t, todo.ID)

	var got domain.Todo
	require.NoError(t, svc.GetDB().WithContext(ctx).First(&got, todo.ID).Error)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, domain.StatusPending, got.Status)
}
