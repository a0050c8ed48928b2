package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"GRID_APP_NAME",
	"GRID_APP_ENV",
	"GRID_APP_PORT",
	"GRID_DATABASE_DRIVER",
	"GRID_DATABASE_PATH",
	"GRID_DATABASE_HOST",
	"GRID_DATABASE_PORT",
	"GRID_DATABASE_USER",
	"GRID_DATABASE_PASSWORD",
	"GRID_DATABASE_DBNAME",
	"GRID_DATABASE_SSLMODE",
	"GRID_DATABASE_MAX_OPEN_CONNS",
	"GRID_DATABASE_MAX_IDLE_CONNS",
	"GRID_DATABASE_AUTO_MIGRATE",
	"GRID_SESSION_IDLE_TIMEOUT",
	"GRID_SESSION_REAP_INTERVAL",
	"GRID_SESSION_MAX_SESSIONS",
	"GRID_SESSION_CALL_TIMEOUT",
	"GRID_STORE_BACKEND",
	"GRID_STORE_TTL",
	"GRID_TELEMETRY_SAMPLING_RATIO",
	"GRID_TELEMETRY_DB_LOG_FULL_SQL",
}

// isolateEnv clears every GRID_ variable the tests touch and restores them afterwards
func isolateEnv(t *testing.T) func() {
	t.Helper()
	original := make(map[string]string, len(envKeys))
	for _, k := range envKeys {
		original[k] = os.Getenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
	return func() {
		for _, k := range envKeys {
			os.Unsetenv(k)
		}
	}
}

func TestLoad(t *testing.T) {
	clearEnv := isolateEnv(t)

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "gridsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "gridsync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.False(t, cfg.Database.AutoMigrate)
		assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
		assert.Equal(t, time.Minute, cfg.Session.ReapInterval)
		assert.Equal(t, 1000, cfg.Session.MaxSessions)
		assert.Equal(t, 30*time.Second, cfg.Session.CallTimeout)
		assert.Equal(t, StoreMemory, cfg.Store.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	})

	t.Run("loads values from environment variables with GRID prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_APP_NAME", "grid-test")
		os.Setenv("GRID_APP_PORT", "9000")
		os.Setenv("GRID_DATABASE_DRIVER", "sqlite")
		os.Setenv("GRID_DATABASE_PATH", ":memory:")
		os.Setenv("GRID_DATABASE_AUTO_MIGRATE", "true")
		os.Setenv("GRID_SESSION_IDLE_TIMEOUT", "10m")
		os.Setenv("GRID_SESSION_REAP_INTERVAL", "30s")
		os.Setenv("GRID_SESSION_MAX_SESSIONS", "5")
		os.Setenv("GRID_STORE_BACKEND", "redis")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "grid-test", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.DSN())
		assert.True(t, cfg.Database.AutoMigrate)
		assert.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout)
		assert.Equal(t, 30*time.Second, cfg.Session.ReapInterval)
		assert.Equal(t, 5, cfg.Session.MaxSessions)
		assert.Equal(t, StoreRedis, cfg.Store.Backend)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown store backend", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_STORE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.backend")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("GRID_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("reap interval cannot exceed idle timeout", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_SESSION_IDLE_TIMEOUT", "1m")
		os.Setenv("GRID_SESSION_REAP_INTERVAL", "5m")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session.reap_interval")
	})

	t.Run("validates sampling ratio", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	clearEnv := isolateEnv(t)

	setValidProductionBase := func() {
		os.Setenv("GRID_APP_ENV", "production")
		os.Setenv("GRID_DATABASE_PASSWORD", "secure-password")
		os.Setenv("GRID_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_APP_ENV", "production")
		os.Setenv("GRID_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("GRID_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects sqlite in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("GRID_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("GRID_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses the file path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, Path: "/var/lib/gridsync.db"}

		assert.Equal(t, "/var/lib/gridsync.db", cfg.DSN())
	})
}
