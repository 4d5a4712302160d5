package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets keys for the duration of the test; t.Setenv restores them afterwards.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

var configKeys = []string{
	"ENV_FILE", "DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_NAME",
	"DB_SSLMODE", "DB_SQLITE_PATH", "DB_LOG_LEVEL", "DB_AUTO_MIGRATE",
	"SERVER_PORT", "SERVER_MAX_PAYLOAD_BYTES", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FILE",
}

func TestLoad_SQLiteDefaults(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "epicollect5.db", cfg.Database.SQLitePath)
	assert.Equal(t, "warn", cfg.Database.LogLevel)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxPayloadBytes)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t, configKeys...)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_PASSWORD=secret\nSERVER_PORT=9090\nDB_NAME=from_file\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("DB_NAME", "from_env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from_env", cfg.Database.Name, "environment wins over the env file")
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SERVER_PORT", "eighty")

	_, err := Load()
	assert.ErrorContains(t, err, "SERVER_PORT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				Driver:   DriverPostgres,
				Host:     "localhost",
				Username: "postgres",
				Password: "secret",
				Name:     "epicollect5",
				LogLevel: "warn",
			},
			Server: ServerConfig{Port: 8080, MaxPayloadBytes: 1024},
			Log:    LogConfig{Level: "info"},
		}
	}
	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing password", func(c *Config) { c.Database.Password = "" }, "DB_PASSWORD"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "DB_DRIVER"},
		{"sqlite without path", func(c *Config) { c.Database.Driver = DriverSQLite }, "DB_SQLITE_PATH"},
		{"bad log level", func(c *Config) { c.Database.LogLevel = "loud" }, "DB_LOG_LEVEL"},
		{"zero payload", func(c *Config) { c.Server.MaxPayloadBytes = 0 }, "SERVER_MAX_PAYLOAD_BYTES"},
		{"bad app log level", func(c *Config) { c.Log.Level = "trace" }, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	sqlite := valid()
	sqlite.Database = DatabaseConfig{Driver: DriverSQLite, SQLitePath: ":memory:", LogLevel: "silent"}
	assert.NoError(t, sqlite.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, Username: "ec5", Password: "p@ss/word", Name: "entries", SSLMode: "require"}
	assert.Equal(t, "postgres://ec5:p%40ss%2Fword@db:5433/entries?sslmode=require", cfg.DSN())
}

func TestParseCommaSeparated(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseCommaSeparated(" a, ,b ,"))
	assert.Empty(t, parseCommaSeparated(""))
}
