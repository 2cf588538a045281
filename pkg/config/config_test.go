package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Inventory.KitMaxDepth)
	assert.Equal(t, 5*time.Second, cfg.Inventory.StatementTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("INVENTORY_KIT_MAX_DEPTH", "3")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 3, cfg.Inventory.KitMaxDepth)
	assert.Equal(t, 6543, cfg.DB.Port)
}

func TestLoad_ProfundidadInvalida(t *testing.T) {
	t.Setenv("INVENTORY_KIT_MAX_DEPTH", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "inv", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/inv?sslmode=disable", c.DSN())
	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}

func TestValidate_JuntaErrores(t *testing.T) {
	c := &Config{
		App:       AppConfig{Env: "production"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Inventory: InventoryConfig{KitMaxDepth: 0, StatementTimeout: -time.Second},
		Metrics:   MetricsConfig{Enabled: true, Path: "metrics"},
	}
	err := c.Validate()
	require.Error(t, err)
	for _, key := range []string{"INVENTORY_KIT_MAX_DEPTH", "INVENTORY_STATEMENT_TIMEOUT_MS", "REDIS_TTL_SECONDS", "JWT_SECRET", "METRICS_PATH"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_DuracionesEnMilisegundos(t *testing.T) {
	t.Setenv("INVENTORY_STATEMENT_TIMEOUT_MS", "250")
	t.Setenv("DB_SLOW_QUERY_MS", "0")
	t.Setenv("DB_FORCE_IPV4", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Inventory.StatementTimeout)
	assert.Zero(t, cfg.DB.SlowQuery)
	assert.False(t, cfg.DB.ForceIPv4)
}
