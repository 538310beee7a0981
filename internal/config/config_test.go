package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("ODOO_URL", "")
	t.Setenv("OPNAME_LOCK_TTL", "")
	t.Setenv("OPNAME_LOCK_WAIT", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("ODOO_SYNC_INTERVAL", "")
	t.Setenv("ODOO_UNREGISTERED_PRODUCT_ID", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Odoo.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.Opname.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.Opname.LockWait)
	assert.Empty(t, cfg.Redis.Address)
	assert.False(t, cfg.Odoo.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ODOO_URL", "https://erp.example.com")
	t.Setenv("ODOO_DB", "ivalora")
	t.Setenv("OPNAME_LOCK_TTL", "1m")
	t.Setenv("ODOO_UNREGISTERED_PRODUCT_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, int64(42), cfg.Odoo.UnregisteredProductID)
	assert.Equal(t, time.Minute, cfg.Opname.LockTTL)
	assert.True(t, cfg.Odoo.Enabled())
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_DB", "")
	t.Setenv("OPNAME_LOCK_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "error")

	LogError(l, "opname", "Complete", "session s1", map[string]int{"missing": 2}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "opname", entry["module"])
	assert.Equal(t, "Complete", entry["funcName"])
	assert.NotNil(t, entry["data"])
}
