package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://bot@localhost/bot")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "XTR", cfg.PaymentCurrency)
	assert.Equal(t, time.Hour, cfg.CheckInterval.Duration())
	assert.Equal(t, time.Hour, cfg.InviteLinkTTL.Duration())
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout.Duration())
	assert.Equal(t, 3, cfg.ReminderDays)
	assert.Equal(t, 8, cfg.UpdateWorkers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "backups", cfg.BackupDir)
	assert.Empty(t, cfg.AdminIDs)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "111,222")
	t.Setenv("CHECK_SUBSCRIPTION_INTERVAL", "600")
	t.Setenv("INVITE_LINK_EXPIRE_TIME", "30m")
	t.Setenv("PAYMENT_CURRENCY", "RUB")
	t.Setenv("PAYMENT_PROVIDER_TOKEN", "provider")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{111, 222}, cfg.AdminIDs)
	assert.Equal(t, 10*time.Minute, cfg.CheckInterval.Duration())
	assert.Equal(t, 30*time.Minute, cfg.InviteLinkTTL.Duration())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"CHECK_SUBSCRIPTION_INTERVAL": "0",
		"TIMEZONE":                    "Mars/Olympus",
		"PAYMENT_CURRENCY":            "USD",
		"UPDATE_WORKERS":              "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestIntervalSetValue(t *testing.T) {
	var i Interval
	require.NoError(t, i.SetValue("3600"))
	assert.Equal(t, time.Hour, i.Duration())
	require.NoError(t, i.SetValue("90s"))
	assert.Equal(t, 90*time.Second, i.Duration())
	assert.Error(t, i.SetValue("soon"))
}
