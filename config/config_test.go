package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "test-token")
	t.Setenv("AUTHORIZED_USER_ID", "42")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "test-token", cfg.BotToken)
	require.Equal(t, int64(42), cfg.AuthorizedUserID)
	require.Equal(t, "finanzas.db", cfg.DatabasePath)
	require.Equal(t, 30*time.Second, cfg.DatabaseTimeout)
	require.Equal(t, 5, cfg.MaxConnections)
	require.Equal(t, 100, cfg.MaxUserStates)
	require.Equal(t, 2*time.Hour, cfg.StateTTL)
	require.True(t, cfg.BackupEnabled)
	require.Equal(t, 7, cfg.BackupRetentionDays)
	require.Equal(t, "0.0.0.0:5000", cfg.ListenAddress())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tok")
	t.Setenv("AUTHORIZED_USER_ID", "7")
	t.Setenv("DATABASE_PATH", "/tmp/ledger.db")
	t.Setenv("DATABASE_TIMEOUT", "10")
	t.Setenv("MAX_DB_CONNECTIONS", "3")
	t.Setenv("MAX_USER_STATES", "25")
	t.Setenv("BACKUP_ENABLED", "false")
	t.Setenv("PORT", "8080")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "/tmp/ledger.db", cfg.DatabasePath)
	require.Equal(t, 10*time.Second, cfg.DatabaseTimeout)
	require.Equal(t, 3, cfg.MaxConnections)
	require.Equal(t, 25, cfg.MaxUserStates)
	require.False(t, cfg.BackupEnabled)
	require.Equal(t, 8080, cfg.HTTPPort)
}

func TestFromEnvMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("AUTHORIZED_USER_ID", "")

	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("BOT_TOKEN", "tok")
	_, err = FromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tok")
	t.Setenv("AUTHORIZED_USER_ID", "not-a-number")
	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("AUTHORIZED_USER_ID", "7")
	t.Setenv("DATABASE_TIMEOUT", "-1")
	_, err = FromEnv()
	require.Error(t, err)
}
