package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-ledger-sync/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.NewFromViper(viper.New())

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8080/callback", c.GetRedirectURL())
	require.Contains(t, c.GetScopes(), "offline_access")
	require.Contains(t, c.GetScopes(), "accounting.journals.read")
	require.Equal(t, 60, c.GetRequestsPerMinute())
	require.Equal(t, "@every 15m", c.GetSyncSchedule())
	require.Equal(t, 5, c.GetSyncConcurrency())
	require.Equal(t, 5*time.Minute, c.GetSyncTimeout())
	require.Equal(t, config.SyncModeIncremental, c.GetSyncMode())
	require.False(t, c.GetTokenCacheEnabled())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("XERO_SCOPES", "openid,email accounting.journals.read")
	t.Setenv("SYNC_MODE", "backfill")
	t.Setenv("SYNC_CONCURRENCY", "0")
	t.Setenv("TOKEN_CACHE_ENABLED", "true")
	t.Setenv("BASE_URL", "https://sync.example.com/")

	c := config.New()

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, []string{"openid", "email", "accounting.journals.read"}, c.GetScopes())
	require.Equal(t, config.SyncModeBackfill, c.GetSyncMode())
	require.Equal(t, 1, c.GetSyncConcurrency())
	require.True(t, c.GetTokenCacheEnabled())
	require.Equal(t, "https://sync.example.com/callback", c.GetRedirectURL())
}

func TestValidateReportsMissing(t *testing.T) {
	err := config.Validate(config.NewFromViper(viper.New()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "XERO_CLIENT_ID")
	require.Contains(t, err.Error(), "TOKEN_ENCRYPTION_KEY")
	require.Contains(t, err.Error(), "DATABASE_URL")

	v := viper.New()
	v.Set("XERO_CLIENT_ID", "id")
	v.Set("XERO_CLIENT_SECRET", "secret")
	v.Set("TOKEN_ENCRYPTION_KEY", "key")
	v.Set("DATABASE_URL", "postgres://localhost/ledger")
	require.NoError(t, config.Validate(config.NewFromViper(v)))
}
