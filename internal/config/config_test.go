package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "production", cfg.StrikeEnvironment)
	assert.Equal(t, 30*time.Second, cfg.StrikeTimeout)
	assert.Equal(t, 300*time.Second, cfg.RequestExpiry)
	assert.Equal(t, "USD", cfg.TargetCurrency)
	assert.Equal(t, []string{"COMPLETED", "SETTLED", "CONFIRMED", "SUCCESS", "PAID"}, cfg.SettledStates)
	assert.False(t, cfg.TrustWebhookFallback)
	assert.NotEmpty(t, cfg.TokenSecret)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DB_SOURCE", "file:test.db")
	t.Setenv("STRIKE_ENVIRONMENT", "SANDBOX")
	t.Setenv("STRIKE_TIMEOUT", "5s")
	t.Setenv("SETTLED_STATES", "completed, paid ,")
	t.Setenv("TRUST_WEBHOOK_FALLBACK", "true")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "sandbox", cfg.StrikeEnvironment)
	assert.Equal(t, 5*time.Second, cfg.StrikeTimeout)
	assert.Equal(t, []string{"completed", "paid"}, cfg.SettledStates)
	assert.True(t, cfg.TrustWebhookFallback)
	assert.Equal(t, []byte("s3cret"), cfg.TokenSecret)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without source": {"STORE_DRIVER": "postgres"},
		"unknown driver":          {"STORE_DRIVER": "mongo"},
		"unknown environment":     {"STORE_DRIVER": "memory", "STRIKE_ENVIRONMENT": "staging"},
		"no settled states":       {"STORE_DRIVER": "memory", "SETTLED_STATES": " , "},
		"secret outside dev":      {"STORE_DRIVER": "memory", "ENVIRONMENT": "production"},
		"zero timeout":            {"STORE_DRIVER": "memory", "STRIKE_TIMEOUT": "0s"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_SOURCE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lightningpay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_driver: memory\nserver_port: \"9090\"\nrequest_expiry: 120s\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 120*time.Second, cfg.RequestExpiry)
}
