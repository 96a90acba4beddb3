package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := &Config{}
	require.NoError(t, v.Unmarshal(cfg))

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "docwallet.db", cfg.Store.Path)
	assert.Equal(t, 5, cfg.Engine.ExecutorBudget)
	assert.Equal(t, time.Hour, cfg.Engine.StaleAfter)
	assert.Equal(t, 10, cfg.Engine.PollFailureLimit)
	assert.Equal(t, 5*time.Second, cfg.Engine.Intervals.Poll)
	assert.Equal(t, 4, cfg.Docs.TemplateBatch)
	assert.False(t, cfg.Engine.DemoMode)
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("DOCWALLET_MASTER_KEY", "test-master-key")
	t.Setenv("DOCWALLET_DOC_ID", "doc-123")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DEMO_MODE", "true")

	v := viper.New()
	SetDefaults(v)
	bindLegacyEnv(v)

	cfg := &Config{}
	require.NoError(t, v.Unmarshal(cfg))

	assert.Equal(t, "test-master-key", cfg.Vault.MasterKey)
	assert.Equal(t, "doc-123", cfg.Docs.DocID)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Engine.DemoMode)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		SetDefaults(v)
		cfg := &Config{}
		require.NoError(t, v.Unmarshal(cfg))
		cfg.Vault.MasterKey = "key"
		cfg.Docs.Backend = "memory"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Validate(base()))
	})

	t.Run("missing master key", func(t *testing.T) {
		cfg := base()
		cfg.Vault.MasterKey = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("bad executor budget", func(t *testing.T) {
		cfg := base()
		cfg.Engine.ExecutorBudget = 0
		assert.Error(t, Validate(cfg))
	})

	t.Run("gdocs requires credentials", func(t *testing.T) {
		cfg := base()
		cfg.Docs.Backend = "gdocs"
		cfg.Docs.CredentialsFile = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Docs.Backend = "couch"
		assert.Error(t, Validate(cfg))
	})
}
