package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Nil(t, cfg.Database)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, "control-plane", cfg.Token.Issuer)
	assert.Equal(t, 5*time.Minute, cfg.Token.DefaultTTL)
	assert.Equal(t, 10_000, cfg.Token.MaxActiveTokens)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("API_KEY", "secret-key")
	t.Setenv("TOKEN_MAX_ACTIVE", "500")
	t.Setenv("POLICY_EVALUATOR_ADDR", "http://opa:8181")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/control_plane")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, 500, cfg.Token.MaxActiveTokens)
	assert.Equal(t, "http://opa:8181", cfg.Evaluator.Address)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "postgres://user:pass@db:5432/control_plane", cfg.Database.DSN())
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "development",
			Server:      ServerConfig{Port: 8080},
			Token:       TokenConfig{MaxActiveTokens: 100},
			Observability: ObservabilityConfig{
				LogLevel: "info",
			},
		}
	}

	t.Run("valid development config", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero token capacity", func(t *testing.T) {
		cfg := base()
		cfg.Token.MaxActiveTokens = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires api key", func(t *testing.T) {
		cfg := base()
		cfg.Environment = "production"
		cfg.Token.SigningSecret = "s"
		assert.Error(t, cfg.Validate())

		cfg.Auth.APIKey = "key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("production requires signing secret", func(t *testing.T) {
		cfg := base()
		cfg.Environment = "production"
		cfg.Auth.APIKey = "key"
		assert.Error(t, cfg.Validate())
	})
}

func TestDatabaseConfig_LogStringHidesPassword(t *testing.T) {
	c := &DatabaseConfig{ConnectionString: "postgres://user:hunter2@db:5432/control_plane"}
	s := c.LogString()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "db")
}
