package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func valid() *Config {
	cfg := Default()
	cfg.Model.APIKey = "key"
	cfg.Engine.SystemInstruction = "You are helpful."

	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Engine.MaxAutoDenyRounds)
	assert.Equal(t, 90*time.Second, cfg.Converter.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("TOOLGATE_TEST_KEY", "secret")
	t.Setenv("GEMINI_API_KEY", "")

	path := writeConfig(t, `
server:
  addr: ":9000"
  read_timeout: 10s
model:
  provider: anthropic
  api_key: ${TOOLGATE_TEST_KEY}
store:
  driver: sqlite
  path: /tmp/toolgate.db
engine:
  system_instruction: |
    You manage repositories.
  max_auto_deny_rounds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "secret", cfg.Model.APIKey)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "You manage repositories.\n", cfg.Engine.SystemInstruction)
	assert.Equal(t, 5, cfg.Engine.MaxAutoDenyRounds)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "server: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		"TOOLGATE_MODEL_PROVIDER":       "openai",
		"OPENAI_API_KEY":                "sk-test",
		"GEMINI_API_KEY":                "ignored",
		"DATABASE_URL":                  "postgres://localhost/toolgate",
		"TOOLGATE_STORE_DRIVER":         "postgres",
		"CONVERTER_URL":                 "http://converter:8000",
		"SYSTEM_INSTRUCTION":            "Be brief.",
		"TOOLGATE_MAX_AUTO_DENY_ROUNDS": "2",
	})))

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "postgres://localhost/toolgate", cfg.Store.DSN)
	assert.Equal(t, "http://converter:8000", cfg.Converter.URL)
	assert.Equal(t, "Be brief.", cfg.Engine.SystemInstruction)
	assert.Equal(t, 2, cfg.Engine.MaxAutoDenyRounds)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_ExplicitKeyWins(t *testing.T) {
	cfg := Default()
	cfg.Model.APIKey = "from-file"

	require.NoError(t, cfg.ApplyEnv(env(map[string]string{"GEMINI_API_KEY": "from-env"})))
	assert.Equal(t, "from-file", cfg.Model.APIKey)
}

func TestApplyEnv_InvalidInteger(t *testing.T) {
	err := Default().ApplyEnv(env(map[string]string{"TOOLGATE_MAX_AUTO_DENY_ROUNDS": "many"}))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing addr", func(c *Config) { c.Server.Addr = " " }, "server.addr"},
		{"unknown provider", func(c *Config) { c.Model.Provider = "llama" }, "model.provider"},
		{"missing api key", func(c *Config) { c.Model.APIKey = "" }, "model.api_key"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "store.dsn"},
		{"missing system instruction", func(c *Config) { c.Engine.SystemInstruction = "" }, "engine.system_instruction"},
		{"negative rounds", func(c *Config) { c.Engine.MaxAutoDenyRounds = -1 }, "engine.max_auto_deny_rounds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *core.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := valid()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
	assert.Equal(t, "text", lc.Format)
	assert.Equal(t, "toolgate", lc.Component)
}
