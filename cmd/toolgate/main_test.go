package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := buildRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range buildRootCmd().Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "config", "tools"} {
		assert.True(t, names[name], "missing subcommand %q", name)
	}
}

func TestToolsCmd(t *testing.T) {
	out, err := run(t, "tools")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 26)
	assert.Contains(t, out, "repo_list")
	assert.Contains(t, out, "delegated")

	out, err = run(t, "tools", "--catalog=false")
	require.NoError(t, err)
	assert.NotContains(t, out, "repo_list")
}

func TestConfigValidateCmd(t *testing.T) {
	t.Setenv("TOOLGATE_CONFIG", "")
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: gemini
  api_key: test-key
engine:
  system_instruction: You manage repositories.
`), 0o600))

	out, err := run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
	assert.Contains(t, out, "provider=gemini")

	_, err = run(t, "config", "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("TOOLGATE_STORE_DRIVER", "")

	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\n"), 0o600))

	_, err := run(t, "migrate", "up", "--config", path)
	assert.ErrorContains(t, err, "postgres driver")
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TOOLGATE_CONFIG", "/etc/toolgate.yaml")

	assert.Equal(t, "explicit.yaml", resolveConfigPath("explicit.yaml"))
	assert.Equal(t, "/etc/toolgate.yaml", resolveConfigPath(""))
}
