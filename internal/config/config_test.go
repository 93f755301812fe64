package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/skillcheck/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Agents, 3)
	assert.Equal(t, "claude", cfg.Agents[0].Name)
	assert.Contains(t, cfg.Agents[1].Template, "codex -a never exec --json {prompt}")
	assert.Len(t, cfg.Agents[2].LogDirs, 3)
	assert.Equal(t, 90, cfg.Run.TimeoutSeconds)
	assert.Equal(t, 4, cfg.Run.MaxParallel)
	assert.Equal(t, 60, cfg.Run.LogMaxFiles)
	assert.Equal(t, int64(300000), cfg.Run.LogMaxBytes)
	assert.True(t, cfg.Run.FallbackCanPass())
	assert.False(t, cfg.Run.LogScanEnabled(), "auto is off with parallel units")

	// Defaults are independent copies.
	cfg.Agents[0].LogDirs[0] = "changed"
	assert.Equal(t, "~/.claude", config.Default().Agents[0].LogDirs[0])
}

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("testdata/minimal.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	a := cfg.Agents[0]
	assert.Equal(t, "claude", a.Provider)
	assert.Contains(t, a.Template, "--output-format stream-json")
	assert.Equal(t, []string{"~/.claude"}, a.LogDirs)
	assert.True(t, cfg.Run.LogScanEnabled(), "auto scans with one unit at a time")
	assert.Equal(t, 120, cfg.Run.LogLookbackSeconds)
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("testdata/full.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 3)

	nightly, ok := cfg.Agent("Claude-Nightly")
	require.True(t, ok)
	assert.Equal(t, "claude", nightly.Provider)
	assert.Contains(t, nightly.Template, "claude -p")
	assert.Equal(t, []string{"/var/log/claude-nightly"}, nightly.LogDirs)

	local, ok := cfg.Agent("local")
	require.True(t, ok)
	assert.Equal(t, "gemini --prompt {prompt}", local.Template)
	assert.Empty(t, local.LogDirs)

	assert.Equal(t, "cases/routing.yaml", cfg.Run.Cases)
	assert.Equal(t, 30, int(cfg.Run.Timeout().Seconds()))
	assert.True(t, cfg.Run.LogScanEnabled())
	assert.False(t, cfg.Run.FallbackCanPass())
	assert.True(t, cfg.Run.FailOnInfra)
	assert.Equal(t, ".env.skillcheck", cfg.Secrets.EnvFile)
}

func TestLoadErrors(t *testing.T) {
	for _, path := range []string{"nonexistent.yaml", "testdata/invalid.yaml", "testdata/duplicate.yaml"} {
		_, err := config.Load(path)
		assert.Error(t, err, path)
	}
}

func TestLoadOrDefault(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := config.LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, cfg.Agents, 3)

	require.NoError(t, os.WriteFile(config.DefaultFile, []byte("agents:\n  - name: codex\n"), 0o644))
	cfg, err = config.LoadOrDefault("")
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "codex", cfg.Agents[0].Name)

	_, err = config.LoadOrDefault("missing.yaml")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	env := map[string]string{
		"MAX_CONCURRENCY":        "1",
		"AGENT_CODEX_TEMPLATE":   "my-codex {prompt}",
		"AGENT_COPILOT_LOG_DIRS": "/a" + string(filepath.ListSeparator) + " /b ",
	}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 1, cfg.Run.MaxParallel)
	codex, _ := cfg.Agent("codex")
	assert.Equal(t, "my-codex {prompt}", codex.Template)
	copilot, _ := cfg.Agent("copilot")
	assert.Equal(t, []string{"/a", "/b"}, copilot.LogDirs)
	claude, _ := cfg.Agent("claude")
	assert.Equal(t, []string{"~/.claude"}, claude.LogDirs)
}

func TestApplyEnvRejectsBadConcurrency(t *testing.T) {
	for _, v := range []string{"zero", "0", "-2"} {
		err := config.Default().ApplyEnv(func(k string) string {
			if k == "MAX_CONCURRENCY" {
				return v
			}
			return ""
		})
		assert.Error(t, err, v)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "CLAUDE_NIGHTLY", config.EnvKey("claude-nightly"))
	assert.Equal(t, "GPT5_1", config.EnvKey("gpt5.1"))
}

func TestSelectAgents(t *testing.T) {
	cfg := config.Default()
	all, err := cfg.SelectAgents(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := cfg.SelectAgents([]string{"COPILOT", "claude", "copilot", " "})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "copilot", some[0].Name)
	assert.Equal(t, "claude", some[1].Name)

	_, err = cfg.SelectAgents([]string{"nope"})
	assert.Error(t, err)
	_, err = cfg.SelectAgents([]string{""})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("SKILLCHECK_TEST_PRESET", "from-env")
	t.Setenv("SKILLCHECK_TEST_FROM_DOTENV", "")
	os.Unsetenv("SKILLCHECK_TEST_FROM_DOTENV")

	require.NoError(t, config.LoadEnvFile("testdata/test.env"))
	t.Cleanup(func() { os.Unsetenv("SKILLCHECK_TEST_FROM_DOTENV") })
	assert.Equal(t, "loaded", os.Getenv("SKILLCHECK_TEST_FROM_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SKILLCHECK_TEST_PRESET"), "existing variables win")

	assert.NoError(t, config.LoadEnvFile(""))
	assert.Error(t, config.LoadEnvFile("testdata/missing.env"))
}
