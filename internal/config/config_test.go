package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "psibatch"}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 180*time.Second, cfg.FirstSignalTimeout)
	assert.Equal(t, []string{FormatJSON, FormatHTML}, cfg.Formats)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
log_level: warn
delay_min: 1s
delay_max: 3s
completion_timeout: 45s
proxies:
  - http://p1:8080
screenshots: true
`), 0o644))

	t.Setenv("PSIBATCH_DELAY_MAX", "4s")
	t.Setenv("PSIBATCH_USER_AGENTS", "UA one, with comma|UA two")

	cmd := newCmd(t, "--config", yamlPath, "--delay-max", "6s", "--headless=false", "-H", "X-Test: 1")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.DelayMin)
	assert.Equal(t, 6*time.Second, cfg.DelayMax, "flag beats env beats file")
	assert.Equal(t, 45*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, []string{"http://p1:8080"}, cfg.Proxies)
	assert.True(t, cfg.Screenshots)
	assert.False(t, cfg.Headless)
	assert.Equal(t, []string{"UA one, with comma", "UA two"}, cfg.UserAgents)
	assert.Equal(t, []string{"X-Test: 1"}, cfg.Headers)
	// Unchanged flags do not clobber lower layers.
	assert.Equal(t, DefaultURLTimeout, cfg.URLTimeout)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("output_dir: reports\n"), 0o644))

	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, "reports", cfg.OutputDir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(newCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestLoad_VerboseAndQuiet(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(newCmd(t, "-v"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	cfg, err = Load(newCmd(t, "-v", "-q"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	env := map[string]string{"PSIBATCH_URL_TIMEOUT": "soon"}
	err := applyEnv(Default(), func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PSIBATCH_URL_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero delays", func(c *Config) { c.DelayMin, c.DelayMax = 0, 0 }, true},
		{"inverted delays", func(c *Config) { c.DelayMin, c.DelayMax = 5*time.Second, time.Second }, false},
		{"zero timeout", func(c *Config) { c.URLTimeout = 0 }, false},
		{"tiny interval", func(c *Config) { c.PollInterval = time.Millisecond }, false},
		{"relative analysis url", func(c *Config) { c.AnalysisURL = "/analysis" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"bad format", func(c *Config) { c.Formats = []string{"pdf"} }, false},
		{"format case", func(c *Config) { c.Formats = []string{" Markdown "} }, true},
		{"no retries", func(c *Config) { c.RetryAttempts = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := validate(c)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
