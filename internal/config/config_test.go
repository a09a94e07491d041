package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 6, cfg.Pipeline.MaxDepth)
	assert.Equal(t, 500, cfg.Pipeline.SaveInterval)
	assert.Equal(t, 2.0, cfg.Interim.UnderThreshold)
	assert.Equal(t, 0.25, cfg.Interim.OverThreshold)
	assert.Equal(t, 0.2, cfg.Final.KeywordThreshold)
	assert.False(t, cfg.Copyright.OverrideConflicts)
	assert.Equal(t, filepath.Join("data", "archive.db"), cfg.ArchivePath)
	assert.Equal(t, filepath.Join("data", "metrics.json"), cfg.Metrics.Path)
	assert.Equal(t, 10*time.Second, cfg.DiscogsSource().Timeout)
	assert.Equal(t, 60.0, cfg.DiscogsSource().RequestsPerMinute)
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
data_dir: /var/lib/labelweaver
pipeline:
  max_depth: 3
  save_interval: 50
discogs:
  token: abc
  timeout_ms: 2500
copyright:
  override_conflicts: true
logging:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.MaxDepth)
	assert.Equal(t, 50, cfg.Pipeline.SaveInterval)
	assert.Equal(t, "abc", cfg.DiscogsSource().Token)
	assert.Equal(t, 2500*time.Millisecond, cfg.DiscogsSource().Timeout)
	assert.True(t, cfg.Copyright.OverrideConflicts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "/var/lib/labelweaver/label_map_major.csv", cfg.FinalPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LABELWEAVER_PIPELINE_MAX_DEPTH", "2")
	t.Setenv("LABELWEAVER_DISCOGS_TOKEN", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.MaxDepth)
	assert.Equal(t, "from-env", cfg.Discogs.Token)
}

func TestLoadWithBoundValues(t *testing.T) {
	v := viper.New()
	v.Set("pipeline.save_interval", 7)

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pipeline.SaveInterval)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name, env, value string
	}{
		{"negative depth", "LABELWEAVER_PIPELINE_MAX_DEPTH", "-1"},
		{"zero interval", "LABELWEAVER_PIPELINE_SAVE_INTERVAL", "0"},
		{"short timeout", "LABELWEAVER_WIKIPEDIA_TIMEOUT_MS", "10"},
		{"negative threshold", "LABELWEAVER_FINAL_KEYWORD_THRESHOLD", "-0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
