package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alvmarrod/label-weaver/internal/discogs"
	"github.com/alvmarrod/label-weaver/internal/wikipedia"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LABELWEAVER_DISCOGS_TOKEN.
const EnvPrefix = "LABELWEAVER"

// Config holds all runtime configuration parameters
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	InputPath     string `mapstructure:"input_path"`
	CopyrightPath string `mapstructure:"copyright_path"`
	ArchivePath   string `mapstructure:"archive_path"`
	FinalPath     string `mapstructure:"final_path"`

	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Discogs   DiscogsConfig   `mapstructure:"discogs"`
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
	Interim   InterimConfig   `mapstructure:"interim"`
	Copyright CopyrightConfig `mapstructure:"copyright"`
	Final     FinalConfig     `mapstructure:"final"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// PipelineConfig controls recursion and checkpointing.
type PipelineConfig struct {
	MaxDepth     int `mapstructure:"max_depth"`
	SaveInterval int `mapstructure:"save_interval"`
}

// DiscogsConfig configures the Discogs API client.
type DiscogsConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Token             string  `mapstructure:"token"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	TimeoutMs         int     `mapstructure:"timeout_ms"`
}

// WikipediaConfig configures the Wikipedia client.
type WikipediaConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	TimeoutMs         int     `mapstructure:"timeout_ms"`
}

// InterimConfig holds the Wikipedia keyword thresholds.
type InterimConfig struct {
	UnderThreshold float64 `mapstructure:"under_threshold"`
	OverThreshold  float64 `mapstructure:"over_threshold"`
}

// CopyrightConfig controls conflict handling in the copyright stage.
type CopyrightConfig struct {
	// OverrideConflicts set to true overwrites every conflicting terminal class
	// with the notice class. Off keeps the earlier class and only records it.
	OverrideConflicts bool `mapstructure:"override_conflicts"`
}

// FinalConfig holds the arbitration threshold.
type FinalConfig struct {
	KeywordThreshold float64 `mapstructure:"keyword_threshold"`
}

// LoggingConfig selects logrus level and formatter.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig locates the metrics outputs. An empty textfile disables the
// Prometheus export.
type MetricsConfig struct {
	Path     string `mapstructure:"path"`
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from path (optional), the environment and defaults.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load over a caller-owned viper instance, so command flags
// bound to it take precedence.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for unspecified fields
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("input_path", "")
	v.SetDefault("copyright_path", "")
	v.SetDefault("archive_path", "")
	v.SetDefault("final_path", "")
	v.SetDefault("pipeline.max_depth", 6)
	v.SetDefault("pipeline.save_interval", 500)
	v.SetDefault("discogs.base_url", "https://api.discogs.com")
	v.SetDefault("discogs.token", "")
	v.SetDefault("discogs.user_agent", "LabelWeaver/1.0")
	v.SetDefault("discogs.requests_per_minute", 60)
	v.SetDefault("discogs.timeout_ms", 10000)
	v.SetDefault("wikipedia.base_url", wikipedia.DefaultBaseURL)
	v.SetDefault("wikipedia.user_agent", "LabelWeaver/1.0")
	v.SetDefault("wikipedia.requests_per_second", 5)
	v.SetDefault("wikipedia.timeout_ms", 10000)
	v.SetDefault("interim.under_threshold", 2)
	v.SetDefault("interim.over_threshold", 0.25)
	v.SetDefault("copyright.override_conflicts", false)
	v.SetDefault("final.keyword_threshold", 0.2)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("metrics.path", "")
	v.SetDefault("metrics.textfile", "")
}

// applyDerived fills paths that default to locations inside the data dir.
func (c *Config) applyDerived() {
	if c.InputPath == "" {
		c.InputPath = filepath.Join(c.DataDir, "record_labels.csv")
	}
	if c.CopyrightPath == "" {
		c.CopyrightPath = filepath.Join(c.DataDir, "copyright_map.csv")
	}
	if c.ArchivePath == "" {
		c.ArchivePath = filepath.Join(c.DataDir, "archive.db")
	}
	if c.FinalPath == "" {
		c.FinalPath = filepath.Join(c.DataDir, "label_map_major.csv")
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = filepath.Join(c.DataDir, "metrics.json")
	}
}

// Validate checks that required fields are present and values are sensible
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Pipeline.MaxDepth < 0 {
		return fmt.Errorf("pipeline.max_depth must be >= 0")
	}
	if c.Pipeline.SaveInterval < 1 {
		return fmt.Errorf("pipeline.save_interval must be >= 1")
	}
	if c.Discogs.RequestsPerMinute < 0 || c.Wikipedia.RequestsPerSecond < 0 {
		return fmt.Errorf("request rates must be >= 0")
	}
	if c.Discogs.TimeoutMs < 1000 || c.Wikipedia.TimeoutMs < 1000 {
		return fmt.Errorf("timeout_ms must be >= 1000")
	}
	if c.Interim.UnderThreshold < 0 || c.Interim.OverThreshold < 0 || c.Final.KeywordThreshold < 0 {
		return fmt.Errorf("thresholds must be >= 0")
	}
	return nil
}

// DiscogsSource converts the section into client settings.
func (c *Config) DiscogsSource() discogs.Config {
	return discogs.Config{
		BaseURL:           c.Discogs.BaseURL,
		Token:             c.Discogs.Token,
		UserAgent:         c.Discogs.UserAgent,
		RequestsPerMinute: c.Discogs.RequestsPerMinute,
		Timeout:           time.Duration(c.Discogs.TimeoutMs) * time.Millisecond,
	}
}

// WikipediaSource converts the section into client settings.
func (c *Config) WikipediaSource() wikipedia.Config {
	return wikipedia.Config{
		BaseURL:           c.Wikipedia.BaseURL,
		UserAgent:         c.Wikipedia.UserAgent,
		RequestsPerSecond: c.Wikipedia.RequestsPerSecond,
		Timeout:           time.Duration(c.Wikipedia.TimeoutMs) * time.Millisecond,
	}
}
