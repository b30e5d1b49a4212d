package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting. Values come from an optional YAML file
// (KAWARABAN_CONFIG) overridden by environment variables prefixed KAWARABAN_.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`

	CronSpec    string `mapstructure:"cron_spec"`
	CronEnabled bool   `mapstructure:"cron_enabled"`
	CronSecret  string `mapstructure:"cron_secret"`

	StorePath      string `mapstructure:"store_path"`
	SourcesPath    string `mapstructure:"sources_path"`
	PublishersPath string `mapstructure:"publishers_path"`

	TextGen TextGenConfig `mapstructure:"textgen"`
	Limits  Limits        `mapstructure:"limits"`
}

// TextGenConfig wires the chat-completions endpoints. SearchModel is used for
// live-search calls (X search); Model for summarization and curation.
type TextGenConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Model          string        `mapstructure:"model"`
	SearchModel    string        `mapstructure:"search_model"`
	APIKey         string        `mapstructure:"api_key"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	timeout        time.Duration `mapstructure:"-"`
}

// Timeout returns the configured call timeout.
func (t TextGenConfig) Timeout() time.Duration { return t.timeout }

// Limits bounds per-run external cost.
type Limits struct {
	MaxCurated         int `mapstructure:"max_curated"`
	MaxItemsPerFeed    int `mapstructure:"max_items_per_feed"`
	MaxSummarizePerRun int `mapstructure:"max_summarize_per_run"`
	MaxPerSearchTopic  int `mapstructure:"max_per_search_topic"`
	MaxSearchResults   int `mapstructure:"max_search_results"`
	SearchConcurrency  int `mapstructure:"search_concurrency"`
	FeedConcurrency    int `mapstructure:"feed_concurrency"`
	SummaryFallbackLen int `mapstructure:"summary_fallback_len"`
}

// Load reads configuration with viper, applying defaults first, then the
// optional config file, then environment overrides.
func Load() (Config, error) {
	v := viper.New()

	// Every key needs a default: AutomaticEnv only surfaces keys viper
	// already knows about.
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("cron_spec", "0 6 * * *")
	v.SetDefault("cron_enabled", false)
	v.SetDefault("cron_secret", "")
	v.SetDefault("store_path", "kawaraban.db")
	v.SetDefault("sources_path", "")
	v.SetDefault("publishers_path", "")
	v.SetDefault("textgen.endpoint", "https://api.x.ai/v1/chat/completions")
	v.SetDefault("textgen.model", "grok-3-latest")
	v.SetDefault("textgen.search_model", "grok-3-latest")
	v.SetDefault("textgen.api_key", "")
	v.SetDefault("textgen.timeout_seconds", 60)
	v.SetDefault("limits.max_curated", 20)
	v.SetDefault("limits.max_items_per_feed", 5)
	v.SetDefault("limits.max_summarize_per_run", 10)
	v.SetDefault("limits.max_per_search_topic", 5)
	v.SetDefault("limits.max_search_results", 10)
	v.SetDefault("limits.search_concurrency", 2)
	v.SetDefault("limits.feed_concurrency", 3)
	v.SetDefault("limits.summary_fallback_len", 300)

	v.SetEnvPrefix("KAWARABAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TextGen.TimeoutSeconds <= 0 {
		cfg.TextGen.TimeoutSeconds = 60
	}
	cfg.TextGen.timeout = time.Duration(cfg.TextGen.TimeoutSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Limits.MaxCurated <= 0 {
		return fmt.Errorf("limits.max_curated must be positive")
	}
	if c.Limits.SearchConcurrency <= 0 {
		return fmt.Errorf("limits.search_concurrency must be positive")
	}
	if c.CronEnabled && strings.TrimSpace(c.CronSpec) == "" {
		return fmt.Errorf("cron_spec is required when cron_enabled is set")
	}
	return nil
}
