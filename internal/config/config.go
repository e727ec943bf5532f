// Package config loads configuration from config.yaml, .env files and
// HERITAGE_* environment variables, and sets up the global logger.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig locates the input files.
type SourcesConfig struct {
	Dir              string `yaml:"dir" mapstructure:"dir"`
	Manifest         string `yaml:"manifest" mapstructure:"manifest"`
	FallbackEncoding string `yaml:"fallback_encoding" mapstructure:"fallback_encoding"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// OutputConfig names the dataset files written by merge.
type OutputConfig struct {
	CSV     string `yaml:"csv" mapstructure:"csv"`
	GeoJSON string `yaml:"geojson" mapstructure:"geojson"`
}

// CacheConfig selects the durable geocode cache backend.
type CacheConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"` // file | sqlite | postgres
	Path            string `yaml:"path" mapstructure:"path"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	Table           string `yaml:"table" mapstructure:"table"`
	CheckpointEvery int    `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// GeocodeConfig configures the geocoding provider and its pacing.
type GeocodeConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"` // nominatim | google
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleKey    string `yaml:"google_key" mapstructure:"google_key"`
	CountryCodes string `yaml:"country_codes" mapstructure:"country_codes"`
	MinDelayMs   int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryWaitMs  int    `yaml:"retry_wait_ms" mapstructure:"retry_wait_ms"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// BreakerThreshold is the number of consecutive exhausted lookups after
	// which the provider is left alone for BreakerCooldownSecs. 0 disables.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// LLMConfig configures the text-generation coordinate path.
type LLMConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"` // groq | anthropic
	AnthropicKey string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	GroqKey      string  `yaml:"groq_key" mapstructure:"groq_key"`
	GroqBaseURL  string  `yaml:"groq_base_url" mapstructure:"groq_base_url"`
	Model        string  `yaml:"model" mapstructure:"model"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Output       string  `yaml:"output" mapstructure:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(err, "config: load %s", f)
		}
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HERITAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also read from their conventional variable names.
	_ = v.BindEnv("llm.groq_key", "HERITAGE_LLM_GROQ_KEY", "GROQ_API_KEY", "GROK_API_KEY")
	_ = v.BindEnv("llm.anthropic_key", "HERITAGE_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("geocode.google_key", "HERITAGE_GEOCODE_GOOGLE_KEY", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("cache.database_url", "HERITAGE_CACHE_DATABASE_URL", "DATABASE_URL")

	// Defaults
	v.SetDefault("sources.dir", "data")
	v.SetDefault("sources.manifest", "")
	v.SetDefault("sources.fallback_encoding", "latin1")
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("output.csv", "final_heritage_data.csv")
	v.SetDefault("output.geojson", "")
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.table", "geocode_cache")
	v.SetDefault("cache.checkpoint_every", 25)
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.user_agent", "heritage-cli/1.0")
	v.SetDefault("geocode.country_codes", "in")
	v.SetDefault("geocode.min_delay_ms", 1000)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.retry_wait_ms", 2000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 60)
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.output", "final_heritage_data.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath(cfg.Cache.Driver)
	}

	return &cfg, nil
}

// DefaultCachePath is the cache location used when cache.path is unset.
func DefaultCachePath(driver string) string {
	switch driver {
	case "file":
		return "geocode_cache.json"
	case "sqlite":
		return "geocode_cache.db"
	default:
		return ""
	}
}

// Validate checks the settings a command needs. mode is "merge",
// "llm" or "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	checkCache := func() {
		switch c.Cache.Driver {
		case "file", "sqlite":
			if c.Cache.Path == "" {
				errs = append(errs, "cache.path is required for the "+c.Cache.Driver+" driver")
			}
		case "postgres":
			if c.Cache.DatabaseURL == "" {
				errs = append(errs, "cache.database_url is required for the postgres driver")
			}
		default:
			errs = append(errs, "cache.driver must be file, sqlite or postgres")
		}
		if c.Cache.CheckpointEvery < 0 {
			errs = append(errs, "cache.checkpoint_every must be >= 0")
		}
	}

	switch mode {
	case "merge":
		if c.Sources.Dir == "" && c.Sources.Manifest == "" {
			errs = append(errs, "sources.dir or sources.manifest is required")
		}
		if c.Sources.Concurrency < 1 {
			errs = append(errs, "sources.concurrency must be >= 1")
		}
		if c.Output.CSV == "" {
			errs = append(errs, "output.csv is required")
		}
		checkCache()
		switch c.Geocode.Provider {
		case "nominatim":
			if c.Geocode.UserAgent == "" {
				errs = append(errs, "geocode.user_agent is required by the nominatim usage policy")
			}
		case "google":
			if c.Geocode.GoogleKey == "" {
				errs = append(errs, "geocode.google_key is required for the google provider")
			}
		default:
			errs = append(errs, "geocode.provider must be nominatim or google")
		}
		if c.Geocode.MaxAttempts < 1 {
			errs = append(errs, "geocode.max_attempts must be >= 1")
		}
		if c.Geocode.BreakerThreshold < 0 {
			errs = append(errs, "geocode.breaker_threshold must be >= 0")
		}
		if c.Geocode.MinDelayMs < 0 || c.Geocode.RetryWaitMs < 0 {
			errs = append(errs, "geocode delays must be >= 0")
		}
	case "llm":
		if c.Sources.Dir == "" {
			errs = append(errs, "sources.dir is required")
		}
		if c.LLM.Output == "" {
			errs = append(errs, "llm.output is required")
		}
		switch c.LLM.Provider {
		case "groq":
			if c.LLM.GroqKey == "" {
				errs = append(errs, "llm.groq_key is required for the groq provider")
			}
		case "anthropic":
			if c.LLM.AnthropicKey == "" {
				errs = append(errs, "llm.anthropic_key is required for the anthropic provider")
			}
		default:
			errs = append(errs, "llm.provider must be groq or anthropic")
		}
	case "cache":
		checkCache()
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
