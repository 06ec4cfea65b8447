package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/otl-tools/otltemplate/internal/pipeline"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "OTLTEMPLATE"

// Config represents the otltemplate configuration
type Config struct {
	IgnoreRelations  bool     `mapstructure:"ignore_relations"`
	FilterAttributes bool     `mapstructure:"filter_attributes_by_subset"`
	ClassURIs        []string `mapstructure:"class_uris"`
	DummyRows        int      `mapstructure:"dummy_data_rows"`
	AddGeometry      bool     `mapstructure:"add_geometry"`
	AttributeInfo    bool     `mapstructure:"add_attribute_info"`
	TagDeprecated    bool     `mapstructure:"tag_deprecated"`
	ChoiceLists      bool     `mapstructure:"generate_choice_list"`
	SplitPerType     bool     `mapstructure:"split_per_type"`
	ModelDirectory   string   `mapstructure:"model_directory"`
	Workers          int      `mapstructure:"workers"`
	Seed             int64    `mapstructure:"seed"`

	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Watch  WatchConfig  `mapstructure:"watch"`

	// classesSet records whether class_uris was configured at all
	classesSet bool
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig represents HTTP API configuration
type ServerConfig struct {
	Address   string       `mapstructure:"address"`
	CacheSize int          `mapstructure:"cache_size"`
	Render    RenderConfig `mapstructure:"render_cache"`
	Redis     RedisConfig  `mapstructure:"redis"`
	Auth      AuthConfig   `mapstructure:"auth"`
}

// AuthConfig enables bearer tokens on the API when Secret is set
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RenderConfig controls reuse of rendered responses for seeded requests.
// A zero Size disables the in-process store; a Redis address replaces it.
type RenderConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RedisConfig represents the shared render cache connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WatchConfig represents watch mode configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Load loads the configuration from otltemplate.yml or otltemplate.yaml in the working
// directory, or from file when it is not empty
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("otltemplate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("class_uris")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.classesSet = v.IsSet("class_uris")
	if config.classesSet && config.ClassURIs == nil {
		config.ClassURIs = []string{}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ignore_relations", true)
	v.SetDefault("filter_attributes_by_subset", true)
	v.SetDefault("dummy_data_rows", 1)
	v.SetDefault("add_geometry", true)
	v.SetDefault("add_attribute_info", false)
	v.SetDefault("tag_deprecated", false)
	v.SetDefault("generate_choice_list", true)
	v.SetDefault("split_per_type", true)
	v.SetDefault("model_directory", "")
	v.SetDefault("workers", 0)
	v.SetDefault("seed", 0)
	v.SetDefault("log.level", "warn")
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("server.cache_size", 16)
	v.SetDefault("server.render_cache.size", 64)
	v.SetDefault("server.render_cache.ttl", 10*time.Minute)
	v.SetDefault("server.redis.addr", "")
	v.SetDefault("server.redis.password", "")
	v.SetDefault("server.redis.db", 0)
	v.SetDefault("server.auth.secret", "")
	v.SetDefault("server.auth.token_ttl", 24*time.Hour)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
}

// Request builds a template request for subset and dest from the configured options
func (c *Config) Request(subset, dest string) pipeline.TemplateRequest {
	req := pipeline.TemplateRequest{
		SubsetPath:       subset,
		Destination:      dest,
		IgnoreRelations:  c.IgnoreRelations,
		FilterAttributes: c.FilterAttributes,
		DummyRows:        c.DummyRows,
		AddGeometry:      c.AddGeometry,
		AttributeInfo:    c.AttributeInfo,
		TagDeprecated:    c.TagDeprecated,
		ChoiceLists:      c.ChoiceLists,
		SplitPerType:     c.SplitPerType,
		ModelDirectory:   c.ModelDirectory,
		Seed:             c.Seed,
	}
	if c.classesSet {
		req.ClassURIs = append([]string{}, c.ClassURIs...)
	}
	return req
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.DummyRows < 0 {
		return fmt.Errorf("dummy_data_rows must be >= 0, got: %d", cfg.DummyRows)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got: %d", cfg.Workers)
	}
	if cfg.Server.CacheSize <= 0 {
		return fmt.Errorf("server.cache_size must be > 0, got: %d", cfg.Server.CacheSize)
	}
	if cfg.Server.Render.Size < 0 {
		return fmt.Errorf("server.render_cache.size must be >= 0, got: %d", cfg.Server.Render.Size)
	}
	if cfg.Server.Render.TTL < 0 {
		return fmt.Errorf("server.render_cache.ttl must not be negative, got: %s", cfg.Server.Render.TTL)
	}
	if s := cfg.Server.Auth.Secret; s != "" && len(s) < 16 {
		return fmt.Errorf("server.auth.secret must be at least 16 characters")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got: %s", cfg.Watch.Debounce)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got: %s", cfg.Log.Level)
	}
	return nil
}
