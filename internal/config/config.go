package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TILEMOSAIC_PORT.
const EnvPrefix = "TILEMOSAIC"

type Config struct {
	Port        int    `mapstructure:"port" default:"8080" validate:"min=1,max=65535"`
	LogLevel    string `mapstructure:"log_level" default:"info" validate:"oneof=debug info warn error"`
	LogEncoding string `mapstructure:"log_encoding" default:"json" validate:"oneof=json console"`

	Workers  int `mapstructure:"workers" default:"8" validate:"min=1,max=64"`
	MaxTiles int `mapstructure:"max_tiles" default:"200" validate:"min=1,max=1048576"`

	// CacheType backs the session of one render; ServeCacheType backs the
	// server's process-wide session, where failed tiles stay cached until
	// evicted.
	CacheType        string `mapstructure:"cache_type" default:"memory" validate:"oneof=memory lru disabled"`
	ServeCacheType   string `mapstructure:"serve_cache_type" default:"lru" validate:"oneof=memory lru disabled"`
	CacheMemoryTiles int    `mapstructure:"cache_memory_tiles" default:"2000" validate:"min=1,max=1048576"`
	DiskCacheDir     string `mapstructure:"disk_cache_dir"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout" default:"30s" validate:"min=1s"`
	UserAgent   string        `mapstructure:"user_agent" default:"tilemosaic" validate:"required"`

	DefaultSource string            `mapstructure:"default_source" default:"osm" validate:"required"`
	SourcesDir    string            `mapstructure:"sources_dir"`
	Sources       map[string]string `mapstructure:"sources" validate:"omitempty,dive,keys,required,endkeys,required"`

	VipsMaxCacheMB  int `mapstructure:"vips_max_cache_mb" default:"256" validate:"min=0"`
	VipsConcurrency int `mapstructure:"vips_concurrency" default:"1" validate:"min=0"`
	JPEGQuality     int `mapstructure:"jpeg_quality" default:"82" validate:"min=1,max=100"`

	AllowedOrigin string `mapstructure:"allowed_origin"`

	// WarmupLevels pre-fetches zoom 0..WarmupLevels of the default source
	// when the server starts; 0 disables it.
	WarmupLevels  int `mapstructure:"warmup_levels" default:"0" validate:"min=0,max=4"`
	WarmupWorkers int `mapstructure:"warmup_workers" default:"1" validate:"min=1,max=1048576"`
}

var keys = []string{
	"port", "log_level", "log_encoding",
	"workers", "max_tiles",
	"cache_type", "serve_cache_type", "cache_memory_tiles", "disk_cache_dir",
	"http_timeout", "user_agent",
	"default_source", "sources_dir",
	"vips_max_cache_mb", "vips_concurrency", "jpeg_quality",
	"allowed_origin",
	"warmup_levels", "warmup_workers",
}

// Load reads the optional config file at path (TOML, YAML or JSON by
// extension), overlays TILEMOSAIC_* environment variables and validates
// the result. Unset keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
