// Package config loads lazytl settings from a TOML file, an optional .env
// file and LAZYTL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ZaguanLabs/lazytl"
	"github.com/ZaguanLabs/lazytl/provider"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LAZYTL_"

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Duration is a time.Duration written as "30s" or "1h" in files and
// environment variables.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete lazytl configuration.
type Config struct {
	Provider     string   `toml:"provider"      env:"PROVIDER"`
	APIKey       string   `toml:"api_key"       env:"API_KEY"`
	APIURL       string   `toml:"api_url"       env:"API_URL"`
	Model        string   `toml:"model"         env:"MODEL"`
	SourceLocale string   `toml:"source_locale" env:"SOURCE_LOCALE"`
	Locales      []string `toml:"locales"       env:"LOCALES" envSeparator:","`

	BatchLimit   int      `toml:"batch_limit"           env:"BATCH_LIMIT"`
	MaxChunks    int      `toml:"max_concurrent_chunks" env:"MAX_CONCURRENT_CHUNKS"`
	ChunkTimeout Duration `toml:"chunk_timeout"         env:"CHUNK_TIMEOUT"`
	Dedup        bool     `toml:"dedup"                 env:"DEDUP"`
	Coalesce     bool     `toml:"coalesce"              env:"COALESCE"`

	Cache     CacheConfig     `toml:"cache"      envPrefix:"CACHE_"`
	Writer    WriterConfig    `toml:"writer"     envPrefix:"WRITER_"`
	Retry     RetryConfig     `toml:"retry"      envPrefix:"RETRY_"`
	RateLimit RateLimitConfig `toml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Log       LogConfig       `toml:"log"        envPrefix:"LOG_"`
}

// CacheConfig selects the translation cache backend.
type CacheConfig struct {
	Backend   string   `toml:"backend"    env:"BACKEND"`
	URL       string   `toml:"url"        env:"URL"`
	TTL       Duration `toml:"ttl"        env:"TTL"`
	KeyPrefix string   `toml:"key_prefix" env:"KEY_PREFIX"`
}

// WriterConfig tunes the asynchronous cache writer.
type WriterConfig struct {
	QueueSize int      `toml:"queue_size" env:"QUEUE_SIZE"`
	Timeout   Duration `toml:"timeout"    env:"TIMEOUT"`
}

// RetryConfig controls provider retries.
type RetryConfig struct {
	MaxRetries int `toml:"max_retries" env:"MAX_RETRIES"`
}

// RateLimitConfig caps provider calls.
type RateLimitConfig struct {
	RPM int `toml:"rpm" env:"RPM"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	JSON  bool   `toml:"json"  env:"JSON"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider:     string(provider.KindDeepL),
		SourceLocale: "sv",
		Locales:      []string{"sv", "en", "fi"},
		BatchLimit:   lazytl.DefaultBatchLimit,
		ChunkTimeout: Duration(30 * time.Second),
		Dedup:        true,
		Cache: CacheConfig{
			Backend:   BackendMemory,
			KeyPrefix: "lazytl:",
		},
		Writer: WriterConfig{
			QueueSize: lazytl.DefaultWriteQueueSize,
			Timeout:   Duration(lazytl.DefaultWriteTimeout),
		},
		Retry: RetryConfig{MaxRetries: lazytl.DefaultRetryConfig().MaxRetries},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path names an optional TOML file; an empty
// path skips it. A .env file in the working directory is loaded when
// present, without overriding variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	// Vendor-standard variables as a last resort for the credential.
	if cfg.APIKey == "" {
		switch provider.Kind(cfg.Provider) {
		case provider.KindDeepL:
			cfg.APIKey = os.Getenv("DEEPL_AUTH_KEY")
		case provider.KindOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path) // #nosec G304 - path is operator-provided
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config: %s: %s", path, strict.String())
		}
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration and normalises locale codes.
func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch provider.Kind(c.Provider) {
	case provider.KindDeepL, provider.KindOpenAI, provider.KindNone:
	default:
		return fmt.Errorf("config: provider must be deepl, openai or none, got %q", c.Provider)
	}

	set, err := lazytl.NewLocaleSet(c.SourceLocale, c.Locales)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.Locales) > 0 && !slices.ContainsFunc(c.Locales, func(l string) bool {
		return lazytl.SameLanguage(lazytl.Locale(lazytl.NormalizeLocale(l)), set.Source)
	}) {
		return fmt.Errorf("config: source_locale %q is not one of locales %v", c.SourceLocale, c.Locales)
	}
	c.SourceLocale = string(set.Source)
	c.Locales = c.Locales[:0]
	for _, l := range set.Supported {
		c.Locales = append(c.Locales, string(l))
	}

	if c.BatchLimit < 1 {
		return fmt.Errorf("config: batch_limit must be at least 1, got %d", c.BatchLimit)
	}
	if c.MaxChunks < 0 {
		return fmt.Errorf("config: max_concurrent_chunks must not be negative")
	}
	if c.ChunkTimeout < 0 || c.Cache.TTL < 0 || c.Writer.Timeout < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	if c.Retry.MaxRetries < 0 || c.RateLimit.RPM < 0 || c.Writer.QueueSize < 0 {
		return fmt.Errorf("config: retry, rate limit and queue settings must not be negative")
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "", BackendMemory:
		c.Cache.Backend = BackendMemory
	case BackendRedis, BackendPostgres, BackendSQLite:
		if strings.TrimSpace(c.Cache.URL) == "" {
			return fmt.Errorf("config: cache.url is required for the %s backend", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LocaleSet returns the validated source and supported locales.
func (c *Config) LocaleSet() (lazytl.LocaleSet, error) {
	return lazytl.NewLocaleSet(c.SourceLocale, c.Locales)
}

// ProviderConfig maps the configuration onto provider.Config.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Kind:       provider.Kind(c.Provider),
		APIKey:     c.APIKey,
		BaseURL:    c.APIURL,
		Model:      c.Model,
		MaxRetries: c.Retry.MaxRetries,
		RPM:        c.RateLimit.RPM,
	}
}

// TranslatorOptions maps the configuration onto translator options. The
// store is wired separately because opening it needs a context.
func (c *Config) TranslatorOptions(logger *slog.Logger) []lazytl.TranslatorOption {
	return []lazytl.TranslatorOption{
		lazytl.WithLogger(logger),
		lazytl.WithBatchLimit(c.BatchLimit),
		lazytl.WithMaxConcurrentChunks(c.MaxChunks),
		lazytl.WithChunkTimeout(c.ChunkTimeout.Std()),
		lazytl.WithDedup(c.Dedup),
		lazytl.WithCoalescing(c.Coalesce),
		lazytl.WithWriteQueue(c.Writer.QueueSize, c.Writer.Timeout.Std()),
	}
}

// NewLogger builds the slog logger described by c.Log.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Log.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", lazytl.Name)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
