package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the loupe configuration.
type Config struct {
	// APIKey is never written to disk. It comes from the environment or a flag.
	APIKey       string        `mapstructure:"api_key"`
	Provider     string        `mapstructure:"provider"`
	Organization string        `mapstructure:"organization"`
	Project      string        `mapstructure:"project"`
	AssistantID  string        `mapstructure:"assistant_id"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Stream       bool          `mapstructure:"stream"`
	Format       string        `mapstructure:"format"`
	Routing      RoutingConfig `mapstructure:"routing"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Privacy      PrivacyConfig `mapstructure:"privacy"`
	Log          LogConfig     `mapstructure:"log"`
	Server       ServerConfig  `mapstructure:"server"`
}

// RoutingConfig decides how a request is served depending on whether it
// carries an instruction. Values are "assistant" or "completion".
type RoutingConfig struct {
	WithInstruction    string `mapstructure:"with_instruction"`
	WithoutInstruction string `mapstructure:"without_instruction"`
}

// CacheConfig controls caching of finished reviews.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// PrivacyConfig controls redaction of source text before it is sent.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redact_secrets"`
	RedactPaths   []string `mapstructure:"redact_paths"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Formats lists the accepted values for the format key.
var Formats = []string{"text", "markdown", "json", "pretty"}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		PollInterval: time.Second,
		Stream:       true,
		Format:       "text",
		Routing: RoutingConfig{
			WithInstruction:    "completion",
			WithoutInstruction: "assistant",
		},
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7878",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for loupe.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loupe"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "loupe"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "loupe"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "loupe"), nil
	default:
		return filepath.Join(home, ".config", "loupe"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// newViper returns a viper instance seeded with defaults and env bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("LOUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bind errors only occur for an empty key.
	_ = v.BindEnv("api_key", "LOUPE_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("organization", "LOUPE_ORGANIZATION", "OPENAI_ORG_ID")
	_ = v.BindEnv("project", "LOUPE_PROJECT", "OPENAI_PROJECT_ID")
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("organization", d.Organization)
	v.SetDefault("project", d.Project)
	v.SetDefault("assistant_id", d.AssistantID)
	v.SetDefault("model", d.Model)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("stream", d.Stream)
	v.SetDefault("format", d.Format)
	v.SetDefault("routing.with_instruction", d.Routing.WithInstruction)
	v.SetDefault("routing.without_instruction", d.Routing.WithoutInstruction)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("privacy.redact_secrets", d.Privacy.RedactSecrets)
	v.SetDefault("privacy.redact_paths", d.Privacy.RedactPaths)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, overrides)
}

// LoadFrom is Load with an explicit config file path. A missing file is not an error.
func LoadFrom(path string, overrides map[string]string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the config file over the defaults. The environment is
// ignored, so the result is safe to Save back.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("invalid format %q (want one of %s)", c.Format, strings.Join(Formats, ", "))
	}
	for key, kind := range map[string]string{
		"routing.with_instruction":    c.Routing.WithInstruction,
		"routing.without_instruction": c.Routing.WithoutInstruction,
	} {
		switch kind {
		case "assistant", "completion", "model":
		default:
			return fmt.Errorf("invalid %s %q (want assistant or completion)", key, kind)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Save writes the config to the config file. The API key is never written.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo is Save with an explicit path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("provider", cfg.Provider)
	v.Set("organization", cfg.Organization)
	v.Set("project", cfg.Project)
	v.Set("assistant_id", cfg.AssistantID)
	v.Set("model", cfg.Model)
	v.Set("base_url", cfg.BaseURL)
	v.Set("poll_interval", cfg.PollInterval.String())
	v.Set("stream", cfg.Stream)
	v.Set("format", cfg.Format)
	v.Set("routing.with_instruction", cfg.Routing.WithInstruction)
	v.Set("routing.without_instruction", cfg.Routing.WithoutInstruction)
	v.Set("cache.enabled", cfg.Cache.Enabled)
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.ttl_seconds", cfg.Cache.TTLSeconds)
	v.Set("privacy.redact_secrets", cfg.Privacy.RedactSecrets)
	v.Set("privacy.redact_paths", cfg.Privacy.RedactPaths)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("server.addr", cfg.Server.Addr)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Field is one settable key with its current value rendered as text.
type Field struct {
	Key   string
	Value string
}

// Fields lists every key SetField accepts, in a stable order, with the
// values held by c. The API key is masked.
func (c Config) Fields() []Field {
	return []Field{
		{"api_key", c.Settings().Redacted().APIKey},
		{"provider", c.Provider},
		{"organization", c.Organization},
		{"project", c.Project},
		{"assistant_id", c.AssistantID},
		{"model", c.Model},
		{"base_url", c.BaseURL},
		{"poll_interval", c.PollInterval.String()},
		{"stream", strconv.FormatBool(c.Stream)},
		{"format", c.Format},
		{"routing.with_instruction", c.Routing.WithInstruction},
		{"routing.without_instruction", c.Routing.WithoutInstruction},
		{"cache.enabled", strconv.FormatBool(c.Cache.Enabled)},
		{"cache.dir", c.Cache.Dir},
		{"cache.ttl_seconds", strconv.Itoa(c.Cache.TTLSeconds)},
		{"privacy.redact_secrets", strconv.FormatBool(c.Privacy.RedactSecrets)},
		{"privacy.redact_paths", strings.Join(c.Privacy.RedactPaths, ",")},
		{"log.level", c.Log.Level},
		{"log.format", c.Log.Format},
		{"server.addr", c.Server.Addr},
	}
}

// ErrSecretKey is returned when asked to persist the API key.
var ErrSecretKey = errors.New("the API key is not stored in the config file; set LOUPE_API_KEY or OPENAI_API_KEY")

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "api_key":
		return ErrSecretKey
	case "provider":
		cfg.Provider = value
	case "organization":
		cfg.Organization = value
	case "project":
		cfg.Project = value
	case "assistant_id":
		cfg.AssistantID = value
	case "model":
		cfg.Model = value
	case "base_url":
		cfg.BaseURL = value
	case "poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("poll_interval must be a duration: %w", err)
		}
		cfg.PollInterval = d
	case "stream":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("stream must be a boolean: %w", err)
		}
		cfg.Stream = b
	case "format":
		cfg.Format = value
	case "routing.with_instruction":
		cfg.Routing.WithInstruction = value
	case "routing.without_instruction":
		cfg.Routing.WithoutInstruction = value
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache.enabled must be a boolean: %w", err)
		}
		cfg.Cache.Enabled = b
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttl_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.ttl_seconds must be an integer: %w", err)
		}
		cfg.Cache.TTLSeconds = n
	case "privacy.redact_secrets":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("privacy.redact_secrets must be a boolean: %w", err)
		}
		cfg.Privacy.RedactSecrets = b
	case "privacy.redact_paths":
		cfg.Privacy.RedactPaths = nil
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Privacy.RedactPaths = append(cfg.Privacy.RedactPaths, p)
			}
		}
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	case "server.addr":
		cfg.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return cfg.Validate()
}
