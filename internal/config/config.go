// Package config provides configuration loading and structs for the campusbot server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/campusbot/internal/errs"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	EnvFile    string           `yaml:"env_file"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Generation GenerationConfig `yaml:"generation"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Seed       SeedConfig       `yaml:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// TaskTimeout bounds each background task (auto-learn, pattern detection).
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// StorageConfig holds the database and index locations.
type StorageConfig struct {
	Driver         string `yaml:"driver"` // sqlite3 or postgres
	DatabasePath   string `yaml:"database_path"`
	DSN            string `yaml:"dsn,omitempty"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// GenerationConfig selects and tunes the text generation provider.
// Zero sampling values are replaced by defaults.
type GenerationConfig struct {
	Provider        string        `yaml:"provider"` // gemini or anthropic
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key,omitempty"`
	BaseURL         string        `yaml:"base_url,omitempty"`
	Temperature     *float64      `yaml:"temperature,omitempty"` // nil means DefaultTemperature; 0 is deterministic
	TopK            int           `yaml:"top_k"`
	TopP            float64       `yaml:"top_p"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// TemperatureOrDefault returns the configured temperature, or
// DefaultTemperature when unset.
func (g GenerationConfig) TemperatureOrDefault() float64 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

// MaxTemperature is the highest temperature the provider accepts.
func MaxTemperature(provider string) float64 {
	if provider == ProviderAnthropic {
		return 1
	}
	return 2
}

// AssistantConfig holds the persona used in generation prompts and user-facing fallbacks.
type AssistantConfig struct {
	Name            string `yaml:"name"`
	Institution     string `yaml:"institution"`
	FallbackMessage string `yaml:"fallback_message"`
}

// SeedConfig lists directories of knowledge seed files to import and watch.
type SeedConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (s *SeedConfig) RecursiveOrDefault() bool {
	if s.Recursive != nil {
		return *s.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.EnvFile = expandPath(cfg.EnvFile, configDir)
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Seed.Directories {
		cfg.Seed.Directories[i] = expandPath(cfg.Seed.Directories[i], configDir)
	}

	return &cfg, nil
}

// ApplyEnv loads cfg.EnvFile (when it exists) into the process environment
// and applies secret overrides from it. Variables already set in the
// environment win over the file.
func ApplyEnv(cfg *Config) error {
	if cfg.EnvFile != "" {
		if _, err := os.Stat(cfg.EnvFile); err == nil {
			if err := godotenv.Load(cfg.EnvFile); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}
	if v := firstEnv("CAMPUSBOT_DATABASE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	switch cfg.Generation.Provider {
	case ProviderGemini:
		if v := firstEnv("CAMPUSBOT_GEMINI_API_KEY", "GEMINI_API_KEY"); v != "" {
			cfg.Generation.APIKey = v
		}
	case ProviderAnthropic:
		if v := firstEnv("CAMPUSBOT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
			cfg.Generation.APIKey = v
		}
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks settings that would otherwise fail later at first use.
// API keys are checked by the generation provider constructors.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.DatabasePath == "" {
			return errs.Configuration("config", "storage.database_path is required for sqlite3")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errs.Configuration("config", "storage.dsn is required for postgres")
		}
	default:
		return errs.Configuration("config", fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Generation.Provider {
	case ProviderGemini, ProviderAnthropic:
	default:
		return errs.Configuration("config", fmt.Sprintf("unknown generation provider %q", c.Generation.Provider))
	}
	g := c.Generation
	if temp, limit := g.TemperatureOrDefault(), MaxTemperature(g.Provider); temp < 0 || temp > limit {
		return errs.Configuration("config", fmt.Sprintf("generation.temperature must be within [0, %g] for %s", limit, g.Provider))
	}
	if g.TopP <= 0 || g.TopP > 1 {
		return errs.Configuration("config", "generation.top_p must be within (0, 1]")
	}
	if g.TopK < 1 || g.MaxOutputTokens < 1 {
		return errs.Configuration("config", "generation.top_k and generation.max_output_tokens must be positive")
	}
	return nil
}

// DataSource returns the database/sql data source for the configured driver.
func (s StorageConfig) DataSource() string {
	if s.Driver == DriverPostgres {
		return s.DSN
	}
	return s.DatabasePath
}

// Save writes the config to path. Secrets are not written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Generation.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." || strings.HasPrefix(path, "../") {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
