package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/campusbot/internal/errs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 15s
storage:
  database_path: "./campusbot.db"
generation:
  temperature: 0.2
  top_k: 20
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v, want 15s", cfg.Server.RequestTimeout)
	}
	if want := filepath.Join(filepath.Dir(path), "campusbot.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if cfg.Generation.TemperatureOrDefault() != 0.2 || cfg.Generation.TopK != 20 {
		t.Errorf("explicit generation params overwritten: %+v", cfg.Generation)
	}
	if cfg.Generation.TopP != 0.95 || cfg.Generation.MaxOutputTokens != 1024 {
		t.Errorf("generation defaults not applied: %+v", cfg.Generation)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_envFileProvidesAPIKey(t *testing.T) {
	t.Setenv("CAMPUSBOT_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	path := writeConfig(t, `
env_file: "./secrets.env"
storage:
  database_path: "./db.sqlite"
`)
	envPath := filepath.Join(filepath.Dir(path), "secrets.env")
	if err := os.WriteFile(envPath, []byte("GEMINI_API_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set, even when empty.
	os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.APIKey != "from-dotenv" {
		t.Errorf("api key = %q, want from-dotenv", cfg.Generation.APIKey)
	}
}

func TestApplyEnv_processEnvWins(t *testing.T) {
	t.Setenv("CAMPUSBOT_ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("CAMPUSBOT_DATABASE_DSN", "postgres://bot@db/campusbot?sslmode=disable")
	cfg := &Config{Generation: GenerationConfig{Provider: ProviderAnthropic, APIKey: "from-yaml"}}
	if err := ApplyEnv(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.APIKey != "sk-env" {
		t.Errorf("api key = %q, want sk-env", cfg.Generation.APIKey)
	}
	if !strings.HasPrefix(cfg.Storage.DSN, "postgres://") {
		t.Errorf("dsn = %q", cfg.Storage.DSN)
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Storage.Driver != DriverSQLite || cfg.Generation.Provider != ProviderGemini {
		t.Errorf("driver/provider defaults: %+v %+v", cfg.Storage, cfg.Generation)
	}
	if cfg.Generation.Model == "" || cfg.Generation.BaseURL == "" {
		t.Error("gemini model and base url should default")
	}
	if cfg.Assistant.FallbackMessage != DefaultFallbackMessage {
		t.Error("fallback message should default")
	}
	if len(cfg.Seed.Extensions) == 0 {
		t.Error("seed extensions should default")
	}
	if cfg.Seed.Recursive != nil {
		t.Error("recursive stays unset without seed directories")
	}
	if !cfg.Seed.RecursiveOrDefault() {
		t.Error("RecursiveOrDefault should be true when unset")
	}

	anth := Config{Generation: GenerationConfig{Provider: ProviderAnthropic}}
	ApplyDefaults(&anth)
	if !strings.HasPrefix(anth.Generation.Model, "claude") || anth.Generation.BaseURL != "" {
		t.Errorf("anthropic defaults: %+v", anth.Generation)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "openai" }},
		{"temperature too high", func(c *Config) { c.Generation.Temperature = floatPtr(3) }},
		{"temperature above anthropic range", func(c *Config) {
			c.Generation.Provider = ProviderAnthropic
			c.Generation.Temperature = floatPtr(1.5)
		}},
		{"negative temperature", func(c *Config) { c.Generation.Temperature = floatPtr(-0.1) }},
		{"top_p out of range", func(c *Config) { c.Generation.TopP = 1.5 }},
		{"negative top_k", func(c *Config) { c.Generation.TopK = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errs.IsKind(err, errs.KindConfiguration) {
				t.Errorf("Validate() = %v, want configuration error", err)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestLoad_zeroTemperatureKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("generation:\n  provider: anthropic\n  temperature: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.Temperature == nil || *cfg.Generation.Temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", cfg.Generation.Temperature)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	unset := Config{}
	ApplyDefaults(&unset)
	if got := unset.Generation.TemperatureOrDefault(); got != DefaultTemperature {
		t.Errorf("default temperature = %v, want %v", got, DefaultTemperature)
	}
	// Gemini accepts temperatures above 1.
	unset.Generation.Temperature = floatPtr(1.5)
	if err := unset.Validate(); err != nil {
		t.Errorf("Validate() = %v for gemini temperature 1.5", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path.db", "/abs/path.db"},
		{"./data/db.sqlite", "/etc/campusbot/data/db.sqlite"},
		{"../shared/seed", "/etc/shared/seed"},
		{"~/campusbot/db.sqlite", filepath.Join(home, "campusbot/db.sqlite")},
		{"campusbot/db.sqlite", filepath.Join(home, "campusbot/db.sqlite")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/etc/campusbot"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSave_omitsSecrets(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Generation.APIKey = "secret"
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, &cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("saved config contains the api key")
	}
	if cfg.Generation.APIKey != "secret" {
		t.Error("Save must not modify the in-memory config")
	}
}
