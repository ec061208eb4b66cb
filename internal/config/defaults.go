package config

import "time"

// Storage drivers and generation providers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DefaultTemperature is used when generation.temperature is not set.
const DefaultTemperature = 0.7

// DefaultFallbackMessage is shown when the generation service fails.
const DefaultFallbackMessage = "Lo siento, en este momento no puedo responder tu consulta. " +
	"Puedes comunicarte con la oficina de admisiones por teléfono o correo electrónico, " +
	"o visitar la sección de contacto del sitio web de la universidad."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.EnvFile == "" {
		cfg.EnvFile = "./.env"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.TaskTimeout == 0 {
		cfg.Server.TaskTimeout = 30 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/campusbot/data/db/campusbot.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/campusbot/data/indices/knowledge.bleve"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderGemini
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case ProviderAnthropic:
			cfg.Generation.Model = "claude-3-5-haiku-latest"
		default:
			cfg.Generation.Model = "gemini-2.0-flash"
		}
	}
	if cfg.Generation.BaseURL == "" && cfg.Generation.Provider == ProviderGemini {
		cfg.Generation.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Generation.Temperature == nil {
		t := DefaultTemperature
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.TopK == 0 {
		cfg.Generation.TopK = 40
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.95
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 1024
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Assistant.Name == "" {
		cfg.Assistant.Name = "Asistente Virtual"
	}
	if cfg.Assistant.Institution == "" {
		cfg.Assistant.Institution = "la universidad"
	}
	if cfg.Assistant.FallbackMessage == "" {
		cfg.Assistant.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.Seed.Extensions == nil {
		cfg.Seed.Extensions = []string{".yaml", ".yml", ".xlsx", ".csv"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Seed.Directories) > 0 && cfg.Seed.Recursive == nil {
		t := true
		cfg.Seed.Recursive = &t
	}
}
