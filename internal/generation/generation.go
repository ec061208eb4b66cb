// Package generation calls hosted language models to compose answers.
package generation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/config"
	"github.com/hyperjump/campusbot/internal/errs"
)

// Role of a prompt turn as understood by the generation service.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the ordered prompt.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Params are the sampling settings sent with every request.
type Params struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"top_k"`
	TopP            float64 `json:"top_p"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// ParamsFromConfig returns the sampling settings of cfg.
func ParamsFromConfig(cfg config.GenerationConfig) Params {
	return Params{
		Temperature:     cfg.TemperatureOrDefault(),
		TopK:            cfg.TopK,
		TopP:            cfg.TopP,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Generator produces a completion for an ordered list of turns.
// Implementations return an *errs.Error of kind upstream_generation when the
// service fails or returns no text. They do not retry.
type Generator interface {
	Generate(ctx context.Context, turns []Turn, params Params) (string, error)
}

// New returns the Generator for cfg.Provider. A missing API key is a
// configuration error reported before any network call.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.Configuration("generation.New", "api key for provider "+cfg.Provider+" is not set")
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg.APIKey, cfg.Model, cfg.BaseURL, WithTimeout(cfg.Timeout), WithLogger(logger)), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL, WithTimeout(cfg.Timeout), WithLogger(logger)), nil
	default:
		return nil, errs.Configuration("generation.New", "unknown provider "+cfg.Provider)
	}
}
