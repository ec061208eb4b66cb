package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates an Anthropic client. SDK retries are disabled;
// retrying is left to the caller.
func NewAnthropicClient(apiKey, model, baseURL string, opts ...Option) *AnthropicClient {
	o := buildOptions(opts)
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.httpClient),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
		logger: o.logger,
	}
}

// Generate sends turns as alternating user/assistant messages and returns the text blocks joined.
func (c *AnthropicClient) Generate(ctx context.Context, turns []Turn, params Params) (string, error) {
	const op = "anthropic.Generate"
	messages := toAnthropicMessages(turns)
	if len(messages) == 0 {
		return "", errs.Generation(op, 0, "prompt has no turns", nil)
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(params.MaxOutputTokens),
		Messages:    messages,
		Temperature: anthropic.Float(params.Temperature),
		TopK:        anthropic.Int(int64(params.TopK)),
		TopP:        anthropic.Float(params.TopP),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", errs.Generation(op, apiErr.StatusCode, "api error", err)
		}
		return "", errs.Generation(op, 0, "request failed", err)
	}
	c.logger.Debug("anthropic response",
		zap.String("model", c.model),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Duration("elapsed", time.Since(start)),
	)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errs.Generation(op, 200, "response has no text content", nil)
	}
	return text, nil
}

// toAnthropicMessages maps turns to messages, merging consecutive turns of the
// same role and dropping leading assistant turns (the API requires a user turn first).
func toAnthropicMessages(turns []Turn) []anthropic.MessageParam {
	type merged struct {
		role Role
		text string
	}
	var ms []merged
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if len(ms) == 0 && t.Role != RoleUser {
			continue
		}
		if n := len(ms); n > 0 && ms[n-1].role == t.Role {
			ms[n-1].text += "\n\n" + t.Text
			continue
		}
		ms = append(ms, merged{role: t.Role, text: t.Text})
	}
	out := make([]anthropic.MessageParam, 0, len(ms))
	for _, m := range ms {
		block := anthropic.NewTextBlock(m.text)
		if m.role == RoleModel {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
