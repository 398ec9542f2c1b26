// Package openai implements llm.FieldExtractor against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/llm"
)

type Client struct {
	api *goopenai.Client
	cfg Config
	log *slog.Logger
}

// NewClient builds a Client. A nil logger falls back to slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{api: goopenai.NewClientWithConfig(apiCfg), cfg: cfg, log: logger}
}

// ExtractFields asks the model for the application's fields in JSON mode and
// validates the reply against the schema before returning it.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ApplicationFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"session_id", common.SessionIDFromContext(ctx),
		"model", c.cfg.Model,
		"text_len", len(req.RecognizedText),
		"missing_fields", len(req.MissingFields),
		"known_vendors", len(req.KnownVendors),
	)

	schema := llm.BuildFieldsJSONSchema(req.KnownVendors)
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return llm.ApplicationFields{}, nil, fmt.Errorf("encode schema: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.BuildSystemPrompt(req)},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildUserPrompt(req)},
			{Role: goopenai.ChatMessageRoleSystem, Content: "JSON Schema:\n" + string(schemaJSON)},
		},
	})
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ApplicationFields{}, nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid)
		return llm.ApplicationFields{}, nil, fmt.Errorf("no choices in model response")
	}

	raw := []byte(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err := llm.ValidateJSONAgainstSchema(schema, raw); err != nil {
		c.log.Error("llm.extract.schema_violation",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ApplicationFields{}, raw, err
	}

	var out llm.ApplicationFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.ApplicationFields{}, raw, fmt.Errorf("decode fields: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", out.VendorName,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}
