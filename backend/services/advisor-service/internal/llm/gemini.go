package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"smartcharge/backend/services/advisor-service/internal/advisory"
)

const (
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 * time.Second
)

// GeminiConfig configures the Gemini invoker.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	// Temperature is sent only when set; zero is a valid value.
	Temperature *float32
}

// GeminiInvoker implements advisory.Invoker on top of the Gemini API, asking for
// JSON output that follows the advisory output schema.
type GeminiInvoker struct {
	client      *genai.Client
	model       string
	temperature *float32
	logger      *zap.Logger
}

// NewGeminiInvoker creates a genai client for the Gemini developer API.
func NewGeminiInvoker(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiInvoker, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}

	return &GeminiInvoker{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger.With(zap.String("model", model)),
	}, nil
}

// Model returns the configured model name.
func (g *GeminiInvoker) Model() string { return g.model }

// Invoke sends one GenerateContent request. Transport and API errors are returned
// as is. An empty answer yields a nil message.
func (g *GeminiInvoker) Invoke(ctx context.Context, prompt string, output *advisory.Schema) (json.RawMessage, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if g.temperature != nil {
		config.Temperature = genai.Ptr(*g.temperature)
	}
	if output != nil {
		config.ResponseJsonSchema = output.JSONSchema()
	}

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Warn("gemini request failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, err
	}

	text := strings.TrimSpace(resp.Text())
	g.logger.Debug("gemini response received",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("bytes", len(text)),
	)
	if text == "" {
		// No candidate text is a contract violation, not a transport failure.
		return nil, nil
	}
	return json.RawMessage(StripCodeFence(text)), nil
}

// StripCodeFence removes a surrounding markdown code fence (```json ... ```), which
// some models add even in JSON mode.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
