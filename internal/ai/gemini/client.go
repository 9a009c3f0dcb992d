package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/utils"
)

const (
	// Provider is the value reported in the ai_provider log field.
	Provider = "gemini"

	DefaultContextModel   = "gemini-2.5-flash"
	DefaultAnalysisModel  = "gemini-2.5-pro"
	DefaultAssistantModel = "gemini-2.5-flash-lite"

	defaultMaxLogLength = 200
)

// Models is the part of the GenAI models service used by the pipeline stages.
// *genai.Models satisfies it; tests substitute a fake backend.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client is the backend handle built once at start-up and shared by every stage.
type Client struct {
	models    Models
	logger    *zap.Logger
	maxLogLen int
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, maxLogLength int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return NewClientWithModels(client.Models, maxLogLength, log), nil
}

// NewClientWithModels wraps an existing models service.
func NewClientWithModels(models Models, maxLogLength int, log *zap.Logger) *Client {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		models:    models,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, fields ...zap.Field) (*genai.GenerateContentResponse, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	log := logger.WithFields(logger.WithCommonFields(c.logger, Provider, model), fields...)

	prompt := lastText(contents)
	log.Debug("gemini generate content request",
		zap.Int("contents", len(contents)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := responseText(resp)
	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, c.maxLogLen)),
	)

	return resp, nil
}

// responseText concatenates the text parts of the first candidate that has any,
// skipping thought summaries.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		var builder strings.Builder
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}

		if text := strings.TrimSpace(builder.String()); text != "" {
			return text
		}
	}

	return ""
}

func lastText(contents []*genai.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		content := contents[i]
		if content == nil {
			continue
		}
		for j := len(content.Parts) - 1; j >= 0; j-- {
			if part := content.Parts[j]; part != nil && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
