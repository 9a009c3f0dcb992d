package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/tender"
)

const (
	assistantInstruction = "You are a fast legal and tender assistant. Provide concise, helpful answers about the analysis results."
	// AssistantFallbackAnswer is returned when the backend produced no text.
	AssistantFallbackAnswer = "I'm sorry, I couldn't process that."
)

// Assistant answers follow-up questions about an analysis.
type Assistant struct {
	client *Client
	model  string
}

func NewAssistant(client *Client, model string) *Assistant {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultAssistantModel
	}
	return &Assistant{client: client, model: model}
}

// Answer sends history followed by query as a new user turn.
func (a *Assistant) Answer(ctx context.Context, history []tender.Turn, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query is required")
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for i, turn := range history {
		if !turn.Role.Valid() {
			return "", fmt.Errorf("turn %d: unsupported role %q", i, turn.Role)
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}
	contents = append(contents, genai.NewContentFromText(query, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(assistantInstruction, genai.RoleUser),
	}

	resp, err := a.client.generate(ctx, a.model, contents, config, zap.Int("history_turns", len(history)))
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}

	answer := responseText(resp)
	if answer == "" {
		return AssistantFallbackAnswer, nil
	}
	return answer, nil
}
