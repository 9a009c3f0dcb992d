package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/tender"
)

//go:embed context_prompt.md
var contextPromptTemplate string

const defaultSourceTitle = "Source"

// Retriever produces a short market brief for an entity using search grounding.
type Retriever struct {
	client *Client
	model  string
}

func NewRetriever(client *Client, model string) *Retriever {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultContextModel
	}
	return &Retriever{client: client, model: model}
}

// Retrieve returns the market context for entity. Errors are returned as is;
// substituting the fallback context is up to the caller.
func (r *Retriever) Retrieve(ctx context.Context, entity string) (tender.MarketContext, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return tender.MarketContext{}, errors.New("entity name is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buildContextPrompt(entity), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := r.client.generate(ctx, r.model, contents, config, zap.String("entity", entity))
	if err != nil {
		return tender.MarketContext{}, fmt.Errorf("retrieve market context: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		text = fmt.Sprintf("Market overview for %s.", entity)
	}

	return tender.MarketContext{
		Text:    text,
		Sources: groundingSources(resp),
	}, nil
}

func buildContextPrompt(entity string) string {
	template := contextPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Summarise the market position of {{ENTITY_NAME}}."
	}
	return strings.TrimSpace(strings.ReplaceAll(template, "{{ENTITY_NAME}}", entity))
}

// groundingSources collects web references of the first candidate, in order,
// dropping chunks without a URI and keeping at most tender.MaxGroundingSources.
func groundingSources(resp *genai.GenerateContentResponse) []tender.GroundingSource {
	sources := []tender.GroundingSource{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return sources
	}

	metadata := resp.Candidates[0].GroundingMetadata
	if metadata == nil {
		return sources
	}

	for _, chunk := range metadata.GroundingChunks {
		if len(sources) == tender.MaxGroundingSources {
			break
		}
		if chunk == nil || chunk.Web == nil {
			continue
		}

		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" {
			continue
		}

		title := strings.TrimSpace(chunk.Web.Title)
		if title == "" {
			title = defaultSourceTitle
		}

		sources = append(sources, tender.GroundingSource{Title: title, URI: uri})
	}

	return sources
}
