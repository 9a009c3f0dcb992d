package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/tender"
)

//go:embed analysis_prompt.md
var analysisPromptTemplate string

var (
	analysisResponseSchema = responseSchema(analysisShape)
	analysisSchemaLoader   = gojsonschema.NewGoLoader(jsonSchema(analysisShape))
)

// Analyzer evaluates an encoded document against a subject and returns
// the schema-constrained analysis.
type Analyzer struct {
	client *Client
	model  string
}

func NewAnalyzer(client *Client, model string) *Analyzer {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultAnalysisModel
	}
	return &Analyzer{client: client, model: model}
}

func (a *Analyzer) Analyze(ctx context.Context, req tender.Request, doc *document.Encoded, marketContext string) (*tender.Analysis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("encoded document is required")
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, &tender.EncodingError{Name: doc.Name, Err: err}
	}

	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = document.MIMETypePDF
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: buildAnalysisPrompt(req, marketContext)},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisResponseSchema,
	}

	resp, err := a.client.generate(ctx, a.model, contents, config,
		zap.String("subject", req.Subject()),
		zap.String("variant", req.Variant.String()),
		zap.String("document", doc.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	raw := responseText(resp)
	if raw == "" {
		return nil, emptyResponseError(resp)
	}

	return parseAnalysis(raw)
}

func buildAnalysisPrompt(req tender.Request, marketContext string) string {
	template := analysisPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "{{SUBJECT_BLOCK}}\n\nCOMPANY CONTEXT:\n{{MARKET_CONTEXT}}\n\nRETURN ONLY VALID JSON."
	}

	marketContext = strings.TrimSpace(marketContext)
	if marketContext == "" {
		marketContext = tender.FallbackText(req.Subject())
	}

	prompt := strings.ReplaceAll(template, "{{SUBJECT_BLOCK}}", subjectBlock(req))
	prompt = strings.ReplaceAll(prompt, "{{MARKET_CONTEXT}}", marketContext)
	prompt = strings.ReplaceAll(prompt, "{{SUBJECT}}", req.Subject())
	return strings.TrimSpace(prompt)
}

func subjectBlock(req tender.Request) string {
	if req.Variant == tender.WithoutGrounding && req.Solution != nil {
		block := fmt.Sprintf("SOLUTION TO EVALUATE: %q", strings.TrimSpace(req.Solution.Name))
		if desc := strings.TrimSpace(req.Solution.Description); desc != "" {
			block += "\nSOLUTION DESCRIPTION: " + desc
		}
		return block
	}
	return fmt.Sprintf("COMPANY TO EVALUATE: %q", req.Subject())
}

func emptyResponseError(resp *genai.GenerateContentResponse) *tender.EmptyResponseError {
	err := &tender.EmptyResponseError{}
	if resp == nil {
		return err
	}
	if resp.PromptFeedback != nil {
		err.BlockReason = string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		err.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return err
}

// parseAnalysis validates raw against the analysis schema before decoding it.
// Nothing partially parsed is ever returned.
func parseAnalysis(raw string) (*tender.Analysis, error) {
	cleaned := extractJSON(raw)

	var body any
	if err := json.Unmarshal([]byte(cleaned), &body); err != nil {
		return nil, &tender.SchemaViolationError{Err: fmt.Errorf("parse analysis response: %w", err)}
	}

	data, ok := body.(map[string]any)
	if !ok {
		return nil, &tender.SchemaViolationError{Violations: []string{"response is not a JSON object"}}
	}
	dropNulls(data)

	result, err := gojsonschema.Validate(analysisSchemaLoader, gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, &tender.SchemaViolationError{Err: fmt.Errorf("validate analysis response: %w", err)}
	}
	if !result.Valid() {
		violations := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			violations[i] = desc.String()
		}
		return nil, &tender.SchemaViolationError{Violations: violations}
	}

	var analysis tender.Analysis
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, &tender.SchemaViolationError{Err: fmt.Errorf("decode analysis response: %w", err)}
	}

	return &analysis, nil
}

// dropNulls removes null members at every object depth so optional fields read
// as absent. Null array elements are kept and left to validation.
func dropNulls(data map[string]any) {
	for key, value := range data {
		switch v := value.(type) {
		case nil:
			delete(data, key)
		case map[string]any:
			dropNulls(v)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					dropNulls(obj)
				}
			}
		}
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
