package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/tender"
)

const validAnalysis = `{
  "entityName": "Acme Corp",
  "identifiedSolutions": ["Cloud hosting", "Managed SOC"],
  "deadline": "15 March 2025",
  "eligibility": {"preBidAmount": "INR 5,00,000", "totalCost": "INR 2 Cr"},
  "feasibilityScore": 78,
  "alignmentScore": 64.5,
  "reasoning": "Strong infrastructure fit, weak on on-site staffing.",
  "stakes": [{"title": "Penalty clause", "description": "Liquidated damages at 10%", "severity": "High"}],
  "priorityPoints": [{"title": "Pre-bid query", "description": "Clarify SLA", "urgency": "Critical"}],
  "inScope": ["Hosting"],
  "outOfScope": [{"point": "On-site staff", "remediation": "Partner with a local integrator"}],
  "effort": {"employees": 12, "durationMonths": 6, "description": "Two delivery pods"}
}`

func testDocument() *document.Encoded {
	return &document.Encoded{
		Name:     "tender.pdf",
		MIMEType: document.MIMETypePDF,
		Data:     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	}
}

func groundedRequest(t *testing.T) tender.Request {
	t.Helper()
	req, err := tender.NewGroundedRequest("Acme Corp")
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	return req
}

func TestAnalyzerAnalyze(t *testing.T) {
	models := newFakeModels()
	models.enqueue(DefaultAnalysisModel, textResponse("```json\n"+validAnalysis+"\n```"), nil)

	analyzer := NewAnalyzer(NewClientWithModels(models, 0, zap.NewNop()), "")
	analysis, err := analyzer.Analyze(context.Background(), groundedRequest(t), testDocument(), "Acme is a cloud vendor.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if analysis.EntityName != "Acme Corp" || analysis.AlignmentScore != 64.5 {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if analysis.Deadline == nil || *analysis.Deadline != "15 March 2025" {
		t.Fatalf("unexpected deadline: %v", analysis.Deadline)
	}
	if analysis.Eligibility == nil || analysis.Eligibility.PreBidAmount != "INR 5,00,000" || analysis.Eligibility.RequiredTeamSize != "" {
		t.Fatalf("unexpected eligibility: %+v", analysis.Eligibility)
	}
	if analysis.Effort.Employees != 12 || analysis.Stakes[0].Severity != tender.SeverityHigh {
		t.Fatalf("unexpected nested fields: %+v", analysis)
	}

	call := models.calls[0]
	if call.config.ResponseMIMEType != "application/json" || call.config.ResponseSchema == nil {
		t.Fatalf("expected structured output config, got %+v", call.config)
	}

	parts := call.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || string(parts[0].InlineData.Data) != "%PDF-1.4" {
		t.Fatalf("expected inline document part first, got %+v", parts)
	}
	if parts[0].InlineData.MIMEType != document.MIMETypePDF {
		t.Fatalf("unexpected inline mime type: %q", parts[0].InlineData.MIMEType)
	}
	if !strings.Contains(parts[1].Text, "Acme is a cloud vendor.") || !strings.Contains(parts[1].Text, `"Acme Corp"`) {
		t.Fatalf("prompt does not carry subject and context: %q", parts[1].Text)
	}
}

func TestAnalyzerSolutionPrompt(t *testing.T) {
	solution := tender.DefaultSolutions()[1]
	req, err := tender.NewSolutionRequest(solution)
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}

	prompt := buildAnalysisPrompt(req, "")
	if !strings.Contains(prompt, "SOLUTION TO EVALUATE") || !strings.Contains(prompt, solution.Description) {
		t.Fatalf("expected solution block in prompt: %q", prompt)
	}
	if !strings.Contains(prompt, tender.FallbackText(solution.Name)) {
		t.Fatalf("expected fallback context in prompt: %q", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("unreplaced placeholder in prompt: %q", prompt)
	}
}

func TestAnalyzerEmptyResponse(t *testing.T) {
	models := newFakeModels()
	models.enqueue(DefaultAnalysisModel, &genai.GenerateContentResponse{
		Candidates:     []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
	}, nil)

	analyzer := NewAnalyzer(NewClientWithModels(models, 0, nil), "")
	_, err := analyzer.Analyze(context.Background(), groundedRequest(t), testDocument(), "ctx")

	var empty *tender.EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected empty response error, got %v", err)
	}
	if empty.FinishReason != "SAFETY" || empty.BlockReason != "SAFETY" {
		t.Fatalf("expected backend reasons to be preserved, got %+v", empty)
	}
}

func TestAnalyzerSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "I cannot help with that."},
		{name: "array", body: `[1, 2, 3]`},
		{name: "missing required", body: `{"entityName": "Acme"}`},
		{name: "wrong type", body: strings.Replace(validAnalysis, `"feasibilityScore": 78`, `"feasibilityScore": "high"`, 1)},
		{name: "bad enum", body: strings.Replace(validAnalysis, `"severity": "High"`, `"severity": "Extreme"`, 1)},
		{name: "negative employees", body: strings.Replace(validAnalysis, `"employees": 12`, `"employees": -3`, 1)},
		{name: "blank remediation", body: strings.Replace(validAnalysis, `"remediation": "Partner with a local integrator"`, `"remediation": ""`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := newFakeModels()
			models.enqueue(DefaultAnalysisModel, textResponse(tt.body), nil)

			analyzer := NewAnalyzer(NewClientWithModels(models, 0, nil), "")
			analysis, err := analyzer.Analyze(context.Background(), groundedRequest(t), testDocument(), "ctx")
			if !errors.Is(err, tender.ErrSchemaViolation) {
				t.Fatalf("expected schema violation, got %v", err)
			}
			if analysis != nil {
				t.Fatalf("expected no partial analysis, got %+v", analysis)
			}
		})
	}
}

func TestAnalyzerAcceptsNullOptionalFields(t *testing.T) {
	body := strings.Replace(validAnalysis, `"deadline": "15 March 2025"`, `"deadline": null`, 1)

	analysis, err := parseAnalysis(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Deadline != nil {
		t.Fatalf("expected absent deadline, got %q", *analysis.Deadline)
	}

	body = strings.Replace(validAnalysis,
		`"eligibility": {"preBidAmount": "INR 5,00,000", "totalCost": "INR 2 Cr"}`,
		`"eligibility": {"preBidAmount": null, "financialRequirements": "10 Cr", "requiredTeamSize": null}`, 1)

	analysis, err = parseAnalysis(body)
	if err != nil {
		t.Fatalf("unexpected error for null eligibility fields: %v", err)
	}
	if analysis.Eligibility == nil || analysis.Eligibility.PreBidAmount != "" || analysis.Eligibility.FinancialRequirements != "10 Cr" {
		t.Fatalf("unexpected eligibility: %+v", analysis.Eligibility)
	}

	body = strings.Replace(validAnalysis, `"severity": "High"`, `"severity": null`, 1)
	if _, err := parseAnalysis(body); !errors.Is(err, tender.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for a null required field, got %v", err)
	}
}

func TestAnalyzerRejectsInvalidInputs(t *testing.T) {
	models := newFakeModels()
	analyzer := NewAnalyzer(NewClientWithModels(models, 0, nil), "")

	if _, err := analyzer.Analyze(context.Background(), tender.Request{}, testDocument(), ""); err == nil {
		t.Fatal("expected error for invalid request")
	}
	if _, err := analyzer.Analyze(context.Background(), groundedRequest(t), nil, ""); err == nil {
		t.Fatal("expected error for missing document")
	}

	bad := testDocument()
	bad.Data = "***"
	if _, err := analyzer.Analyze(context.Background(), groundedRequest(t), bad, ""); !errors.Is(err, tender.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}

	if models.callCount() != 0 {
		t.Fatalf("expected no backend calls, got %d", models.callCount())
	}
}

func TestResponseSchemaMirrorsValidationSchema(t *testing.T) {
	schema := responseSchema(analysisShape)
	if schema.Type != genai.TypeObject || len(schema.Properties) != len(analysisShape.properties) {
		t.Fatalf("unexpected response schema: %+v", schema)
	}
	if schema.Properties["effort"].Properties["employees"].Type != genai.TypeInteger {
		t.Fatalf("expected integer employees, got %v", schema.Properties["effort"].Properties["employees"].Type)
	}
	if got := schema.Properties["stakes"].Items.Properties["severity"].Enum; len(got) != 3 {
		t.Fatalf("unexpected severity enum: %v", got)
	}

	js := jsonSchema(analysisShape)
	if js["type"] != "object" || len(js["required"].([]any)) != len(analysisShape.required) {
		t.Fatalf("unexpected json schema: %+v", js)
	}
}
