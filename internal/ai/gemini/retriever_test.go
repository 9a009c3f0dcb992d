package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/spigell/legallens/internal/tender"
)

func groundedResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	resp := textResponse(text)
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	return resp
}

func webChunk(title, uri string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: title, URI: uri}}
}

func TestRetrieverRetrieve(t *testing.T) {
	models := newFakeModels()
	models.enqueue(DefaultContextModel, groundedResponse("- Leading cloud vendor",
		webChunk("Annual report", "https://acme.example/report"),
		webChunk("", "https://news.example/acme"),
		webChunk("No link", ""),
		&genai.GroundingChunk{},
	), nil)

	retriever := NewRetriever(NewClientWithModels(models, 0, nil), "")
	mc, err := retriever.Retrieve(context.Background(), "  Acme Corp ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mc.Text != "- Leading cloud vendor" || mc.Fallback {
		t.Fatalf("unexpected context: %+v", mc)
	}

	want := []tender.GroundingSource{
		{Title: "Annual report", URI: "https://acme.example/report"},
		{Title: "Source", URI: "https://news.example/acme"},
	}
	if len(mc.Sources) != len(want) {
		t.Fatalf("expected %d sources, got %+v", len(want), mc.Sources)
	}
	for i := range want {
		if mc.Sources[i] != want[i] {
			t.Fatalf("source %d: expected %+v, got %+v", i, want[i], mc.Sources[i])
		}
	}

	call := models.calls[0]
	if len(call.config.Tools) != 1 || call.config.Tools[0].GoogleSearch == nil {
		t.Fatalf("expected search grounding tool, got %+v", call.config.Tools)
	}
	if prompt := call.contents[0].Parts[0].Text; !strings.Contains(prompt, "Acme Corp's current market position") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestRetrieverCapsSources(t *testing.T) {
	chunks := make([]*genai.GroundingChunk, 0, 8)
	for i := range 8 {
		chunks = append(chunks, webChunk(fmt.Sprintf("s%d", i), fmt.Sprintf("https://example.com/%d", i)))
	}

	models := newFakeModels()
	models.enqueue(DefaultContextModel, groundedResponse("brief", chunks...), nil)

	mc, err := NewRetriever(NewClientWithModels(models, 0, nil), "").Retrieve(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mc.Sources) != tender.MaxGroundingSources {
		t.Fatalf("expected %d sources, got %d", tender.MaxGroundingSources, len(mc.Sources))
	}
	if mc.Sources[0].Title != "s0" || mc.Sources[4].Title != "s4" {
		t.Fatalf("expected backend order to be kept, got %+v", mc.Sources)
	}
}

func TestRetrieverEmptyTextUsesOverview(t *testing.T) {
	models := newFakeModels()
	models.enqueue(DefaultContextModel, &genai.GenerateContentResponse{}, nil)

	mc, err := NewRetriever(NewClientWithModels(models, 0, nil), "").Retrieve(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.Text != "Market overview for Acme." {
		t.Fatalf("unexpected text: %q", mc.Text)
	}
	if mc.Sources == nil || len(mc.Sources) != 0 {
		t.Fatalf("expected empty non-nil sources, got %#v", mc.Sources)
	}
}

func TestRetrieverReturnsBackendError(t *testing.T) {
	models := newFakeModels()
	models.enqueue(DefaultContextModel, nil, errors.New("search tool not permitted"))

	_, err := NewRetriever(NewClientWithModels(models, 0, nil), "").Retrieve(context.Background(), "Acme")
	if err == nil || !strings.Contains(err.Error(), "search tool not permitted") {
		t.Fatalf("expected backend error, got %v", err)
	}

	if _, err := NewRetriever(NewClientWithModels(models, 0, nil), "").Retrieve(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank entity")
	}
}
