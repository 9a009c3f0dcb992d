package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Acme Corp":              "acme-corp",
		"  AI & Data  Intel. ":   "ai-data-intel",
		"Société Générale":       "société-générale",
		"":                       "unknown",
		"Tata Consultancy (TCS)": "tata-consultancy-tcs",
	}

	for input, expect := range tests {
		if got := Slug(input); got != expect {
			t.Fatalf("Slug(%q): expected %q, got %q", input, expect, got)
		}
	}
}

func TestSlugWithoutLettersOrDigits(t *testing.T) {
	t.Parallel()

	dashes := Slug("---")
	if dashes == "unknown" || dashes != Slug(" --- ") {
		t.Fatalf("expected a stable name-based slug, got %q", dashes)
	}
	if _, err := uuid.Parse(dashes); err != nil {
		t.Fatalf("expected a uuid slug, got %q: %v", dashes, err)
	}

	if other := Slug("+++"); other == dashes {
		t.Fatalf("distinct names share slug %q", other)
	}
}
