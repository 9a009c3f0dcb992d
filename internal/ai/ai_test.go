package ai

import (
	"strings"
	"testing"

	"github.com/spigell/legallens/internal/tender"
)

func TestResultTurns(t *testing.T) {
	deadline := "15 March 2025"
	result := tender.Result{
		EntityName:       "Acme Corp",
		Deadline:         &deadline,
		FeasibilityScore: 78,
		AlignmentScore:   64,
		Reasoning:        "Good fit.",
		OutOfScope:       []tender.OutOfScopeItem{{Point: "On-site staff", Remediation: "Partner"}},
		Effort:           tender.Effort{Employees: 12, DurationMonths: 6},
	}

	turns := ResultTurns(result)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != tender.RoleUser || turns[1].Role != tender.RoleModel {
		t.Fatalf("unexpected roles: %+v", turns)
	}

	for _, want := range []string{"Acme Corp", "Feasibility: 78/100", "Deadline: 15 March 2025", "Remediation: Partner", "12 people for 6.0 months"} {
		if !strings.Contains(turns[0].Text, want) {
			t.Fatalf("summary is missing %q: %q", want, turns[0].Text)
		}
	}
}

func TestResultTurnsOmitsSentinelDeadline(t *testing.T) {
	deadline := "EMPTY"
	turns := ResultTurns(tender.Result{EntityName: "Acme", Deadline: &deadline})

	if strings.Contains(turns[0].Text, "Deadline") {
		t.Fatalf("expected sentinel deadline to be omitted: %q", turns[0].Text)
	}
	if strings.Contains(turns[0].Text, "Eligibility") {
		t.Fatalf("expected empty eligibility to be omitted: %q", turns[0].Text)
	}
}
