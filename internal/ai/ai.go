package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/tender"
)

// ContextRetriever produces a market brief for a named entity.
type ContextRetriever interface {
	Retrieve(ctx context.Context, entity string) (tender.MarketContext, error)
}

// Analyzer evaluates an encoded document for the requested subject.
type Analyzer interface {
	Analyze(ctx context.Context, req tender.Request, doc *document.Encoded, marketContext string) (*tender.Analysis, error)
}

// Assistant answers follow-up questions about a result.
type Assistant interface {
	Answer(ctx context.Context, history []tender.Turn, query string) (string, error)
}

// ResultTurns seeds a conversation with a summary of result so that follow-up
// questions can refer to it.
func ResultTurns(result tender.Result) []tender.Turn {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis of %s.\n", result.EntityName)
	fmt.Fprintf(&b, "Feasibility: %d/100. Alignment: %d/100.\n", result.FeasibilityScore, result.AlignmentScore)
	if result.HasDeadline() {
		fmt.Fprintf(&b, "Deadline: %s.\n", result.DeadlineText())
	}
	if e := result.Eligibility; !e.IsZero() {
		fmt.Fprintf(&b, "Eligibility: pre-bid %q, financial %q, total cost %q, team size %q.\n",
			e.PreBidAmount, e.FinancialRequirements, e.TotalCost, e.RequiredTeamSize)
	}
	if result.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning: %s\n", result.Reasoning)
	}
	for _, s := range result.Stakes {
		fmt.Fprintf(&b, "Stake (%s): %s. %s\n", s.Severity, s.Title, s.Description)
	}
	for _, p := range result.PriorityPoints {
		fmt.Fprintf(&b, "Priority (%s): %s. %s\n", p.Urgency, p.Title, p.Description)
	}
	if len(result.InScope) > 0 {
		fmt.Fprintf(&b, "In scope: %s.\n", strings.Join(result.InScope, "; "))
	}
	for _, o := range result.OutOfScope {
		fmt.Fprintf(&b, "Out of scope: %s. Remediation: %s\n", o.Point, o.Remediation)
	}
	fmt.Fprintf(&b, "Effort: %d people for %.1f months. %s\n",
		result.Effort.Employees, result.Effort.DurationMonths, result.Effort.Description)

	return []tender.Turn{
		{Role: tender.RoleUser, Text: strings.TrimSpace(b.String())},
		{Role: tender.RoleModel, Text: "Understood. Ask me anything about this analysis."},
	}
}
