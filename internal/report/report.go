// Package report renders composed results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spigell/legallens/internal/tender"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Write renders result to w in the given format.
func Write(w io.Writer, format Format, result tender.Result) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, Text(result))
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// Text is the human readable rendering used by the analyze command.
func Text(r tender.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", r.EntityName)
	if len(r.IdentifiedSolutions) > 0 {
		fmt.Fprintf(&b, "Solutions: %s\n", strings.Join(r.IdentifiedSolutions, ", "))
	}
	fmt.Fprintf(&b, "Feasibility: %d/100 (%s)  Alignment: %d/100\n", r.FeasibilityScore, r.FeasibilityBand(), r.AlignmentScore)
	if r.LowFeasibility() {
		b.WriteString("Warning: very low feasibility, bidding is not recommended.\n")
	}
	if r.HasDeadline() {
		fmt.Fprintf(&b, "Deadline: %s\n", r.DeadlineText())
	}

	if !r.Eligibility.IsZero() {
		b.WriteString("\nEligibility\n")
		writeField(&b, "Pre-bid amount", r.Eligibility.PreBidAmount)
		writeField(&b, "Financial requirements", r.Eligibility.FinancialRequirements)
		writeField(&b, "Total cost", r.Eligibility.TotalCost)
		writeField(&b, "Required team size", r.Eligibility.RequiredTeamSize)
	}

	if r.Reasoning != "" {
		fmt.Fprintf(&b, "\nReasoning\n  %s\n", r.Reasoning)
	}

	if len(r.Stakes) > 0 {
		b.WriteString("\nStakes\n")
		for _, s := range r.Stakes {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", s.Severity, s.Title, s.Description)
		}
	}

	if len(r.PriorityPoints) > 0 {
		b.WriteString("\nPriorities\n")
		for _, p := range r.PriorityPoints {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", p.Urgency, p.Title, p.Description)
		}
	}

	if len(r.InScope) > 0 {
		b.WriteString("\nIn scope\n")
		for _, item := range r.InScope {
			fmt.Fprintf(&b, "  + %s\n", item)
		}
	}

	if len(r.OutOfScope) > 0 {
		b.WriteString("\nOut of scope\n")
		for _, item := range r.OutOfScope {
			fmt.Fprintf(&b, "  - %s\n    remediation: %s\n", item.Point, item.Remediation)
		}
	}

	fmt.Fprintf(&b, "\nEffort: %d people for %.1f months\n", r.Effort.Employees, r.Effort.DurationMonths)
	if r.Effort.Description != "" {
		fmt.Fprintf(&b, "  %s\n", r.Effort.Description)
	}

	if r.MarketContext != "" {
		fmt.Fprintf(&b, "\nMarket context\n%s\n", indent(r.MarketContext))
	}
	if len(r.GroundingSources) > 0 {
		b.WriteString("\nSources\n")
		for i, s := range r.GroundingSources {
			fmt.Fprintf(&b, "  %d. %s <%s>\n", i+1, s.Title, s.URI)
		}
	}

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "  %s: %s\n", label, value)
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
