package tender

import (
	"math"
	"strings"
)

const (
	deadlineSentinel = "empty"
	deadlineNotFound = "not found"

	strongFeasibility   = 80
	moderateFeasibility = 50
	lowFeasibility      = 15
)

// Result is the composed analysis handed to presentation code.
// It is built once by Compose and must not be mutated afterwards.
type Result struct {
	EntityName          string            `json:"entityName" yaml:"entityName"`
	IdentifiedSolutions []string          `json:"identifiedSolutions" yaml:"identifiedSolutions"`
	Deadline            *string           `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Eligibility         *Eligibility      `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`
	FeasibilityScore    int               `json:"feasibilityScore" yaml:"feasibilityScore"`
	AlignmentScore      int               `json:"alignmentScore" yaml:"alignmentScore"`
	Reasoning           string            `json:"reasoning" yaml:"reasoning"`
	Stakes              []Stake           `json:"stakes" yaml:"stakes"`
	PriorityPoints      []PriorityPoint   `json:"priorityPoints" yaml:"priorityPoints"`
	InScope             []string          `json:"inScope" yaml:"inScope"`
	OutOfScope          []OutOfScopeItem  `json:"outOfScope" yaml:"outOfScope"`
	Effort              Effort            `json:"effort" yaml:"effort"`
	MarketContext       string            `json:"marketContext,omitempty" yaml:"marketContext,omitempty"`
	GroundingSources    []GroundingSource `json:"groundingSources,omitempty" yaml:"groundingSources,omitempty"`
}

// Compose merges the analyzer output with the retrieved market context.
// It has no side effects: equal inputs always produce equal results.
func Compose(analysis Analysis, mc MarketContext) Result {
	result := Result{
		EntityName:          strings.TrimSpace(analysis.EntityName),
		IdentifiedSolutions: copyStrings(analysis.IdentifiedSolutions),
		FeasibilityScore:    clampScore(analysis.FeasibilityScore),
		AlignmentScore:      clampScore(analysis.AlignmentScore),
		Reasoning:           strings.TrimSpace(analysis.Reasoning),
		Stakes:              append([]Stake{}, analysis.Stakes...),
		PriorityPoints:      append([]PriorityPoint{}, analysis.PriorityPoints...),
		InScope:             copyStrings(analysis.InScope),
		OutOfScope:          outOfScope(analysis.OutOfScope),
		Effort:              effort(analysis.Effort),
		MarketContext:       mc.Text,
	}

	if analysis.Deadline != nil {
		deadline := strings.TrimSpace(*analysis.Deadline)
		result.Deadline = &deadline
	}

	if analysis.Eligibility != nil {
		eligibility := *analysis.Eligibility
		result.Eligibility = &eligibility
	}

	if len(mc.Sources) > 0 {
		result.GroundingSources = append([]GroundingSource{}, mc.Sources...)
	}

	return result
}

// HasDeadline reports whether the result carries a usable submission deadline.
// The "empty" sentinel is matched case-insensitively.
func (r Result) HasDeadline() bool {
	if r.Deadline == nil {
		return false
	}
	value := strings.ToLower(strings.TrimSpace(*r.Deadline))
	return value != "" && value != deadlineSentinel && value != deadlineNotFound
}

// DeadlineText returns the deadline or an empty string when absent.
func (r Result) DeadlineText() string {
	if !r.HasDeadline() {
		return ""
	}
	return strings.TrimSpace(*r.Deadline)
}

// FeasibilityBand buckets the feasibility score: strong, moderate or weak.
func (r Result) FeasibilityBand() string {
	switch {
	case r.FeasibilityScore >= strongFeasibility:
		return "strong"
	case r.FeasibilityScore >= moderateFeasibility:
		return "moderate"
	default:
		return "weak"
	}
}

// LowFeasibility flags results that are very unlikely to be worth bidding on.
func (r Result) LowFeasibility() bool {
	return r.FeasibilityScore < lowFeasibility
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	rounded := math.Round(v)
	switch {
	case rounded < 0:
		return 0
	case rounded > 100:
		return 100
	default:
		return int(rounded)
	}
}

func effort(e Effort) Effort {
	if e.Employees < 0 {
		e.Employees = 0
	}
	if e.DurationMonths < 0 || math.IsNaN(e.DurationMonths) {
		e.DurationMonths = 0
	}
	e.Description = strings.TrimSpace(e.Description)
	return e
}

// outOfScope drops entries missing either the point or its remediation.
func outOfScope(items []OutOfScopeItem) []OutOfScopeItem {
	kept := make([]OutOfScopeItem, 0, len(items))
	for _, item := range items {
		point := strings.TrimSpace(item.Point)
		remediation := strings.TrimSpace(item.Remediation)
		if point == "" || remediation == "" {
			continue
		}
		kept = append(kept, OutOfScopeItem{Point: point, Remediation: remediation})
	}
	return kept
}

func copyStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
