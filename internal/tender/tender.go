package tender

import (
	"errors"
	"fmt"
	"strings"
)

// MaxGroundingSources caps the provenance references kept per market context.
const MaxGroundingSources = 5

// Variant selects how the analysis subject is described to the backend.
type Variant int

const (
	// WithGrounding analyses a named entity and retrieves market context first.
	WithGrounding Variant = iota + 1
	// WithoutGrounding analyses a catalog solution without any retrieval.
	WithoutGrounding
)

func (v Variant) String() string {
	switch v {
	case WithGrounding:
		return "with_grounding"
	case WithoutGrounding:
		return "without_grounding"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Request describes a single user-initiated analysis.
type Request struct {
	Variant    Variant
	EntityName string
	Solution   *Solution
}

// NewGroundedRequest builds a request that retrieves market context for entity.
func NewGroundedRequest(entity string) (Request, error) {
	req := Request{Variant: WithGrounding, EntityName: strings.TrimSpace(entity)}
	return req, req.Validate()
}

// NewSolutionRequest builds a request that evaluates a catalog solution.
func NewSolutionRequest(solution Solution) (Request, error) {
	s := solution
	req := Request{Variant: WithoutGrounding, EntityName: strings.TrimSpace(s.Name), Solution: &s}
	return req, req.Validate()
}

// Validate reports whether the request can be sent to the pipeline.
func (r Request) Validate() error {
	switch r.Variant {
	case WithGrounding:
		if strings.TrimSpace(r.EntityName) == "" {
			return errors.New("entity name is required")
		}
	case WithoutGrounding:
		if r.Solution == nil {
			return errors.New("solution is required")
		}
		if strings.TrimSpace(r.Solution.Name) == "" {
			return errors.New("solution name is required")
		}
	default:
		return fmt.Errorf("unknown request variant: %s", r.Variant)
	}
	return nil
}

// Grounded reports whether market context retrieval applies to the request.
func (r Request) Grounded() bool {
	return r.Variant == WithGrounding
}

// Subject returns the name used in prompts and logs.
func (r Request) Subject() string {
	if r.Variant == WithoutGrounding && r.Solution != nil {
		return strings.TrimSpace(r.Solution.Name)
	}
	return strings.TrimSpace(r.EntityName)
}

// GroundingSource is a citable reference attached to retrieved context.
type GroundingSource struct {
	Title string `json:"title" yaml:"title"`
	URI   string `json:"uri" yaml:"uri"`
}

// MarketContext is the external brief produced by the context retriever.
type MarketContext struct {
	Text    string            `json:"text"`
	Sources []GroundingSource `json:"sources"`
	// Fallback is set when the text was substituted after a retrieval failure.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackText is the brief used when market context cannot be retrieved.
func FallbackText(entity string) string {
	return fmt.Sprintf("Directly analyzing %s's solutions against the provided document.", strings.TrimSpace(entity))
}

// FallbackContext returns the deterministic context substituted on retrieval failure.
func FallbackContext(entity string) MarketContext {
	return MarketContext{
		Text:     FallbackText(entity),
		Sources:  []GroundingSource{},
		Fallback: true,
	}
}

// Severity grades a stake.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Urgency grades a priority point.
type Urgency string

const (
	UrgencyCritical Urgency = "Critical"
	UrgencyHigh     Urgency = "High"
	UrgencyStandard Urgency = "Standard"
)

type Stake struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

type PriorityPoint struct {
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Urgency     Urgency `json:"urgency" yaml:"urgency"`
}

type OutOfScopeItem struct {
	Point       string `json:"point" yaml:"point"`
	Remediation string `json:"remediation" yaml:"remediation"`
}

type Effort struct {
	Employees      int     `json:"employees" yaml:"employees"`
	DurationMonths float64 `json:"durationMonths" yaml:"durationMonths"`
	Description    string  `json:"description" yaml:"description"`
}

// Eligibility holds financial and participation figures found in the document.
// Every field is independent and may be empty.
type Eligibility struct {
	PreBidAmount          string `json:"preBidAmount,omitempty" yaml:"preBidAmount,omitempty"`
	FinancialRequirements string `json:"financialRequirements,omitempty" yaml:"financialRequirements,omitempty"`
	TotalCost             string `json:"totalCost,omitempty" yaml:"totalCost,omitempty"`
	RequiredTeamSize      string `json:"requiredTeamSize,omitempty" yaml:"requiredTeamSize,omitempty"`
}

// IsZero reports whether no eligibility figure was extracted.
func (e *Eligibility) IsZero() bool {
	return e == nil || (strings.TrimSpace(e.PreBidAmount) == "" &&
		strings.TrimSpace(e.FinancialRequirements) == "" &&
		strings.TrimSpace(e.TotalCost) == "" &&
		strings.TrimSpace(e.RequiredTeamSize) == "")
}

// Analysis is the structured object returned by the schema-constrained analyzer.
type Analysis struct {
	EntityName          string           `json:"entityName"`
	IdentifiedSolutions []string         `json:"identifiedSolutions"`
	Deadline            *string          `json:"deadline,omitempty"`
	Eligibility         *Eligibility     `json:"eligibility,omitempty"`
	FeasibilityScore    float64          `json:"feasibilityScore"`
	AlignmentScore      float64          `json:"alignmentScore"`
	Reasoning           string           `json:"reasoning"`
	Stakes              []Stake          `json:"stakes"`
	PriorityPoints      []PriorityPoint  `json:"priorityPoints"`
	InScope             []string         `json:"inScope"`
	OutOfScope          []OutOfScopeItem `json:"outOfScope"`
	Effort              Effort           `json:"effort"`
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single message of the follow-up conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Valid reports whether the role is one the assistant accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}
