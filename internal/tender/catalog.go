package tender

import "strings"

// Solution is a catalog offering analysed without market context retrieval.
type Solution struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
}

// Label renders the solution for selection prompts.
func (s Solution) Label() string {
	return s.Name + " / " + s.Description
}

// DefaultSolutions is used when the configuration does not declare a catalog.
func DefaultSolutions() []Solution {
	return []Solution{
		{
			ID:          "cloud-infra",
			Name:        "Enterprise Cloud Infrastructure",
			Description: "Scalable cloud hosting, VPC management, and automated scaling solutions.",
		},
		{
			ID:          "cybersec",
			Name:        "Advanced Cybersecurity Suite",
			Description: "Endpoint protection, SOC-as-a-service, and zero-trust architecture implementation.",
		},
		{
			ID:          "data-ai",
			Name:        "AI & Data Intelligence",
			Description: "Machine learning pipelines, predictive analytics, and enterprise LLM integration.",
		},
		{
			ID:          "it-managed",
			Name:        "Managed IT Operations",
			Description: "24/7 technical support, infrastructure maintenance, and compliance monitoring.",
		},
	}
}

// FindSolution looks a solution up by id, case-insensitively.
func FindSolution(catalog []Solution, id string) (Solution, bool) {
	id = strings.TrimSpace(id)
	for _, s := range catalog {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Solution{}, false
}
