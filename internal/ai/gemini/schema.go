package gemini

import "google.golang.org/genai"

// node describes one level of the analysis schema. The same tree is rendered
// as the backend response schema and as the JSON schema used to validate replies.
type node struct {
	kind        string
	description string
	enum        []string
	properties  []property
	required    []string
	items       *node
	minimum     *float64
	minLength   int
}

type property struct {
	name string
	node *node
}

const (
	kindObject  = "object"
	kindArray   = "array"
	kindString  = "string"
	kindNumber  = "number"
	kindInteger = "integer"
)

var zero = 0.0

func str(description string) *node {
	return &node{kind: kindString, description: description}
}

func nonEmptyStr(description string) *node {
	return &node{kind: kindString, description: description, minLength: 1}
}

func strArray(description string) *node {
	return &node{kind: kindArray, description: description, items: str("")}
}

// analysisShape is the output contract of the schema-constrained analyzer.
var analysisShape = &node{
	kind: kindObject,
	properties: []property{
		{"entityName", nonEmptyStr("Name of the analysed company or solution.")},
		{"identifiedSolutions", strArray("Primary offerings of the company.")},
		{"deadline", str("Extracted deadline. Use 'empty' if not found.")},
		{"eligibility", &node{
			kind: kindObject,
			properties: []property{
				{"preBidAmount", str("EMD or pre-bid amount.")},
				{"financialRequirements", str("Turnover or other financial requirements.")},
				{"totalCost", str("Estimated total contract value.")},
				{"requiredTeamSize", str("Team size demanded by the document.")},
			},
		}},
		{"feasibilityScore", &node{kind: kindNumber, description: "Feasibility from 0 to 100."}},
		{"alignmentScore", &node{kind: kindNumber, description: "Alignment from 0 to 100."}},
		{"reasoning", nonEmptyStr("Why the scores were given.")},
		{"stakes", &node{
			kind: kindArray,
			items: &node{
				kind: kindObject,
				properties: []property{
					{"title", str("")},
					{"description", str("")},
					{"severity", &node{kind: kindString, enum: []string{"High", "Medium", "Low"}}},
				},
				required: []string{"title", "description", "severity"},
			},
		}},
		{"priorityPoints", &node{
			kind: kindArray,
			items: &node{
				kind: kindObject,
				properties: []property{
					{"title", str("")},
					{"description", str("")},
					{"urgency", &node{kind: kindString, enum: []string{"Critical", "High", "Standard"}}},
				},
				required: []string{"title", "description", "urgency"},
			},
		}},
		{"inScope", strArray("Requirements covered by the offerings.")},
		{"outOfScope", &node{
			kind: kindArray,
			items: &node{
				kind: kindObject,
				properties: []property{
					{"point", nonEmptyStr("Requirement not covered.")},
					{"remediation", nonEmptyStr("How to close the gap.")},
				},
				required: []string{"point", "remediation"},
			},
		}},
		{"effort", &node{
			kind: kindObject,
			properties: []property{
				{"employees", &node{kind: kindInteger, minimum: &zero}},
				{"durationMonths", &node{kind: kindNumber, minimum: &zero}},
				{"description", str("")},
			},
			required: []string{"employees", "durationMonths", "description"},
		}},
	},
	required: []string{
		"entityName", "identifiedSolutions", "feasibilityScore", "alignmentScore", "reasoning",
		"stakes", "priorityPoints", "inScope", "outOfScope", "effort",
	},
}

var genaiTypes = map[string]genai.Type{
	kindObject:  genai.TypeObject,
	kindArray:   genai.TypeArray,
	kindString:  genai.TypeString,
	kindNumber:  genai.TypeNumber,
	kindInteger: genai.TypeInteger,
}

// responseSchema renders n as a GenAI response schema.
func responseSchema(n *node) *genai.Schema {
	schema := &genai.Schema{
		Type:        genaiTypes[n.kind],
		Description: n.description,
		Enum:        n.enum,
		Required:    n.required,
		Minimum:     n.minimum,
	}

	if n.items != nil {
		schema.Items = responseSchema(n.items)
	}

	if len(n.properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(n.properties))
		schema.PropertyOrdering = make([]string, 0, len(n.properties))
		for _, p := range n.properties {
			schema.Properties[p.name] = responseSchema(p.node)
			schema.PropertyOrdering = append(schema.PropertyOrdering, p.name)
		}
	}

	return schema
}

// jsonSchema renders n as a JSON schema document for validation.
func jsonSchema(n *node) map[string]any {
	schema := map[string]any{"type": n.kind}

	if len(n.enum) > 0 {
		values := make([]any, 0, len(n.enum))
		for _, v := range n.enum {
			values = append(values, v)
		}
		schema["enum"] = values
	}

	if len(n.required) > 0 {
		required := make([]any, 0, len(n.required))
		for _, r := range n.required {
			required = append(required, r)
		}
		schema["required"] = required
	}

	if n.minimum != nil {
		schema["minimum"] = *n.minimum
	}

	if n.minLength > 0 {
		schema["minLength"] = n.minLength
	}

	if n.items != nil {
		schema["items"] = jsonSchema(n.items)
	}

	if len(n.properties) > 0 {
		props := make(map[string]any, len(n.properties))
		for _, p := range n.properties {
			props[p.name] = jsonSchema(p.node)
		}
		schema["properties"] = props
	}

	return schema
}
