package knowledge

import "github.com/abhisek/mistakebook/internal/llm"

var draftDefinition = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"subject": map[string]any{"type": "string"},
		"chapter": map[string]any{"type": "string"},
		"section": map[string]any{"type": "string"},
		"item":    map[string]any{"type": "string", "description": "Name of the specific knowledge point"},
		"details": map[string]any{"type": "string", "description": "Short statement of the rule, theorem or method"},
	},
	"required":             []any{"subject", "chapter", "section", "item", "details"},
	"additionalProperties": false,
}

// ExtractionSchema is the structured output of knowledge extraction.
var ExtractionSchema = llm.MustRegisterSchema(&llm.Schema{
	Name:        "knowledge-extraction",
	Description: "Knowledge points a solution relied on, split into listed and newly proposed points",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"used_existing_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "integer"},
				"description": "IDs from the provided list that the solution actually used",
			},
			"new_points": map[string]any{
				"type":        "array",
				"items":       draftDefinition,
				"description": "Knowledge points the solution needed that are not in the provided list",
			},
		},
		"required":             []any{"used_existing_ids", "new_points"},
		"additionalProperties": false,
	},
})

// SubjectSchema is the structured output of subject classification.
var SubjectSchema = llm.MustRegisterSchema(&llm.Schema{
	Name:        "subject-classification",
	Description: "Subject, chapter and section a question belongs to",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":    map[string]any{"type": "string"},
			"chapter":    map[string]any{"type": "string"},
			"section":    map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
		},
		"required":             []any{"subject", "chapter", "section", "confidence"},
		"additionalProperties": false,
	},
})

// CompletenessSchema is the structured output of a completeness check.
var CompletenessSchema = llm.MustRegisterSchema(&llm.Schema{
	Name:        "knowledge-completeness",
	Description: "Whether a set of knowledge points is sufficient to solve a question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_complete": map[string]any{"type": "boolean"},
			"confidence":  map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
			"missing_concepts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"reasoning": map[string]any{"type": "string"},
		},
		"required":             []any{"is_complete", "confidence", "missing_concepts", "reasoning"},
		"additionalProperties": false,
	},
})

// CategorySchema is the structured output of category suggestion.
var CategorySchema = llm.MustRegisterSchema(&llm.Schema{
	Name:        "knowledge-categories",
	Description: "Categories from the provided list that a question may belong to",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"categories": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"subject": map[string]any{"type": "string"},
						"chapter": map[string]any{"type": "string"},
						"section": map[string]any{"type": "string"},
					},
					"required":             []any{"subject", "chapter", "section"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"categories"},
		"additionalProperties": false,
	},
})
