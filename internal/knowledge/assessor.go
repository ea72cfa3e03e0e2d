package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/llm"
)

// Unknown is the placeholder used when a question cannot be classified.
const Unknown = "unknown"

// SubjectGuess is the classifier's placement of a question.
type SubjectGuess struct {
	Subject    string `json:"subject"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
	Confidence int    `json:"confidence"`
}

// Completeness is the verdict on whether a set of knowledge points covers
// a question.
type Completeness struct {
	IsComplete bool     `json:"is_complete"`
	Confidence int      `json:"confidence"`
	Missing    []string `json:"missing_concepts"`
	Reasoning  string   `json:"reasoning"`
}

// Complete reports whether the verdict is both positive and confident
// enough. A point set that fails this check is treated as incomplete and
// makes the solve workflow run extraction.
func (c Completeness) Complete(threshold int) bool {
	return c.IsComplete && c.Confidence >= threshold
}

// AssessorConfig holds configuration for the assessor.
type AssessorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultAssessorConfig returns sensible defaults.
func DefaultAssessorConfig() AssessorConfig {
	return AssessorConfig{
		MaxTokens:   512,
		Temperature: 0.1,
	}
}

// Assessor places questions in the curriculum and judges whether a set of
// knowledge points is sufficient for them.
type Assessor struct {
	provider llm.Provider
	cfg      AssessorConfig
	logger   *zap.Logger
}

// NewAssessor creates an LLM-backed assessor.
func NewAssessor(provider llm.Provider, cfg AssessorConfig, logger *zap.Logger) *Assessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assessor{provider: provider, cfg: cfg, logger: logger}
}

func (a *Assessor) request(system, user string, schema *llm.Schema) llm.Request {
	return llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		Schema:      schema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
}

// ClassifySubject guesses where question sits in the curriculum.
// Unparseable output yields an Unknown guess with confidence 0.
func (a *Assessor) ClassifySubject(ctx context.Context, question string) (SubjectGuess, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeClassify)
	unknown := SubjectGuess{Subject: Unknown, Chapter: Unknown, Section: Unknown}

	resp, err := a.provider.Generate(ctx, a.request(classifySystemPrompt, "Question:\n"+question, SubjectSchema))
	if err != nil {
		if llm.IsMalformed(err) {
			return unknown, nil
		}
		return SubjectGuess{}, fmt.Errorf("LLM classification failed: %w", err)
	}

	var guess SubjectGuess
	if err := llm.ParseStructured(resp.Content, &guess); err != nil {
		a.logger.Debug("classification output absorbed", zap.Error(err))
		return unknown, nil
	}
	guess.Confidence = clampConfidence(guess.Confidence)
	return guess, nil
}

// EvaluateCompleteness judges whether points suffice to solve question.
// An empty point set is incomplete without consulting the model;
// unparseable output is treated as incomplete with confidence 0.
func (a *Assessor) EvaluateCompleteness(ctx context.Context, question string, points []View) (Completeness, error) {
	if len(points) == 0 {
		return Completeness{
			Missing:   []string{"knowledge points need to be extracted"},
			Reasoning: "no knowledge points provided",
		}, nil
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeCompleteness)
	fallback := Completeness{
		Missing:   []string{"unparseable assessment"},
		Reasoning: "model output could not be parsed",
	}

	resp, err := a.provider.Generate(ctx, a.request(completenessSystemPrompt, buildCompletenessMessage(question, points), CompletenessSchema))
	if err != nil {
		if llm.IsMalformed(err) {
			return fallback, nil
		}
		return Completeness{}, fmt.Errorf("LLM completeness check failed: %w", err)
	}

	var c Completeness
	if err := llm.ParseStructured(resp.Content, &c); err != nil {
		a.logger.Debug("completeness output absorbed", zap.Error(err))
		return fallback, nil
	}
	c.Confidence = clampConfidence(c.Confidence)
	return c, nil
}

// SuggestCategories picks the categories question may belong to. Only
// categories present in the input are returned.
func (a *Assessor) SuggestCategories(ctx context.Context, question string, categories []Category) ([]Category, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeCategory)

	userMsg, err := buildCategoryMessage(question, categories)
	if err != nil {
		return nil, fmt.Errorf("build category prompt: %w", err)
	}

	resp, err := a.provider.Generate(ctx, a.request(categorySystemPrompt, userMsg, CategorySchema))
	if err != nil {
		if llm.IsMalformed(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("LLM category suggestion failed: %w", err)
	}

	var out struct {
		Categories []Category `json:"categories"`
	}
	if err := llm.ParseStructured(resp.Content, &out); err != nil {
		a.logger.Debug("category output absorbed", zap.Error(err))
		return nil, nil
	}

	known := make(map[Category]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	var picked []Category
	for _, c := range out.Categories {
		if known[c] {
			picked = append(picked, c)
			delete(known, c)
		}
	}
	return picked, nil
}

func clampConfidence(c int) int {
	return max(0, min(10, c))
}
