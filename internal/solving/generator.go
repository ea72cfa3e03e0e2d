package solving

import (
	"context"
	"errors"
	"strings"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

// GenerateInput is the context for one solution attempt.
type GenerateInput struct {
	Question            string
	Points              []knowledge.View
	KnowledgeIncomplete bool

	// PriorReviewReason is the reviewer's reason for rejecting the
	// previous attempt. Used only when Attempt > 1.
	PriorReviewReason string
	Attempt           int
}

// SolutionGenerator produces a natural-language solution.
type SolutionGenerator interface {
	Generate(ctx context.Context, in GenerateInput) (string, error)
}

// GeneratorConfig holds configuration for the LLM generator.
type GeneratorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultGeneratorConfig returns sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxTokens:   2048,
		Temperature: 0.3,
	}
}

// LLMGenerator implements SolutionGenerator with a free-text LLM call.
type LLMGenerator struct {
	provider llm.Provider
	cfg      GeneratorConfig
}

// NewGenerator creates an LLM-backed solution generator.
func NewGenerator(provider llm.Provider, cfg GeneratorConfig) *LLMGenerator {
	return &LLMGenerator{provider: provider, cfg: cfg}
}

// Generate returns the solution text. Any failure, including an empty
// answer, is a *GenerationError; the generator never retries on its own.
func (g *LLMGenerator) Generate(ctx context.Context, in GenerateInput) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", &GenerationError{Attempt: in.Attempt, Err: ErrEmptyQuestion}
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeSolve)

	resp, err := g.provider.Generate(ctx, llm.Request{
		System: generatorSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildGeneratorMessage(in)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", &GenerationError{Attempt: in.Attempt, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &GenerationError{Attempt: in.Attempt, Err: errors.New("empty solution")}
	}
	return text, nil
}
