package solving

import (
	"context"
	"strings"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

// ReviewInput is what the reviewer judges.
type ReviewInput struct {
	Question      string
	Solution      string
	CorrectAnswer string // optional
	Points        []knowledge.View
	Attempt       int
}

// SolutionReviewer judges a generated solution.
type SolutionReviewer interface {
	Review(ctx context.Context, in ReviewInput) (Verdict, error)
}

// ReviewSchema is the structured output of a review. An empty reason is
// replaced by noReasonGiven.
var ReviewSchema = llm.MustRegisterSchema(&llm.Schema{
	Name:        "solution-review",
	Description: "Pass/fail verdict on a worked solution with a short reason",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"passed": map[string]any{
				"type":        "boolean",
				"description": "True only if the solution is fully correct",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Why the solution passed or failed",
			},
		},
		"required":             []any{"passed", "reason"},
		"additionalProperties": false,
	},
})

const noReasonGiven = "no reason given"

// ReviewerConfig holds configuration for the LLM reviewer.
type ReviewerConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultReviewerConfig returns sensible defaults.
func DefaultReviewerConfig() ReviewerConfig {
	return ReviewerConfig{
		MaxTokens:   512,
		Temperature: 0,
	}
}

// LLMReviewer implements SolutionReviewer with a structured LLM call.
type LLMReviewer struct {
	provider llm.Provider
	cfg      ReviewerConfig
}

// NewReviewer creates an LLM-backed reviewer.
func NewReviewer(provider llm.Provider, cfg ReviewerConfig) *LLMReviewer {
	return &LLMReviewer{provider: provider, cfg: cfg}
}

type reviewOutput struct {
	Passed *bool  `json:"passed"`
	Reason string `json:"reason"`
}

// Review always yields a verdict unless the model could not be reached.
// Output that cannot be parsed is a rejection with an "unparseable review"
// reason, never a pass. Hard upstream failures are *ReviewError.
func (r *LLMReviewer) Review(ctx context.Context, in ReviewInput) (Verdict, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeReview)

	resp, err := r.provider.Generate(ctx, llm.Request{
		System: reviewerSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildReviewerMessage(in)},
		},
		Schema:      ReviewSchema,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		if llm.IsMalformed(err) {
			return unparseable(err), nil
		}
		return Verdict{}, &ReviewError{Attempt: in.Attempt, Err: err}
	}

	var out reviewOutput
	if err := llm.ParseStructured(resp.Content, &out); err != nil {
		return unparseable(err), nil
	}
	if out.Passed == nil {
		return Verdict{Reason: "unparseable review: missing passed field"}, nil
	}

	reason := strings.TrimSpace(out.Reason)
	if reason == "" {
		reason = noReasonGiven
	}
	return Verdict{Passed: *out.Passed, Reason: reason}, nil
}

func unparseable(err error) Verdict {
	return Verdict{Passed: false, Reason: "unparseable review: " + err.Error()}
}
