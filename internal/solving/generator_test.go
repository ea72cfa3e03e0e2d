package solving

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

func TestLLMGenerator_FreeTextSolution(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "  Using [1] addition: 2+2=4.\nAnswer: 4  "})
	g := NewGenerator(mock, DefaultGeneratorConfig())

	sol, err := g.Generate(context.Background(), GenerateInput{Question: "2+2=?", Points: pointsFixture(), Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, "Using [1] addition: 2+2=4.\nAnswer: 4", sol)

	req := mock.Calls[0]
	assert.Nil(t, req.Schema)
	assert.Equal(t, generatorSystemPrompt, req.System)
	assert.Contains(t, req.Messages[0].Content, "[1] math/arithmetic/integers: addition")
	assert.Contains(t, req.Messages[0].Content, "strictly")
}

func TestLLMGenerator_RetryPromptCarriesReason(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "fixed"})
	g := NewGenerator(mock, DefaultGeneratorConfig())

	_, err := g.Generate(context.Background(), GenerateInput{
		Question:          "2+2=?",
		Points:            pointsFixture(),
		Attempt:           2,
		PriorReviewReason: "the sum in step 2 is 5, should be 4",
	})
	require.NoError(t, err)

	msg := mock.Calls[0].Messages[0].Content
	assert.Contains(t, msg, "attempt 2")
	assert.Contains(t, msg, "the sum in step 2 is 5, should be 4")
}

func TestLLMGenerator_PromptVariants(t *testing.T) {
	incomplete := buildGeneratorMessage(GenerateInput{Question: "q", Points: pointsFixture(), KnowledgeIncomplete: true, Attempt: 1})
	assert.Contains(t, incomplete, "may be incomplete")

	unguided := buildGeneratorMessage(GenerateInput{Question: "q", Attempt: 1})
	assert.Contains(t, unguided, "No knowledge points are available")

	first := buildGeneratorMessage(GenerateInput{Question: "q", Points: pointsFixture(), Attempt: 1, PriorReviewReason: "stale"})
	assert.NotContains(t, first, "stale")

	withDetails := buildGeneratorMessage(GenerateInput{Question: "q", Points: []knowledge.View{{Subject: "s", Chapter: "c", Section: "x", Item: "i", Details: "the rule"}}, Attempt: 1})
	assert.Contains(t, withDetails, "- s/c/x: i\n  the rule")
}

func TestLLMGenerator_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input GenerateInput
		resp  llm.MockResponse
	}{
		{"empty question", GenerateInput{Question: "  ", Attempt: 1}, llm.MockResponse{Text: "unused"}},
		{"upstream failure", GenerateInput{Question: "q", Attempt: 2}, llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}}},
		{"empty text", GenerateInput{Question: "q", Attempt: 3}, llm.MockResponse{Text: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(llm.NewMockProvider(tt.resp), DefaultGeneratorConfig())

			_, err := g.Generate(context.Background(), tt.input)
			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tt.input.Attempt, genErr.Attempt)
		})
	}
}
