package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mistakebook/internal/llm"
)

func TestAssessor_ClassifySubject(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"subject":"数学","chapter":"函数","section":"单调性","confidence":9}`),
	})
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	g, err := a.ClassifySubject(context.Background(), "判断 f(x)=x^3 的单调性")
	require.NoError(t, err)
	assert.Equal(t, SubjectGuess{Subject: "数学", Chapter: "函数", Section: "单调性", Confidence: 9}, g)
	assert.Equal(t, SubjectSchema, mock.Calls[0].Schema)
}

func TestAssessor_ClassifySubjectFallback(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "maths, probably"})
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	g, err := a.ClassifySubject(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, Unknown, g.Subject)
	assert.Zero(t, g.Confidence)
}

func TestAssessor_ClassifySubjectTruncated(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrMaxTokensExceeded{}})
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	g, err := a.ClassifySubject(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, Unknown, g.Subject)
}

func TestAssessor_EvaluateCompleteness(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"is_complete":true,"confidence":8,"missing_concepts":[],"reasoning":"covered"}`),
	})
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	c, err := a.EvaluateCompleteness(context.Background(), "2+2=?", existingAddition())
	require.NoError(t, err)
	assert.True(t, c.Complete(7))
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "math/arithmetic/integers: addition")
}

func TestAssessor_EvaluateCompletenessWithoutPoints(t *testing.T) {
	mock := llm.NewMockProvider()
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	c, err := a.EvaluateCompleteness(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, c.IsComplete)
	assert.Zero(t, mock.CallCount())
}

func TestAssessor_EvaluateCompletenessFallbackAndHardError(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: "yes"},
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}},
	)
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	c, err := a.EvaluateCompleteness(context.Background(), "q", existingAddition())
	require.NoError(t, err)
	assert.False(t, c.Complete(0))

	_, err = a.EvaluateCompleteness(context.Background(), "q", existingAddition())
	assert.Error(t, err)
}

func TestAssessor_SuggestCategoriesFiltersUnknown(t *testing.T) {
	cats := []Category{
		{Subject: "math", Chapter: "functions", Section: "monotonicity"},
		{Subject: "math", Chapter: "sequences", Section: "arithmetic"},
	}
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"categories":[
			{"subject":"math","chapter":"functions","section":"monotonicity"},
			{"subject":"math","chapter":"functions","section":"monotonicity"},
			{"subject":"math","chapter":"geometry","section":"circles"}
		]}`),
	})
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	got, err := a.SuggestCategories(context.Background(), "q", cats)
	require.NoError(t, err)
	assert.Equal(t, cats[:1], got)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "subject,chapter,section\nmath,functions,monotonicity\n")
}

func TestAssessor_SuggestCategoriesEmptyInput(t *testing.T) {
	mock := llm.NewMockProvider()
	a := NewAssessor(mock, DefaultAssessorConfig(), nil)

	got, err := a.SuggestCategories(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, mock.CallCount())
}
