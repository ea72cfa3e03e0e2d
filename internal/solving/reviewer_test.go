package solving

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mistakebook/internal/llm"
)

func TestLLMReviewer_Verdicts(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
		want Verdict
	}{
		{
			name: "pass",
			resp: llm.MockResponse{Content: json.RawMessage(`{"passed":true,"reason":"all steps correct"}`)},
			want: Verdict{Passed: true, Reason: "all steps correct"},
		},
		{
			name: "fail",
			resp: llm.MockResponse{Content: json.RawMessage(`{"passed":false,"reason":"2+2 is not 5"}`)},
			want: Verdict{Passed: false, Reason: "2+2 is not 5"},
		},
		{
			name: "fenced",
			resp: llm.MockResponse{Text: "```json\n{\"passed\":true,\"reason\":\"ok\"}\n```"},
			want: Verdict{Passed: true, Reason: "ok"},
		},
		{
			name: "blank reason",
			resp: llm.MockResponse{Content: json.RawMessage(`{"passed":true,"reason":"  "}`)},
			want: Verdict{Passed: true, Reason: noReasonGiven},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReviewer(llm.NewMockProvider(tt.resp), DefaultReviewerConfig())
			v, err := r.Review(context.Background(), ReviewInput{Question: "2+2=?", Solution: "4", Attempt: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestLLMReviewer_UnparseableIsConservativeFail(t *testing.T) {
	for _, body := range []string{"Looks right to me!", `{"reason":"no verdict"}`, `{"passed":"yes"}`, `{"passed":true}`, ""} {
		r := NewReviewer(llm.NewMockProvider(llm.MockResponse{Text: body}), DefaultReviewerConfig())

		v, err := r.Review(context.Background(), ReviewInput{Question: "q", Solution: "s", Attempt: 1})
		require.NoError(t, err, "body %q", body)
		assert.False(t, v.Passed, "body %q", body)
		assert.True(t, strings.HasPrefix(v.Reason, "unparseable review"), "reason %q", v.Reason)
	}
}

func TestLLMReviewer_TruncatedVerdictFails(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrMaxTokensExceeded{Content: json.RawMessage(`{"passed":true,"rea`)}})
	r := NewReviewer(mock, DefaultReviewerConfig())

	v, err := r.Review(context.Background(), ReviewInput{Question: "2+2=?", Solution: "4", Attempt: 1})
	require.NoError(t, err)
	assert.False(t, v.Passed)
	assert.True(t, strings.HasPrefix(v.Reason, "unparseable review"), "reason %q", v.Reason)
}

func TestLLMReviewer_HardFailure(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("401 unauthorized")}})
	r := NewReviewer(mock, DefaultReviewerConfig())

	_, err := r.Review(context.Background(), ReviewInput{Question: "q", Solution: "s", Attempt: 2})
	var revErr *ReviewError
	require.ErrorAs(t, err, &revErr)
	assert.Equal(t, 2, revErr.Attempt)
	assert.Equal(t, "review", StageOf(err))
}

func TestLLMReviewer_PromptContext(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"passed":true,"reason":"ok"}`)},
		llm.MockResponse{Content: json.RawMessage(`{"passed":true,"reason":"ok"}`)},
	)
	r := NewReviewer(mock, DefaultReviewerConfig())

	_, err := r.Review(context.Background(), ReviewInput{Question: "2+2=?", Solution: "four", CorrectAnswer: "4", Points: pointsFixture()})
	require.NoError(t, err)
	_, err = r.Review(context.Background(), ReviewInput{Question: "2+2=?", Solution: "four"})
	require.NoError(t, err)

	withAnswer := mock.Calls[0].Messages[0].Content
	assert.Contains(t, withAnswer, "Reference answer:\n4")
	assert.Contains(t, withAnswer, "math/arithmetic/integers: addition")
	assert.Equal(t, ReviewSchema, mock.Calls[0].Schema)

	withoutAnswer := mock.Calls[1].Messages[0].Content
	assert.Contains(t, withoutAnswer, "No reference answer is available")
}
