package solving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

// structuredSchemas is every schema the service sends to a model, with a
// conforming answer for each.
var structuredSchemas = []struct {
	schema *llm.Schema
	answer string
}{
	{ReviewSchema, `{"passed":false,"reason":"the discriminant is 1, not -1"}`},
	{knowledge.ExtractionSchema, `{"used_existing_ids":[4],"new_points":[{"subject":"数学","chapter":"一元二次方程","section":"解法","item":"因式分解法","details":"x² - 5x + 6 = (x - 2)(x - 3)"}]}`},
	{knowledge.SubjectSchema, `{"subject":"数学","chapter":"一元二次方程","section":"解法","confidence":8}`},
	{knowledge.CompletenessSchema, `{"is_complete":false,"confidence":6,"missing_concepts":["韦达定理"],"reasoning":"the sum of roots is needed"}`},
	{knowledge.CategorySchema, `{"categories":[{"subject":"数学","chapter":"一元二次方程","section":"根与系数的关系"}]}`},
}

type strictRequest struct {
	ResponseFormat struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string         `json:"name"`
			Schema map[string]any `json:"schema"`
			Strict bool           `json:"strict"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

// strictOpenAI serves chat completions the way the OpenAI API does in
// strict json_schema mode: a schema that breaks the strict rules is a 400.
func strictOpenAI(t *testing.T, answers map[string]string) *llm.OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req strictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		js := req.ResponseFormat.JSONSchema

		w.Header().Set("Content-Type", "application/json")
		err := llm.CheckStrict(&llm.Schema{Name: js.Name, Definition: js.Schema})
		if req.ResponseFormat.Type != "json_schema" || !js.Strict || err != nil {
			msg := "response_format must be a strict json_schema"
			if err != nil {
				msg = err.Error()
			}
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "invalid_request_error", "message": msg},
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-strict",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": answers[js.Name]},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		})
	}))
	t.Cleanup(server.Close)

	p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return p
}

func TestStructuredSchemas_AreStrict(t *testing.T) {
	for _, tt := range structuredSchemas {
		t.Run(tt.schema.Name, func(t *testing.T) {
			require.NoError(t, llm.CheckStrict(tt.schema))
		})
	}
}

func TestStructuredSchemas_AcceptedByStrictOpenAI(t *testing.T) {
	answers := make(map[string]string, len(structuredSchemas))
	for _, tt := range structuredSchemas {
		answers[tt.schema.Name] = tt.answer
	}
	p := strictOpenAI(t, answers)

	for _, tt := range structuredSchemas {
		t.Run(tt.schema.Name, func(t *testing.T) {
			resp, err := p.Generate(context.Background(), llm.Request{
				Messages:  []llm.Message{{Role: llm.RoleUser, Content: "x² - 5x + 6 = 0"}},
				Schema:    tt.schema,
				MaxTokens: 512,
			})
			require.NoError(t, err)
			assert.JSONEq(t, tt.answer, string(resp.Content))
		})
	}
}

func TestLLMReviewer_StrictOpenAI(t *testing.T) {
	p := strictOpenAI(t, map[string]string{
		ReviewSchema.Name: `{"passed":true,"reason":"both roots check out"}`,
	})

	v, err := NewReviewer(p, DefaultReviewerConfig()).Review(context.Background(), ReviewInput{
		Question:      "解方程 x² - 5x + 6 = 0",
		Solution:      "(x - 2)(x - 3) = 0, so x = 2 or x = 3",
		CorrectAnswer: "x = 2 或 x = 3",
		Attempt:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Passed: true, Reason: "both roots check out"}, v)
}
