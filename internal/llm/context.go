package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	traceKey   contextKey = "llm_trace"
)

// Purpose labels used by the solving pipeline.
const (
	PurposeSolve        = "solve"
	PurposeReview       = "review"
	PurposeExtract      = "extract"
	PurposeClassify     = "classify"
	PurposeCompleteness = "completeness"
	PurposeCategory     = "category"
	PurposeOCR          = "ocr"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithTrace attaches a correlation id (one solve invocation) so every LLM
// event of that invocation can be grouped.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

// TraceFrom returns the correlation id, or "" when none is set.
func TraceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey).(string); ok {
		return v
	}
	return ""
}
