package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Question is a wrong question recorded by a user, together with the last
// stored solution.
type Question struct {
	ID            int       `json:"id"`
	UserID        string    `json:"user_id"`
	Text          string    `json:"question"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Solution      string    `json:"solution,omitempty"`
	ReviewPassed  *bool     `json:"review_passed,omitempty"`
	ReviewReason  string    `json:"review_reason,omitempty"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Solved reports whether a solution has been stored.
func (q *Question) Solved() bool {
	return q.ReviewPassed != nil
}

// Passed reports whether the stored solution passed review.
func (q *Question) Passed() bool {
	return q.ReviewPassed != nil && *q.ReviewPassed
}

// StoredSolution is what SetSolution persists.
type StoredSolution struct {
	Solution     string
	ReviewPassed bool
	ReviewReason string
	Attempts     int
}

// QueryOpts configures list queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	Offset int       // rows to skip
	After  int64     // sequence > After (events only)
	Before int64     // sequence < Before (events only)
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// QuestionRepo stores wrong questions and their knowledge relations.
type QuestionRepo interface {
	Create(ctx context.Context, q *Question) (*Question, error)

	// Get returns ErrNotFound when the question does not exist.
	Get(ctx context.Context, id int) (*Question, error)

	// GetForUser behaves like Get but also reports ErrNotFound when the
	// question belongs to another user.
	GetForUser(ctx context.Context, userID string, id int) (*Question, error)

	ListByUser(ctx context.Context, userID string, opts QueryOpts) ([]*Question, error)
	SetSolution(ctx context.Context, id int, sol StoredSolution) error

	// RelatedKnowledge lists the points linked to a question by earlier
	// confirmations, most marked first.
	RelatedKnowledge(ctx context.Context, questionID int) ([]*knowledge.KnowledgePoint, error)
}

// MarkRepo applies a user's confirmed extraction.
type MarkRepo interface {
	// ApplyConfirmed increments the mark count of every confirmed point,
	// links it to the question and records the user mark, all in one
	// transaction. Existing ids that are unknown are skipped. Drafts are
	// upserted by identity first.
	ApplyConfirmed(ctx context.Context, userID string, questionID int, existingIDs []int, drafts []knowledge.Draft) ([]*knowledge.KnowledgePoint, error)

	// CountByUser returns how many marks a user has made.
	CountByUser(ctx context.Context, userID string) (int, error)
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID           int
	Sequence     int64
	Timestamp    time.Time
	Provider     string
	Model        string
	Purpose      string
	TraceID      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// PurposeUsage aggregates token usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int
}

// ModelUsage aggregates token usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	llm.EventRecorder

	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns nil when the event does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	// TraceEvents returns the events of one solve, oldest first.
	TraceEvents(ctx context.Context, traceID string) ([]LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
