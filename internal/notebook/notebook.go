// Package notebook implements the caller-facing operations of the
// wrong-answer notebook: recording questions, solving them against
// knowledge points, locating relevant points and confirming extractions.
// The HTTP server and the CLI are thin layers over a Service.
package notebook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/ocr"
	"github.com/abhisek/mistakebook/internal/solving"
	"github.com/abhisek/mistakebook/internal/store"
)

// ErrInvalidInput marks caller mistakes. Errors wrapping it map to 400.
var ErrInvalidInput = errors.New("invalid input")

// ErrOCRUnavailable is returned by AddQuestionFromImage when no text
// extractor is configured.
var ErrOCRUnavailable = errors.New("image upload is not configured")

// Solver runs the solving workflow. *solving.Workflow implements it.
type Solver interface {
	Solve(ctx context.Context, req solving.Request) (*solving.Result, error)
}

// Assessor places questions in the curriculum. *knowledge.Assessor
// implements it.
type Assessor interface {
	ClassifySubject(ctx context.Context, question string) (knowledge.SubjectGuess, error)
	EvaluateCompleteness(ctx context.Context, question string, points []knowledge.View) (knowledge.Completeness, error)
	SuggestCategories(ctx context.Context, question string, categories []knowledge.Category) ([]knowledge.Category, error)
}

// Config tunes the service.
type Config struct {
	// CompletenessThreshold is the assessor confidence (0-10) at or above
	// which a complete verdict is trusted.
	CompletenessThreshold int

	// Concurrency bounds SolveMany.
	Concurrency int
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{CompletenessThreshold: 7, Concurrency: 4}
}

// Deps are the collaborators of a Service. OCR may be nil.
type Deps struct {
	Questions store.QuestionRepo
	Knowledge knowledge.Store
	Marks     store.MarkRepo
	Solver    Solver
	Assessor  Assessor
	OCR       ocr.Extractor
}

// Service implements the notebook operations. It is safe for concurrent
// use.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New creates a Service.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

// Knowledge exposes the knowledge store for read-only listings.
func (s *Service) Knowledge() knowledge.Store {
	return s.deps.Knowledge
}

// PointRef references a knowledge point in a solve request: either a
// stored point by ID, or an inline point that has not been persisted.
type PointRef struct {
	ID      int    `json:"id,omitempty"`
	Subject string `json:"subject,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`
	Item    string `json:"item,omitempty"`
	Details string `json:"details,omitempty"`
}

// Inline reports whether the reference carries its own content.
func (r PointRef) Inline() bool {
	return r.ID == 0
}

// RefsFromPoints converts stored points to references.
func RefsFromPoints(points []*knowledge.KnowledgePoint) []PointRef {
	refs := make([]PointRef, len(points))
	for i, kp := range points {
		refs[i] = PointRef{ID: kp.ID}
	}
	return refs
}
