package solving

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
)

// KnowledgeExtractor identifies the knowledge points a solution used.
// *knowledge.Extractor implements it.
type KnowledgeExtractor interface {
	Extract(ctx context.Context, question, solution string, existing []knowledge.View) (knowledge.ExtractionResult, error)
}

// Observer receives solve outcomes, typically for metrics.
type Observer interface {
	ObserveSolve(status string, attempts int)
	ObserveReview(passed bool)
	ObserveExtraction(outcome string)
}

// Extraction outcomes reported to the Observer.
const (
	ExtractionOK    = "ok"
	ExtractionEmpty = "empty"
	ExtractionError = "error"
)

var errNoExtractor = errors.New("no knowledge extractor configured")

// Status values of a Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Config holds workflow limits.
type Config struct {
	// MaxAttempts caps the number of generations per solve.
	MaxAttempts int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts}
}

// Result is what a solve returns to its caller.
type Result struct {
	SolveID      string `json:"solve_id"`
	Solution     string `json:"solution"`
	ReviewPassed bool   `json:"review_passed"`
	ReviewReason string `json:"review_reason"`
	Attempts     int    `json:"attempts"`

	// KnowledgePointsUsed is the input context, narrowed to the points the
	// extractor reported as used when extraction ran.
	KnowledgePointsUsed []knowledge.View  `json:"knowledge_points"`
	NewKnowledgePoints  []knowledge.Draft `json:"new_knowledge_points"`
	Extracted           bool              `json:"extracted"`

	Err error `json:"-"`
}

// Status is StatusError for a hard failure and StatusSuccess otherwise,
// including attempt exhaustion without a pass.
func (r *Result) Status() string {
	if r.Err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

// Workflow drives the solve state machine. It holds no per-solve state.
type Workflow struct {
	generator SolutionGenerator
	reviewer  SolutionReviewer
	extractor KnowledgeExtractor
	cfg       Config
	logger    *zap.Logger
	observer  Observer
}

// NewWorkflow creates a workflow over the given collaborators.
func NewWorkflow(gen SolutionGenerator, rev SolutionReviewer, ext KnowledgeExtractor, cfg Config, opts ...Option) *Workflow {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	w := &Workflow{
		generator: gen,
		reviewer:  rev,
		extractor: ext,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// MaxAttempts returns the configured attempt cap.
func (w *Workflow) MaxAttempts() int { return w.cfg.MaxAttempts }

// Solve runs one solve to completion. The returned Result is never nil;
// on a hard failure it carries the attempt count and the error, which is
// also returned. A solution that was generated but never reviewed is not
// exposed.
func (w *Workflow) Solve(ctx context.Context, req Request) (*Result, error) {
	solveID := uuid.NewString()
	ctx = llm.WithTrace(ctx, solveID)
	log := w.logger.With(zap.String("solve_id", solveID))

	s := NewState(req)
	for !s.Phase.Terminal() {
		ev := w.step(ctx, s)

		next, err := Transition(s, ev, w.cfg.MaxAttempts)
		if err != nil {
			next, _ = Transition(s, Event{Kind: EventFailed, Err: err}, w.cfg.MaxAttempts)
		}
		log.Debug("solve transition",
			zap.Stringer("from", s.Phase),
			zap.Stringer("event", ev.Kind),
			zap.Stringer("to", next.Phase),
			zap.Int("attempts", next.Attempts))
		s = next
	}

	res := w.result(solveID, s)
	w.report(log, s, res)
	return res, res.Err
}

// step runs the collaborator for the current phase and reports what
// happened as an Event.
func (w *Workflow) step(ctx context.Context, s State) Event {
	switch s.Phase {
	case PhaseSolving:
		if err := ctx.Err(); err != nil {
			return Event{Kind: EventFailed, Err: &GenerationError{Attempt: s.Attempts, Err: err}}
		}
		in := GenerateInput{
			Question:            s.Question,
			Points:              s.Points,
			KnowledgeIncomplete: s.Incomplete,
			Attempt:             s.Attempts,
		}
		if s.Review != nil {
			in.PriorReviewReason = s.Review.Reason
		}
		solution, err := w.generator.Generate(ctx, in)
		if err != nil {
			return Event{Kind: EventFailed, Err: asGenerationError(s.Attempts, err)}
		}
		return Event{Kind: EventGenerated, Solution: solution}

	case PhaseReviewing:
		if err := ctx.Err(); err != nil {
			return Event{Kind: EventFailed, Err: &ReviewError{Attempt: s.Attempts, Err: err}}
		}
		v, err := w.reviewer.Review(ctx, ReviewInput{
			Question:      s.Question,
			Solution:      s.Solution,
			CorrectAnswer: s.CorrectAnswer,
			Points:        s.Points,
			Attempt:       s.Attempts,
		})
		if err != nil {
			return Event{Kind: EventFailed, Err: asReviewError(s.Attempts, err)}
		}
		if w.observer != nil {
			w.observer.ObserveReview(v.Passed)
		}
		return Event{Kind: EventReviewed, Verdict: v}

	case PhaseExtracting:
		if w.extractor == nil {
			return Event{Kind: EventExtracted, Err: errNoExtractor}
		}
		res, err := w.extractor.Extract(ctx, s.Question, s.Solution, s.Points)
		return Event{Kind: EventExtracted, Extraction: res, Err: err}
	}

	return Event{Kind: EventFailed, Err: fmt.Errorf("%w: no step for phase %s", ErrInvalidTransition, s.Phase)}
}

func (w *Workflow) result(solveID string, s State) *Result {
	res := &Result{SolveID: solveID, Attempts: s.Attempts}
	if s.Phase == PhaseFailed {
		res.Err = s.Err
		return res
	}

	res.Solution = s.Solution
	if s.Review != nil {
		res.ReviewPassed = s.Review.Passed
		res.ReviewReason = s.Review.Reason
	}
	res.KnowledgePointsUsed = slices.Clone(s.Points)

	if s.Extraction != nil {
		res.Extracted = true
		res.NewKnowledgePoints = s.Extraction.New
		used := make(map[int]bool, len(s.Extraction.UsedExisting))
		for _, id := range s.Extraction.UsedExisting {
			used[id] = true
		}
		// Inline points have no ID to report and are kept as given.
		res.KnowledgePointsUsed = slices.DeleteFunc(res.KnowledgePointsUsed, func(v knowledge.View) bool {
			return v.ID > 0 && !used[v.ID]
		})
	}
	return res
}

func (w *Workflow) report(log *zap.Logger, s State, res *Result) {
	if w.observer != nil {
		w.observer.ObserveSolve(res.Status(), res.Attempts)
		switch {
		case s.ExtractionErr != nil:
			w.observer.ObserveExtraction(ExtractionError)
		case s.Extraction != nil && s.Extraction.Empty():
			w.observer.ObserveExtraction(ExtractionEmpty)
		case s.Extraction != nil:
			w.observer.ObserveExtraction(ExtractionOK)
		}
	}

	if s.ExtractionErr != nil {
		log.Warn("knowledge extraction failed, returning solution without it", zap.Error(s.ExtractionErr))
	}
	if res.Err != nil {
		log.Warn("solve failed",
			zap.String("stage", StageOf(res.Err)),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err))
		return
	}
	log.Info("solve finished",
		zap.Int("attempts", res.Attempts),
		zap.Bool("review_passed", res.ReviewPassed),
		zap.Bool("extracted", res.Extracted),
		zap.Stringer("phase", s.Phase))
}

func asGenerationError(attempt int, err error) error {
	if _, ok := err.(*GenerationError); ok {
		return err
	}
	return &GenerationError{Attempt: attempt, Err: err}
}

func asReviewError(attempt int, err error) error {
	if _, ok := err.(*ReviewError); ok {
		return err
	}
	return &ReviewError{Attempt: attempt, Err: err}
}
