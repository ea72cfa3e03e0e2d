package notebook

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/solving"
	"github.com/abhisek/mistakebook/internal/store"
)

// SolveOptions adjusts a single solve.
type SolveOptions struct {
	// Refs are the knowledge points to solve with. At least one is required.
	Refs []PointRef

	// Incomplete overrides the assessor's completeness verdict when set.
	Incomplete *bool

	// Force re-solves a question whose stored solution passed review.
	// Solutions that ran out of attempts are always re-solved.
	Force bool
}

// SolveOutcome is the result of Solve.
type SolveOutcome struct {
	Question *store.Question
	Result   *solving.Result

	// Completeness is the assessor verdict used to decide extraction; nil
	// when the caller overrode it or the solution was cached.
	Completeness *knowledge.Completeness

	// Cached is true when the stored solution was returned without solving.
	Cached bool
}

// Status is "success" or "error".
func (o *SolveOutcome) Status() string {
	if o.Result == nil {
		return solving.StatusError
	}
	return o.Result.Status()
}

// Solve solves one of the user's questions. It returns store.ErrNotFound
// when the question does not exist, an error wrapping ErrInvalidInput or
// solving.ErrNoKnowledgePoints for bad references, and the workflow's
// *solving.GenerationError or *solving.ReviewError for LLM failures; in the
// last case the outcome is returned as well.
//
// A solution is stored on the question whenever the workflow finishes,
// whether review passed or the attempts ran out. Only a passed solution is
// served from storage on later calls.
func (s *Service) Solve(ctx context.Context, userID string, questionID int, opts SolveOptions) (*SolveOutcome, error) {
	q, err := s.deps.Questions.GetForUser(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	if len(opts.Refs) == 0 {
		return nil, solving.ErrNoKnowledgePoints
	}

	points, err := s.resolve(ctx, opts.Refs)
	if err != nil {
		return nil, err
	}

	if q.Passed() && !opts.Force {
		return s.cached(q, points), nil
	}

	req := solving.Request{
		Question:      q.Text,
		Points:        points,
		CorrectAnswer: q.CorrectAnswer,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out := &SolveOutcome{Question: q}
	if opts.Incomplete != nil {
		req.KnowledgeIncomplete = *opts.Incomplete
	} else {
		c := s.assess(ctx, q.Text, points)
		out.Completeness = &c
		req.KnowledgeIncomplete = !c.Complete(s.cfg.CompletenessThreshold)
	}

	res, err := s.deps.Solver.Solve(ctx, req)
	out.Result = res
	if err != nil {
		return out, err
	}

	if err := s.deps.Questions.SetSolution(ctx, q.ID, store.StoredSolution{
		Solution:     res.Solution,
		ReviewPassed: res.ReviewPassed,
		ReviewReason: res.ReviewReason,
		Attempts:     res.Attempts,
	}); err != nil {
		return out, fmt.Errorf("store solution: %w", err)
	}
	if updated, err := s.deps.Questions.Get(ctx, q.ID); err == nil {
		out.Question = updated
	}
	return out, nil
}

// assess runs the completeness check. A failed check counts as
// incomplete: extraction is best-effort and errs on the side of running.
func (s *Service) assess(ctx context.Context, question string, points []knowledge.View) knowledge.Completeness {
	c, err := s.deps.Assessor.EvaluateCompleteness(ctx, question, points)
	if err != nil {
		s.logger.Warn("completeness check failed, assuming incomplete", zap.Error(err))
		return knowledge.Completeness{Reasoning: "completeness check failed"}
	}
	return c
}

func (s *Service) cached(q *store.Question, points []knowledge.View) *SolveOutcome {
	res := &solving.Result{
		Solution:            q.Solution,
		ReviewPassed:        true,
		ReviewReason:        q.ReviewReason,
		Attempts:            q.Attempts,
		KnowledgePointsUsed: points,
	}
	return &SolveOutcome{Question: q, Result: res, Cached: true}
}

// resolve turns references into prompt views. Stored references are
// loaded; inline ones must carry a complete identity.
func (s *Service) resolve(ctx context.Context, refs []PointRef) ([]knowledge.View, error) {
	var ids []int
	for _, r := range refs {
		if !r.Inline() {
			ids = append(ids, r.ID)
		}
	}
	stored, err := s.deps.Knowledge.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*knowledge.KnowledgePoint, len(stored))
	for _, kp := range stored {
		byID[kp.ID] = kp
	}

	views := make([]knowledge.View, 0, len(refs))
	for _, r := range refs {
		if !r.Inline() {
			kp, ok := byID[r.ID]
			if !ok {
				return nil, fmt.Errorf("%w: knowledge point %d does not exist", ErrInvalidInput, r.ID)
			}
			views = append(views, kp.View())
			continue
		}
		d := knowledge.Draft{
			Subject: r.Subject, Chapter: r.Chapter, Section: r.Section, Item: r.Item, Details: r.Details,
		}.Normalize()
		if err := d.Identity().Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		views = append(views, knowledge.View{
			Subject: d.Subject, Chapter: d.Chapter, Section: d.Section, Item: d.Item, Details: d.Details,
		})
	}
	return views, nil
}

// BatchItem is the outcome of one question in SolveMany.
type BatchItem struct {
	QuestionID int
	Outcome    *SolveOutcome
	Err        error
}

// SolveMany solves several questions, each with the knowledge points
// linked to it by earlier confirmations. Solves are independent: one
// failure does not stop the others. Items are returned in input order.
func (s *Service) SolveMany(ctx context.Context, userID string, questionIDs []int, force bool) []BatchItem {
	items := make([]BatchItem, len(questionIDs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range questionIDs {
		items[i].QuestionID = id
		g.Go(func() error {
			related, err := s.deps.Questions.RelatedKnowledge(ctx, id)
			if err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Outcome, items[i].Err = s.Solve(ctx, userID, id, SolveOptions{
				Refs:  RefsFromPoints(related),
				Force: force,
			})
			return nil
		})
	}
	g.Wait()

	var failed int
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	s.logger.Info("batch solve finished",
		zap.Int("questions", len(items)),
		zap.Int("failed", failed))
	return items
}
