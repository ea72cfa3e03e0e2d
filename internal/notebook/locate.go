package notebook

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

// Location statuses.
const (
	LocateSuccess = "success"
	LocatePartial = "partial"
)

// Location is where a question sits in the curriculum and which stored
// knowledge points cover it.
type Location struct {
	Status     string                      `json:"status"`
	Subject    knowledge.SubjectGuess      `json:"subject_info"`
	Points     []*knowledge.KnowledgePoint `json:"knowledge_points"`
	Complete   bool                        `json:"is_complete"`
	Evaluation knowledge.Completeness      `json:"evaluation"`

	// Suggestions are existing categories the question may belong to,
	// offered when the classifier was not confident.
	Suggestions []knowledge.Category `json:"suggested_categories,omitempty"`
}

// Locate classifies one of the user's questions. A confident
// classification is looked up structurally and its points are assessed
// for completeness; otherwise the result is partial and carries category
// suggestions drawn from the stored points.
func (s *Service) Locate(ctx context.Context, userID string, questionID int) (*Location, error) {
	q, err := s.deps.Questions.GetForUser(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	return s.LocateText(ctx, q.Text)
}

// LocateText is Locate for a question that is not stored.
func (s *Service) LocateText(ctx context.Context, question string) (*Location, error) {
	guess, err := s.deps.Assessor.ClassifySubject(ctx, question)
	if err != nil {
		return nil, err
	}

	if guess.Confidence < s.cfg.CompletenessThreshold || guess.Subject == knowledge.Unknown {
		return s.partial(ctx, question, guess), nil
	}

	points, err := s.deps.Knowledge.FindByStructure(ctx, guess.Subject, guess.Chapter, guess.Section)
	if err != nil {
		return nil, err
	}
	views := make([]knowledge.View, len(points))
	for i, kp := range points {
		views[i] = kp.View()
	}

	eval, err := s.deps.Assessor.EvaluateCompleteness(ctx, question, views)
	if err != nil {
		return nil, err
	}
	return &Location{
		Status:     LocateSuccess,
		Subject:    guess,
		Points:     points,
		Complete:   eval.Complete(s.cfg.CompletenessThreshold),
		Evaluation: eval,
	}, nil
}

func (s *Service) partial(ctx context.Context, question string, guess knowledge.SubjectGuess) *Location {
	loc := &Location{
		Status:  LocatePartial,
		Subject: guess,
		Points:  []*knowledge.KnowledgePoint{},
		Evaluation: knowledge.Completeness{
			Missing:   []string{"more information needed"},
			Reasoning: "low classification confidence",
		},
	}

	categories, err := s.deps.Knowledge.Categories(ctx)
	if err == nil && len(categories) > 0 {
		loc.Suggestions, err = s.deps.Assessor.SuggestCategories(ctx, question, categories)
	}
	if err != nil {
		s.logger.Debug("category suggestions unavailable", zap.Error(err))
	}
	return loc
}
