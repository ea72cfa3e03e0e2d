package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/ocr"
	"github.com/abhisek/mistakebook/internal/store"
)

// NewQuestion is the input of AddQuestion.
type NewQuestion struct {
	Text          string `json:"question"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// AddQuestion records a wrong question for userID.
func (s *Service) AddQuestion(ctx context.Context, userID string, nq NewQuestion) (*store.Question, error) {
	if strings.TrimSpace(nq.Text) == "" {
		return nil, fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	return s.deps.Questions.Create(ctx, &store.Question{
		UserID:        userID,
		Text:          nq.Text,
		CorrectAnswer: nq.CorrectAnswer,
		Subject:       nq.Subject,
	})
}

// AddQuestionFromImage transcribes a question photo, and optionally a
// photo of the correct answer, and records the result. OCR errors
// (ocr.ErrImageTooLarge and friends) are returned as is.
func (s *Service) AddQuestionFromImage(ctx context.Context, userID string, question, answer []byte, subject string) (*store.Question, error) {
	if s.deps.OCR == nil {
		return nil, ErrOCRUnavailable
	}

	text, err := s.deps.OCR.ExtractText(ctx, question, ocr.ModeQuestion)
	if err != nil {
		return nil, fmt.Errorf("extract question text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text found in question image", ErrInvalidInput)
	}

	var correct string
	if len(answer) > 0 {
		correct, err = s.deps.OCR.ExtractText(ctx, answer, ocr.ModeAnswer)
		if err != nil {
			return nil, fmt.Errorf("extract answer text: %w", err)
		}
	}

	return s.AddQuestion(ctx, userID, NewQuestion{Text: text, CorrectAnswer: correct, Subject: subject})
}

// Question returns one of the user's questions.
func (s *Service) Question(ctx context.Context, userID string, id int) (*store.Question, error) {
	return s.deps.Questions.GetForUser(ctx, userID, id)
}

// Questions lists the user's questions, newest first.
func (s *Service) Questions(ctx context.Context, userID string, limit, offset int) ([]*store.Question, error) {
	return s.deps.Questions.ListByUser(ctx, userID, store.QueryOpts{Limit: limit, Offset: offset})
}

// RelatedKnowledge lists the points linked to one of the user's questions.
func (s *Service) RelatedKnowledge(ctx context.Context, userID string, id int) ([]*knowledge.KnowledgePoint, error) {
	if _, err := s.deps.Questions.GetForUser(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.deps.Questions.RelatedKnowledge(ctx, id)
}

// Confirm persists the user's accepted extraction: each confirmed point
// gains a mark and a link to the question. Drafts are created when their
// identity is new.
func (s *Service) Confirm(ctx context.Context, userID string, questionID int, existingIDs []int, drafts []knowledge.Draft) ([]*knowledge.KnowledgePoint, error) {
	if _, err := s.deps.Questions.GetForUser(ctx, userID, questionID); err != nil {
		return nil, err
	}
	if len(existingIDs) == 0 && len(drafts) == 0 {
		return nil, fmt.Errorf("%w: nothing to confirm", ErrInvalidInput)
	}
	for _, d := range drafts {
		if err := d.Identity().Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return s.deps.Marks.ApplyConfirmed(ctx, userID, questionID, existingIDs, drafts)
}

// AddKnowledgePoint creates a point or returns the existing one with the
// same identity.
func (s *Service) AddKnowledgePoint(ctx context.Context, d knowledge.Draft) (*knowledge.KnowledgePoint, error) {
	if err := d.Identity().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.deps.Knowledge.UpsertByIdentity(ctx, d)
}
