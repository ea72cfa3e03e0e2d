package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

var questionFields = []string{
	"id", "user_id", "question_text", "correct_answer", "subject", "solution",
	"review_passed", "review_reason", "attempts", "created_at", "updated_at",
}

// questionRepo implements QuestionRepo on the wrong_questions table.
type questionRepo struct {
	q querier
}

func scanQuestion(sc scanner) (*Question, error) {
	var (
		q      Question
		passed sql.NullBool
	)
	err := sc.Scan(&q.ID, &q.UserID, &q.Text, &q.CorrectAnswer, &q.Subject, &q.Solution,
		&passed, &q.ReviewReason, &q.Attempts, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if passed.Valid {
		q.ReviewPassed = &passed.Bool
	}
	return &q, nil
}

func selectQuestions() *entsql.Selector {
	return builder.Select(questionFields...).From(builder.Table(tableWrongQuestions))
}

func (r *questionRepo) Create(ctx context.Context, q *Question) (*Question, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errors.New("question text is required")
	}
	if q.UserID == "" {
		return nil, errors.New("question owner is required")
	}

	now := time.Now().UTC()
	query, args := builder.Insert(tableWrongQuestions).
		Columns("user_id", "question_text", "correct_answer", "subject", "created_at", "updated_at").
		Values(q.UserID, text, strings.TrimSpace(q.CorrectAnswer), q.Subject, now, now).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return r.Get(ctx, int(id))
}

func (r *questionRepo) get(ctx context.Context, s *entsql.Selector) (*Question, error) {
	query, args := s.Query()
	q, err := scanQuestion(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query question: %w", err)
	}
	return q, nil
}

func (r *questionRepo) Get(ctx context.Context, id int) (*Question, error) {
	return r.get(ctx, selectQuestions().Where(entsql.EQ("id", id)))
}

func (r *questionRepo) GetForUser(ctx context.Context, userID string, id int) (*Question, error) {
	return r.get(ctx, selectQuestions().Where(entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("user_id", userID),
	)))
}

func (r *questionRepo) ListByUser(ctx context.Context, userID string, opts QueryOpts) ([]*Question, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", opts.From))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", opts.To))
	}
	s := selectQuestions().Where(entsql.And(preds...)).OrderBy(entsql.Desc("id"))
	paginate(s, opts.Limit, opts.Offset)

	query, args := s.Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *questionRepo) SetSolution(ctx context.Context, id int, sol StoredSolution) error {
	query, args := builder.Update(tableWrongQuestions).
		Set("solution", sol.Solution).
		Set("review_passed", sol.ReviewPassed).
		Set("review_reason", sol.ReviewReason).
		Set("attempts", sol.Attempts).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store solution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *questionRepo) RelatedKnowledge(ctx context.Context, questionID int) ([]*knowledge.KnowledgePoint, error) {
	kp := builder.Table(tableKnowledgePoints).As("kp")
	rel := builder.Table(tableRelations).As("rel")

	cols := make([]string, len(knowledgePointFields))
	for i, f := range knowledgePointFields {
		cols[i] = kp.C(f)
	}
	s := builder.Select(cols...).
		From(kp).
		Join(rel).On(kp.C("id"), rel.C("knowledge_point_id")).
		Where(entsql.EQ(rel.C("question_id"), questionID)).
		OrderBy(entsql.Desc(kp.C("mark_count")), entsql.Asc(kp.C("id")))

	return (&knowledgeRepo{q: r.q}).list(ctx, s)
}
