package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

// markRepo implements MarkRepo. Every confirmation runs in its own
// transaction.
type markRepo struct {
	db *sql.DB
}

func (r *markRepo) ApplyConfirmed(ctx context.Context, userID string, questionID int, existingIDs []int, drafts []knowledge.Draft) (out []*knowledge.KnowledgePoint, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirmation: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	questions := &questionRepo{q: tx}
	if _, err := questions.Get(ctx, questionID); err != nil {
		return nil, err
	}

	points := &knowledgeRepo{q: tx}
	seen := make(map[int]bool)
	now := time.Now().UTC()

	mark := func(id int) error {
		if seen[id] {
			return nil
		}
		kp, err := points.IncrementMarkCount(ctx, id)
		if err != nil {
			return err
		}
		if kp == nil {
			return nil
		}
		seen[id] = true
		if err := linkQuestion(ctx, tx, questionID, id, now); err != nil {
			return err
		}
		if err := recordUserMark(ctx, tx, userID, questionID, id, now); err != nil {
			return err
		}
		out = append(out, kp)
		return nil
	}

	for _, id := range existingIDs {
		if err := mark(id); err != nil {
			return nil, err
		}
	}

	for _, d := range drafts {
		kp, err := points.UpsertByIdentity(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("upsert draft %q: %w", d.Item, err)
		}
		if err := mark(kp.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirmation: %w", err)
	}
	return out, nil
}

func (r *markRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	query, args := builder.Select(entsql.Count("*")).
		From(builder.Table(tableUserMarks)).
		Where(entsql.EQ("user_id", userID)).
		Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user marks: %w", err)
	}
	return n, nil
}

func linkQuestion(ctx context.Context, q querier, questionID, pointID int, now time.Time) error {
	query, args := builder.Insert(tableRelations).
		Columns("question_id", "knowledge_point_id", "created_at").
		Values(questionID, pointID, now).
		OnConflict(
			entsql.ConflictColumns("question_id", "knowledge_point_id"),
			entsql.DoNothing(),
		).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("link question %d to point %d: %w", questionID, pointID, err)
	}
	return nil
}

func recordUserMark(ctx context.Context, q querier, userID string, questionID, pointID int, now time.Time) error {
	query, args := builder.Insert(tableUserMarks).
		Columns("user_id", "question_id", "knowledge_point_id", "created_at").
		Values(userID, questionID, pointID, now).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record user mark: %w", err)
	}
	return nil
}
