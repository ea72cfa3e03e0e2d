package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

var builder = entsql.Dialect(dialect.SQLite)

var knowledgePointFields = []string{
	"id", "subject", "chapter", "section", "item", "details", "mark_count", "created_at",
}

// knowledgeRepo implements knowledge.Store on the knowledge_points table.
type knowledgeRepo struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKnowledgePoint(sc scanner) (*knowledge.KnowledgePoint, error) {
	var kp knowledge.KnowledgePoint
	err := sc.Scan(&kp.ID, &kp.Subject, &kp.Chapter, &kp.Section, &kp.Item,
		&kp.Details, &kp.MarkCount, &kp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &kp, nil
}

func selectPoints() *entsql.Selector {
	return builder.Select(knowledgePointFields...).From(builder.Table(tableKnowledgePoints))
}

func (r *knowledgeRepo) one(ctx context.Context, s *entsql.Selector) (*knowledge.KnowledgePoint, error) {
	query, args := s.Limit(1).Query()
	kp, err := scanKnowledgePoint(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query knowledge point: %w", err)
	}
	return kp, nil
}

func (r *knowledgeRepo) list(ctx context.Context, s *entsql.Selector) ([]*knowledge.KnowledgePoint, error) {
	query, args := s.Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge points: %w", err)
	}
	defer rows.Close()

	var out []*knowledge.KnowledgePoint
	for rows.Next() {
		kp, err := scanKnowledgePoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge point: %w", err)
		}
		out = append(out, kp)
	}
	return out, rows.Err()
}

func (r *knowledgeRepo) strings(ctx context.Context, s *entsql.Selector) ([]string, error) {
	query, args := s.Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge structure: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *knowledgeRepo) FindByID(ctx context.Context, id int) (*knowledge.KnowledgePoint, error) {
	return r.one(ctx, selectPoints().Where(entsql.EQ("id", id)))
}

func (r *knowledgeRepo) FindByIDs(ctx context.Context, ids []int) ([]*knowledge.KnowledgePoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.list(ctx, selectPoints().Where(entsql.In("id", args...)).OrderBy("id"))
}

func (r *knowledgeRepo) FindByStructure(ctx context.Context, subject, chapter, section string) ([]*knowledge.KnowledgePoint, error) {
	preds := []*entsql.Predicate{entsql.EQ("subject", subject)}
	if chapter != "" {
		preds = append(preds, entsql.EQ("chapter", chapter))
	}
	if section != "" {
		preds = append(preds, entsql.EQ("section", section))
	}
	return r.list(ctx, selectPoints().
		Where(entsql.And(preds...)).
		OrderBy("chapter", "section", "item"))
}

func (r *knowledgeRepo) findByIdentity(ctx context.Context, id knowledge.Identity) (*knowledge.KnowledgePoint, error) {
	return r.one(ctx, selectPoints().Where(entsql.And(
		entsql.EQ("subject", id.Subject),
		entsql.EQ("chapter", id.Chapter),
		entsql.EQ("section", id.Section),
		entsql.EQ("item", id.Item),
	)))
}

func (r *knowledgeRepo) UpsertByIdentity(ctx context.Context, d knowledge.Draft) (*knowledge.KnowledgePoint, error) {
	d = d.Normalize()
	id := d.Identity()
	if err := id.Validate(); err != nil {
		return nil, err
	}

	// A concurrent writer may insert the same identity between our check
	// and insert; DO NOTHING plus the re-select returns whichever row won.
	query, args := builder.Insert(tableKnowledgePoints).
		Columns("subject", "chapter", "section", "item", "details", "mark_count", "created_at").
		Values(id.Subject, id.Chapter, id.Section, id.Item, d.Details, 0, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("subject", "chapter", "section", "item"),
			entsql.DoNothing(),
		).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert knowledge point: %w", err)
	}

	kp, err := r.findByIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if kp == nil {
		return nil, fmt.Errorf("%w: %s", knowledge.ErrIdentityConflict, id.Path())
	}
	return kp, nil
}

func (r *knowledgeRepo) IncrementMarkCount(ctx context.Context, id int) (*knowledge.KnowledgePoint, error) {
	query, args := builder.Update(tableKnowledgePoints).
		Add("mark_count", 1).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("increment mark count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *knowledgeRepo) Query(ctx context.Context, f knowledge.Filter) ([]*knowledge.KnowledgePoint, error) {
	s := selectPoints()

	var preds []*entsql.Predicate
	if f.Subject != "" {
		preds = append(preds, entsql.EQ("subject", f.Subject))
	}
	if f.Chapter != "" {
		preds = append(preds, entsql.EQ("chapter", f.Chapter))
	}
	if f.Section != "" {
		preds = append(preds, entsql.EQ("section", f.Section))
	}
	if f.Item != "" {
		preds = append(preds, entsql.ContainsFold("item", f.Item))
	}
	if len(preds) > 0 {
		s.Where(entsql.And(preds...))
	}

	order := "id"
	switch f.SortBy {
	case knowledge.SortByMarkCount:
		order = "mark_count"
	case knowledge.SortByCreatedAt:
		order = "created_at"
	}
	if f.Desc {
		s.OrderBy(entsql.Desc(order), entsql.Desc("id"))
	} else {
		s.OrderBy(entsql.Asc(order), entsql.Asc("id"))
	}

	paginate(s, f.Limit, f.Offset)
	return r.list(ctx, s)
}

func (r *knowledgeRepo) Popular(ctx context.Context, limit int) ([]*knowledge.KnowledgePoint, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.list(ctx, selectPoints().
		OrderBy(entsql.Desc("mark_count"), entsql.Asc("id")).
		Limit(limit))
}

func (r *knowledgeRepo) Subjects(ctx context.Context) ([]string, error) {
	return r.strings(ctx, builder.Select("subject").Distinct().
		From(builder.Table(tableKnowledgePoints)).
		OrderBy("subject"))
}

func (r *knowledgeRepo) Chapters(ctx context.Context, subject string) ([]string, error) {
	return r.strings(ctx, builder.Select("chapter").Distinct().
		From(builder.Table(tableKnowledgePoints)).
		Where(entsql.EQ("subject", subject)).
		OrderBy("chapter"))
}

func (r *knowledgeRepo) Sections(ctx context.Context, subject, chapter string) ([]string, error) {
	return r.strings(ctx, builder.Select("section").Distinct().
		From(builder.Table(tableKnowledgePoints)).
		Where(entsql.And(entsql.EQ("subject", subject), entsql.EQ("chapter", chapter))).
		OrderBy("section"))
}

func (r *knowledgeRepo) Categories(ctx context.Context) ([]knowledge.Category, error) {
	query, args := builder.Select("subject", "chapter", "section").Distinct().
		From(builder.Table(tableKnowledgePoints)).
		OrderBy("subject", "chapter", "section").
		Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Category
	for rows.Next() {
		var c knowledge.Category
		if err := rows.Scan(&c.Subject, &c.Chapter, &c.Section); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// paginate applies limit and offset. SQLite only accepts OFFSET after a
// LIMIT, and -1 means unbounded.
func paginate(s *entsql.Selector, limit, offset int) {
	if limit <= 0 && offset <= 0 {
		return
	}
	if limit <= 0 {
		limit = -1
	}
	s.Limit(limit)
	if offset > 0 {
		s.Offset(offset)
	}
}
