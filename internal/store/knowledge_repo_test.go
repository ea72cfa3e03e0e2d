package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

func draft(subject, chapter, section, item string) knowledge.Draft {
	return knowledge.Draft{Subject: subject, Chapter: chapter, Section: section, Item: item}
}

func mustUpsert(t *testing.T, repo knowledge.Store, d knowledge.Draft) *knowledge.KnowledgePoint {
	t.Helper()
	kp, err := repo.UpsertByIdentity(context.Background(), d)
	if err != nil {
		t.Fatalf("upsert %v: %v", d, err)
	}
	return kp
}

func TestUpsertByIdentityIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	ctx := context.Background()

	first := mustUpsert(t, repo, knowledge.Draft{
		Subject: "math", Chapter: "algebra", Section: "linear", Item: "slope", Details: "X",
	})
	if first.ID == 0 || first.MarkCount != 0 {
		t.Fatalf("unexpected first upsert: %+v", first)
	}

	second := mustUpsert(t, repo, knowledge.Draft{
		Subject: " math ", Chapter: "algebra", Section: "linear", Item: "slope", Details: "other",
	})
	if second.ID != first.ID {
		t.Errorf("second upsert id = %d, want %d", second.ID, first.ID)
	}
	if second.MarkCount != 0 {
		t.Errorf("mark_count = %d, want 0", second.MarkCount)
	}
	if second.Details != "X" {
		t.Errorf("details = %q, want existing %q", second.Details, "X")
	}

	got, err := repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Details != "X" || got.Identity() != first.Identity() {
		t.Errorf("round trip = %+v", got)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
}

func TestUpsertRejectsIncompleteIdentity(t *testing.T) {
	s := openTestStore(t)
	_, err := s.KnowledgeRepo().UpsertByIdentity(context.Background(), draft("math", "", "linear", "slope"))
	if !errors.Is(err, knowledge.ErrIncompleteIdentity) {
		t.Errorf("err = %v, want ErrIncompleteIdentity", err)
	}
}

func TestConcurrentUpsertSameIdentity(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()

	const n = 8
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kp, err := repo.UpsertByIdentity(context.Background(), draft("math", "geometry", "circles", "area"))
			if err != nil {
				t.Errorf("upsert: %v", err)
				return
			}
			ids[i] = kp.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("ids diverged: %v", ids)
		}
	}

	all, err := repo.Query(context.Background(), knowledge.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d rows, want 1", len(all))
	}
}

func TestFindMissing(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	ctx := context.Background()

	kp, err := repo.FindByID(ctx, 42)
	if err != nil || kp != nil {
		t.Errorf("FindByID(missing) = %v, %v; want nil, nil", kp, err)
	}
	kp, err = repo.IncrementMarkCount(ctx, 42)
	if err != nil || kp != nil {
		t.Errorf("IncrementMarkCount(missing) = %v, %v; want nil, nil", kp, err)
	}
	list, err := repo.FindByIDs(ctx, nil)
	if err != nil || len(list) != 0 {
		t.Errorf("FindByIDs(nil) = %v, %v", list, err)
	}
}

func TestIncrementMarkCount(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	kp := mustUpsert(t, repo, draft("math", "algebra", "linear", "slope"))

	for want := 1; want <= 2; want++ {
		got, err := repo.IncrementMarkCount(context.Background(), kp.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got.MarkCount != want {
			t.Errorf("mark_count = %d, want %d", got.MarkCount, want)
		}
	}
}

func seedPoints(t *testing.T, repo knowledge.Store) []*knowledge.KnowledgePoint {
	t.Helper()
	drafts := []knowledge.Draft{
		draft("math", "algebra", "linear", "slope"),
		draft("math", "algebra", "linear", "intercept"),
		draft("math", "algebra", "quadratic", "discriminant"),
		draft("math", "geometry", "circles", "area"),
		draft("physics", "mechanics", "kinematics", "velocity"),
	}
	out := make([]*knowledge.KnowledgePoint, len(drafts))
	for i, d := range drafts {
		out[i] = mustUpsert(t, repo, d)
	}
	return out
}

func TestFindByStructure(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	seedPoints(t, repo)
	ctx := context.Background()

	tests := []struct {
		name                      string
		subject, chapter, section string
		want                      int
	}{
		{"subject only", "math", "", "", 4},
		{"chapter", "math", "algebra", "", 3},
		{"section", "math", "algebra", "linear", 2},
		{"section without chapter", "math", "", "circles", 1},
		{"unknown", "chemistry", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByStructure(ctx, tt.subject, tt.chapter, tt.section)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d points, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQueryFilterSortPage(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	points := seedPoints(t, repo)
	ctx := context.Background()

	// discriminant: 2 marks, area: 1 mark.
	for _, id := range []int{points[2].ID, points[2].ID, points[3].ID} {
		if _, err := repo.IncrementMarkCount(ctx, id); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	byMarks, err := repo.Query(ctx, knowledge.Filter{SortBy: knowledge.SortByMarkCount, Desc: true, Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byMarks) != 2 || byMarks[0].ID != points[2].ID || byMarks[1].ID != points[3].ID {
		t.Errorf("unexpected order: %+v", byMarks)
	}

	items, err := repo.Query(ctx, knowledge.Filter{Item: "CEPT"})
	if err != nil {
		t.Fatalf("query item: %v", err)
	}
	if len(items) != 1 || items[0].Item != "intercept" {
		t.Errorf("item filter = %+v", items)
	}

	page, err := repo.Query(ctx, knowledge.Filter{Subject: "math", Offset: 3})
	if err != nil {
		t.Fatalf("query page: %v", err)
	}
	if len(page) != 1 || page[0].ID != points[3].ID {
		t.Errorf("offset page = %+v", page)
	}

	popular, err := repo.Popular(ctx, 1)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if len(popular) != 1 || popular[0].ID != points[2].ID {
		t.Errorf("popular = %+v", popular)
	}
}

func TestStructureListings(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	seedPoints(t, repo)
	ctx := context.Background()

	subjects, err := repo.Subjects(ctx)
	if err != nil {
		t.Fatalf("subjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "math" || subjects[1] != "physics" {
		t.Errorf("subjects = %v", subjects)
	}

	chapters, err := repo.Chapters(ctx, "math")
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(chapters) != 2 || chapters[0] != "algebra" {
		t.Errorf("chapters = %v", chapters)
	}

	sections, err := repo.Sections(ctx, "math", "algebra")
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if len(sections) != 2 || sections[0] != "linear" || sections[1] != "quadratic" {
		t.Errorf("sections = %v", sections)
	}

	cats, err := repo.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 4 {
		t.Errorf("got %d categories, want 4", len(cats))
	}
}
