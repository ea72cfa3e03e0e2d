package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/notebook"
	"github.com/abhisek/mistakebook/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func bodyLimit(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}

// page reads limit and offset query parameters.
func page(c echo.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	err = echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = min(max(limit, 1), maxPageSize)
	}
	if offset < 0 {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "offset must not be negative")
	}
	return limit, offset, nil
}

// Questions

func (s *Server) handleCreateQuestion(c echo.Context) error {
	var body notebook.NewQuestion
	if err := c.Bind(&body); err != nil {
		return err
	}
	q, err := s.svc.AddQuestion(c.Request().Context(), userID(c), body)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, q)
}

func (s *Server) handleCreateQuestionFromImage(c echo.Context) error {
	question, err := formFile(c, "image")
	if err != nil {
		return err
	}
	if question == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image is required")
	}
	answer, err := formFile(c, "answer_image")
	if err != nil {
		return err
	}

	q, err := s.svc.AddQuestionFromImage(c.Request().Context(), userID(c), question, answer, c.FormValue("subject"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, q)
}

// formFile reads an uploaded file. A missing field yields nil.
func formFile(c echo.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read %s: %v", field, err))
	}
	return readUpload(fh)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleListQuestions(c echo.Context) error {
	limit, offset, err := page(c)
	if err != nil {
		return err
	}
	qs, err := s.svc.Questions(c.Request().Context(), userID(c), limit, offset)
	if err != nil {
		return err
	}
	if qs == nil {
		qs = []*store.Question{}
	}
	return ok(c, http.StatusOK, qs)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	q, err := s.svc.Question(c.Request().Context(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, q)
}

func (s *Server) handleQuestionKnowledge(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	points, err := s.svc.RelatedKnowledge(c.Request().Context(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(points))
}

type confirmRequest struct {
	ExistingIDs []int             `json:"existing_ids"`
	NewPoints   []knowledge.Draft `json:"new_points"`
}

func (s *Server) handleConfirm(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	points, err := s.svc.Confirm(c.Request().Context(), userID(c), id, body.ExistingIDs, body.NewPoints)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(points))
}

// Solving

type solveRequest struct {
	KnowledgePoints []notebook.PointRef `json:"knowledge_points"`
	Incomplete      *bool               `json:"incomplete,omitempty"`
	Force           bool                `json:"force"`
}

type solveData struct {
	Question           *store.Question         `json:"question"`
	SolveID            string                  `json:"solve_id,omitempty"`
	Solution           string                  `json:"solution"`
	ReviewPassed       bool                    `json:"review_passed"`
	ReviewReason       string                  `json:"review_reason"`
	Attempts           int                     `json:"attempts"`
	KnowledgePoints    []knowledge.View        `json:"knowledge_points"`
	NewKnowledgePoints []knowledge.Draft       `json:"new_knowledge_points"`
	Extracted          bool                    `json:"extracted"`
	Cached             bool                    `json:"cached"`
	Completeness       *knowledge.Completeness `json:"completeness,omitempty"`
}

func newSolveData(out *notebook.SolveOutcome) *solveData {
	if out == nil || out.Result == nil {
		return nil
	}
	r := out.Result
	d := &solveData{
		Question:           out.Question,
		SolveID:            r.SolveID,
		Solution:           r.Solution,
		ReviewPassed:       r.ReviewPassed,
		ReviewReason:       r.ReviewReason,
		Attempts:           r.Attempts,
		KnowledgePoints:    r.KnowledgePointsUsed,
		NewKnowledgePoints: r.NewKnowledgePoints,
		Extracted:          r.Extracted,
		Cached:             out.Cached,
		Completeness:       out.Completeness,
	}
	if d.KnowledgePoints == nil {
		d.KnowledgePoints = []knowledge.View{}
	}
	if d.NewKnowledgePoints == nil {
		d.NewKnowledgePoints = []knowledge.Draft{}
	}
	return d
}

func (s *Server) handleSolve(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body solveRequest
	if err := c.Bind(&body); err != nil {
		return err
	}

	out, err := s.svc.Solve(c.Request().Context(), userID(c), id, notebook.SolveOptions{
		Refs:       body.KnowledgePoints,
		Incomplete: body.Incomplete,
		Force:      body.Force,
	})
	if err != nil {
		// A failed workflow still reports how far it got.
		if data := newSolveData(out); data != nil {
			return c.JSON(statusCode(err), envelope{Status: statusError, Message: err.Error(), Data: data})
		}
		return err
	}
	return ok(c, http.StatusOK, newSolveData(out))
}

type batchRequest struct {
	QuestionIDs []int `json:"question_ids"`
	Force       bool  `json:"force"`
}

type batchItem struct {
	QuestionID int        `json:"question_id"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	Data       *solveData `json:"data,omitempty"`
}

func (s *Server) handleSolveBatch(c echo.Context) error {
	var body batchRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	if len(body.QuestionIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "question_ids is required")
	}

	results := s.svc.SolveMany(c.Request().Context(), userID(c), body.QuestionIDs, body.Force)
	items := make([]batchItem, len(results))
	for i, r := range results {
		items[i] = batchItem{QuestionID: r.QuestionID, Status: statusSuccess, Data: newSolveData(r.Outcome)}
		if r.Err != nil {
			items[i].Status = statusError
			items[i].Message = r.Err.Error()
		}
	}
	return ok(c, http.StatusOK, items)
}

func (s *Server) handleLocate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	loc, err := s.svc.Locate(c.Request().Context(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, loc)
}

// Knowledge

func (s *Server) handleListKnowledge(c echo.Context) error {
	f := knowledge.Filter{Limit: defaultPageSize}
	var sortBy, order string
	err := echo.QueryParamsBinder(c).
		String("subject", &f.Subject).
		String("chapter", &f.Chapter).
		String("section", &f.Section).
		String("q", &f.Item).
		String("sort", &sortBy).
		String("order", &order).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		BindError()
	if err != nil {
		return err
	}

	switch knowledge.SortField(sortBy) {
	case "", knowledge.SortByMarkCount:
		f.SortBy = knowledge.SortByMarkCount
		f.Desc = order != "asc"
	case knowledge.SortByCreatedAt:
		f.SortBy = knowledge.SortByCreatedAt
		f.Desc = order == "desc"
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "sort must be mark_count or created_at")
	}
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = min(max(f.Limit, 1), maxPageSize)
	}
	if f.Offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "offset must not be negative")
	}

	points, err := s.svc.Knowledge().Query(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(points))
}

func (s *Server) handleGetKnowledge(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	kp, err := s.svc.Knowledge().FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if kp == nil {
		return store.ErrNotFound
	}
	return ok(c, http.StatusOK, kp)
}

func (s *Server) handleCreateKnowledge(c echo.Context) error {
	var d knowledge.Draft
	if err := c.Bind(&d); err != nil {
		return err
	}
	kp, err := s.svc.AddKnowledgePoint(c.Request().Context(), d)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, kp)
}

func (s *Server) handlePopularKnowledge(c echo.Context) error {
	limit := 10
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return err
	}
	points, err := s.svc.Knowledge().Popular(c.Request().Context(), min(max(limit, 1), maxPageSize))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(points))
}

func (s *Server) handleSubjects(c echo.Context) error {
	subjects, err := s.svc.Knowledge().Subjects(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(subjects))
}

func (s *Server) handleChapters(c echo.Context) error {
	subject := c.QueryParam("subject")
	if subject == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject is required")
	}
	chapters, err := s.svc.Knowledge().Chapters(c.Request().Context(), subject)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(chapters))
}

func (s *Server) handleSections(c echo.Context) error {
	subject, chapter := c.QueryParam("subject"), c.QueryParam("chapter")
	if subject == "" || chapter == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject and chapter are required")
	}
	sections, err := s.svc.Knowledge().Sections(c.Request().Context(), subject, chapter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, nonNil(sections))
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
