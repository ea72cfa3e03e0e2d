package solving

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

// capturingGenerator records every input and answers from a script.
type capturingGenerator struct {
	mu     sync.Mutex
	inputs []GenerateInput
	errAt  map[int]error
}

func (g *capturingGenerator) Generate(_ context.Context, in GenerateInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	if err := g.errAt[in.Attempt]; err != nil {
		return "", err
	}
	return fmt.Sprintf("solution %d", in.Attempt), nil
}

func (g *capturingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inputs)
}

// scriptedReviewer returns verdicts in order.
type scriptedReviewer struct {
	mu       sync.Mutex
	verdicts []Verdict
	err      error
	inputs   []ReviewInput
}

func (r *scriptedReviewer) Review(_ context.Context, in ReviewInput) (Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return Verdict{}, r.err
	}
	v := r.verdicts[0]
	r.verdicts = r.verdicts[1:]
	return v, nil
}

type stubExtractor struct {
	calls int
	res   knowledge.ExtractionResult
	err   error
}

func (e *stubExtractor) Extract(_ context.Context, _, _ string, _ []knowledge.View) (knowledge.ExtractionResult, error) {
	e.calls++
	return e.res, e.err
}

type recordingObserver struct {
	solves      []string
	reviews     []bool
	extractions []string
}

func (o *recordingObserver) ObserveSolve(status string, _ int) { o.solves = append(o.solves, status) }
func (o *recordingObserver) ObserveReview(passed bool)         { o.reviews = append(o.reviews, passed) }
func (o *recordingObserver) ObserveExtraction(outcome string)  { o.extractions = append(o.extractions, outcome) }

func additionRequest() Request {
	return Request{
		Question:      "2+2=?",
		Points:        []knowledge.View{{ID: 1, Subject: "math", Chapter: "arithmetic", Section: "integers", Item: "addition"}},
		CorrectAnswer: "4",
	}
}

func TestWorkflow_ScenarioA_PassFirstAttempt(t *testing.T) {
	gen := &capturingGenerator{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Passed: true, Reason: "correct"}}}
	ext := &stubExtractor{}
	w := NewWorkflow(gen, rev, ext, DefaultConfig())

	res, err := w.Solve(context.Background(), additionRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status())
	assert.True(t, res.ReviewPassed)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "solution 1", res.Solution)
	assert.Equal(t, "correct", res.ReviewReason)
	assert.Equal(t, 1, gen.calls())
	assert.Zero(t, ext.calls, "complete knowledge must not extract")
	assert.Equal(t, "4", rev.inputs[0].CorrectAnswer)
	assert.NotEmpty(t, res.SolveID)
}

func TestWorkflow_ScenarioB_PassOnThirdAttempt(t *testing.T) {
	gen := &capturingGenerator{}
	rev := &scriptedReviewer{verdicts: []Verdict{
		{Reason: "arithmetic slip in step 2"},
		{Reason: "final answer not stated"},
		{Passed: true, Reason: "correct"},
	}}
	w := NewWorkflow(gen, rev, &stubExtractor{}, DefaultConfig())

	res, err := w.Solve(context.Background(), additionRequest())
	require.NoError(t, err)

	assert.True(t, res.ReviewPassed)
	assert.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, gen.calls())

	assert.Empty(t, gen.inputs[0].PriorReviewReason)
	assert.Equal(t, "arithmetic slip in step 2", gen.inputs[1].PriorReviewReason)
	assert.Equal(t, 3, gen.inputs[2].Attempt)
	assert.Equal(t, "final answer not stated", gen.inputs[2].PriorReviewReason)
	assert.Equal(t, "solution 2", rev.inputs[1].Solution)
}

func TestWorkflow_ScenarioC_ExhaustionWithoutPass(t *testing.T) {
	gen := &capturingGenerator{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Reason: "r1"}, {Reason: "r2"}, {Reason: "r3"}}}
	ext := &stubExtractor{}
	req := additionRequest()
	req.KnowledgeIncomplete = true
	w := NewWorkflow(gen, rev, ext, DefaultConfig())

	res, err := w.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status())
	assert.False(t, res.ReviewPassed)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "r3", res.ReviewReason)
	assert.Equal(t, "solution 3", res.Solution)
	assert.Equal(t, 3, gen.calls())
	assert.Zero(t, ext.calls)
	assert.False(t, res.Extracted)
}

func TestWorkflow_ScenarioD_GenerationErrorOnFirstAttempt(t *testing.T) {
	cause := errors.New("upstream timeout")
	gen := &capturingGenerator{errAt: map[int]error{1: &GenerationError{Attempt: 1, Err: cause}}}
	rev := &scriptedReviewer{}
	w := NewWorkflow(gen, rev, &stubExtractor{}, DefaultConfig())

	res, err := w.Solve(context.Background(), additionRequest())

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StatusError, res.Status())
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Solution)
	assert.Empty(t, rev.inputs, "reviewer must not be called")
	assert.Equal(t, "generation", StageOf(err))
}

func TestWorkflow_ReviewErrorHidesUnreviewedSolution(t *testing.T) {
	gen := &capturingGenerator{}
	rev := &scriptedReviewer{err: errors.New("auth failed")}
	w := NewWorkflow(gen, rev, &stubExtractor{}, DefaultConfig())

	res, err := w.Solve(context.Background(), additionRequest())

	var revErr *ReviewError
	require.ErrorAs(t, err, &revErr)
	assert.Equal(t, 1, revErr.Attempt)
	assert.Empty(t, res.Solution)
	assert.Equal(t, 1, gen.calls())
}

func TestWorkflow_PlainGeneratorErrorIsWrapped(t *testing.T) {
	gen := &capturingGenerator{errAt: map[int]error{2: errors.New("plain")}}
	rev := &scriptedReviewer{verdicts: []Verdict{{Reason: "bad"}}}
	w := NewWorkflow(gen, rev, &stubExtractor{}, DefaultConfig())

	res, err := w.Solve(context.Background(), additionRequest())

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempt)
	assert.Equal(t, 2, res.Attempts)
}

func TestWorkflow_ExtractionOnPassWithIncompleteKnowledge(t *testing.T) {
	req := additionRequest()
	req.KnowledgeIncomplete = true
	req.Points = append(req.Points,
		knowledge.View{ID: 2, Subject: "math", Chapter: "arithmetic", Section: "integers", Item: "subtraction"},
		knowledge.View{Subject: "math", Chapter: "arithmetic", Section: "integers", Item: "counting"},
	)
	ext := &stubExtractor{res: knowledge.ExtractionResult{
		UsedExisting: []int{1},
		New:          []knowledge.Draft{{Subject: "math", Chapter: "arithmetic", Section: "integers", Item: "commutativity"}},
	}}
	obs := &recordingObserver{}
	w := NewWorkflow(&capturingGenerator{}, &scriptedReviewer{verdicts: []Verdict{{Passed: true, Reason: "ok"}}}, ext, DefaultConfig(), WithObserver(obs))

	res, err := w.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, ext.calls)
	assert.True(t, res.Extracted)
	require.Len(t, res.KnowledgePointsUsed, 2)
	assert.Equal(t, 1, res.KnowledgePointsUsed[0].ID)
	assert.Equal(t, "counting", res.KnowledgePointsUsed[1].Item)
	require.Len(t, res.NewKnowledgePoints, 1)
	assert.Equal(t, []string{ExtractionOK}, obs.extractions)
	assert.Equal(t, []string{StatusSuccess}, obs.solves)
	assert.Equal(t, []bool{true}, obs.reviews)
}

func TestWorkflow_EmptyKnowledgeNeverExtracts(t *testing.T) {
	ext := &stubExtractor{}
	w := NewWorkflow(&capturingGenerator{}, &scriptedReviewer{verdicts: []Verdict{{Passed: true}}}, ext, DefaultConfig())

	res, err := w.Solve(context.Background(), Request{Question: "q", KnowledgeIncomplete: true})
	require.NoError(t, err)
	assert.True(t, res.ReviewPassed)
	assert.Zero(t, ext.calls)
}

func TestWorkflow_ExtractionFailureIsAbsorbed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	req := additionRequest()
	req.KnowledgeIncomplete = true
	ext := &stubExtractor{err: errors.New("extractor down")}
	obs := &recordingObserver{}
	w := NewWorkflow(&capturingGenerator{}, &scriptedReviewer{verdicts: []Verdict{{Passed: true, Reason: "ok"}}}, ext,
		DefaultConfig(), WithLogger(zap.New(core)), WithObserver(obs))

	res, err := w.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status())
	assert.True(t, res.ReviewPassed)
	assert.False(t, res.Extracted)
	assert.Equal(t, req.Points, res.KnowledgePointsUsed)
	assert.Equal(t, []string{ExtractionError}, obs.extractions)
	assert.Equal(t, 1, logs.FilterMessageSnippet("knowledge extraction failed").Len())
}

func TestWorkflow_ConfigurableMaxAttempts(t *testing.T) {
	gen := &capturingGenerator{}
	rev := &scriptedReviewer{verdicts: []Verdict{{Reason: "a"}, {Reason: "b"}, {Reason: "c"}, {Reason: "d"}, {Reason: "e"}}}
	w := NewWorkflow(gen, rev, &stubExtractor{}, Config{MaxAttempts: 5})

	res, err := w.Solve(context.Background(), additionRequest())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, "e", res.ReviewReason)
	assert.Equal(t, 5, gen.calls())
	assert.Equal(t, 5, w.MaxAttempts())
}

func TestWorkflow_CancelledContext(t *testing.T) {
	gen := &capturingGenerator{}
	w := NewWorkflow(gen, &scriptedReviewer{}, &stubExtractor{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := w.Solve(ctx, additionRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusError, res.Status())
	assert.Zero(t, gen.calls())
}

func TestWorkflow_ConcurrentSolvesAreIndependent(t *testing.T) {
	rev := reviewerFunc(func(in ReviewInput) Verdict {
		// Each question passes on the attempt encoded in its text.
		var want int
		fmt.Sscanf(in.Question, "pass on %d", &want)
		return Verdict{Passed: in.Attempt == want, Reason: fmt.Sprintf("%s/attempt %d", in.Question, in.Attempt)}
	})
	gen := &capturingGenerator{}
	w := NewWorkflow(gen, rev, &stubExtractor{}, DefaultConfig())

	var wg sync.WaitGroup
	results := make([]*Result, 30)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := additionRequest()
			req.Question = fmt.Sprintf("pass on %d", i%3+1)
			results[i], _ = w.Solve(context.Background(), req)
		}()
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, i%3+1, res.Attempts, "result %d", i)
		assert.True(t, res.ReviewPassed, "result %d", i)
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	for _, in := range gen.inputs {
		if in.Attempt > 1 {
			assert.Equal(t, fmt.Sprintf("%s/attempt %d", in.Question, in.Attempt-1), in.PriorReviewReason)
		}
	}
}

type reviewerFunc func(ReviewInput) Verdict

func (f reviewerFunc) Review(_ context.Context, in ReviewInput) (Verdict, error) {
	return f(in), nil
}
