package solving

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

func pointsFixture() []knowledge.View {
	return []knowledge.View{{ID: 1, Subject: "math", Chapter: "arithmetic", Section: "integers", Item: "addition"}}
}

func reviewingState(attempts int, incomplete bool, points []knowledge.View) State {
	s := NewState(Request{Question: "2+2=?", Points: points, KnowledgeIncomplete: incomplete})
	s.Phase = PhaseReviewing
	s.Attempts = attempts
	s.Solution = "4"
	return s
}

func TestNewState(t *testing.T) {
	points := pointsFixture()
	s := NewState(Request{Question: "q", Points: points, CorrectAnswer: "a", KnowledgeIncomplete: true})

	assert.Equal(t, PhaseSolving, s.Phase)
	assert.Equal(t, 1, s.Attempts)
	assert.Nil(t, s.Review)
	assert.True(t, s.Incomplete)

	points[0].Item = "mutated"
	assert.Equal(t, "addition", s.Points[0].Item, "state must not share the caller's slice")
}

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		name         string
		state        State
		event        Event
		wantPhase    Phase
		wantAttempts int
	}{
		{
			name:         "generated moves to reviewing",
			state:        NewState(Request{Question: "q", Points: pointsFixture()}),
			event:        Event{Kind: EventGenerated, Solution: "s"},
			wantPhase:    PhaseReviewing,
			wantAttempts: 1,
		},
		{
			name:         "rejected with attempts left retries",
			state:        reviewingState(1, false, pointsFixture()),
			event:        Event{Kind: EventReviewed, Verdict: Verdict{Reason: "wrong"}},
			wantPhase:    PhaseSolving,
			wantAttempts: 2,
		},
		{
			name:         "rejected on last attempt is done",
			state:        reviewingState(3, true, pointsFixture()),
			event:        Event{Kind: EventReviewed, Verdict: Verdict{Reason: "still wrong"}},
			wantPhase:    PhaseDone,
			wantAttempts: 3,
		},
		{
			name:         "passed with complete knowledge is done",
			state:        reviewingState(2, false, pointsFixture()),
			event:        Event{Kind: EventReviewed, Verdict: Verdict{Passed: true}},
			wantPhase:    PhaseDone,
			wantAttempts: 2,
		},
		{
			name:         "passed with incomplete knowledge extracts",
			state:        reviewingState(1, true, pointsFixture()),
			event:        Event{Kind: EventReviewed, Verdict: Verdict{Passed: true}},
			wantPhase:    PhaseExtracting,
			wantAttempts: 1,
		},
		{
			name:         "passed without points never extracts",
			state:        reviewingState(1, true, nil),
			event:        Event{Kind: EventReviewed, Verdict: Verdict{Passed: true}},
			wantPhase:    PhaseDone,
			wantAttempts: 1,
		},
		{
			name:         "failure from reviewing",
			state:        reviewingState(2, false, pointsFixture()),
			event:        Event{Kind: EventFailed, Err: errors.New("boom")},
			wantPhase:    PhaseFailed,
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.state, tt.event, DefaultMaxAttempts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, next.Phase)
			assert.Equal(t, tt.wantAttempts, next.Attempts)
		})
	}
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	s := reviewingState(1, false, pointsFixture())
	next, err := Transition(s, Event{Kind: EventReviewed, Verdict: Verdict{Reason: "r"}}, DefaultMaxAttempts)
	require.NoError(t, err)

	assert.Nil(t, s.Review)
	assert.Equal(t, 1, s.Attempts)
	require.NotNil(t, next.Review)
	assert.Equal(t, "r", next.Review.Reason)
}

func TestTransition_GeneratedClearsReview(t *testing.T) {
	s := reviewingState(1, false, pointsFixture())
	s, err := Transition(s, Event{Kind: EventReviewed, Verdict: Verdict{Reason: "r"}}, DefaultMaxAttempts)
	require.NoError(t, err)
	require.Equal(t, PhaseSolving, s.Phase)

	s, err = Transition(s, Event{Kind: EventGenerated, Solution: "second"}, DefaultMaxAttempts)
	require.NoError(t, err)
	assert.Nil(t, s.Review)
	assert.Equal(t, "second", s.Solution)
}

func TestTransition_Extracted(t *testing.T) {
	s := reviewingState(1, true, pointsFixture())
	s.Phase = PhaseExtracting

	ok, err := Transition(s, Event{Kind: EventExtracted, Extraction: knowledge.ExtractionResult{UsedExisting: []int{1}}}, DefaultMaxAttempts)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, ok.Phase)
	require.NotNil(t, ok.Extraction)
	assert.Equal(t, []int{1}, ok.Extraction.UsedExisting)

	failed, err := Transition(s, Event{Kind: EventExtracted, Err: errors.New("down")}, DefaultMaxAttempts)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, failed.Phase)
	assert.Nil(t, failed.Extraction)
	assert.Error(t, failed.ExtractionErr)
}

func TestTransition_Invalid(t *testing.T) {
	_, err := Transition(NewState(Request{}), Event{Kind: EventReviewed}, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done := reviewingState(1, false, nil)
	done.Phase = PhaseDone
	_, err = Transition(done, Event{Kind: EventFailed, Err: errors.New("late")}, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_AttemptsNeverExceedMax(t *testing.T) {
	for maxAttempts := 1; maxAttempts <= 5; maxAttempts++ {
		s := NewState(Request{Question: "q", Points: pointsFixture()})
		generations := 0
		for !s.Phase.Terminal() {
			var ev Event
			if s.Phase == PhaseSolving {
				generations++
				ev = Event{Kind: EventGenerated, Solution: "s"}
			} else {
				ev = Event{Kind: EventReviewed, Verdict: Verdict{Reason: "no"}}
			}
			var err error
			s, err = Transition(s, ev, maxAttempts)
			require.NoError(t, err)
			require.LessOrEqual(t, s.Attempts, maxAttempts)
		}
		assert.Equal(t, maxAttempts, generations)
		assert.Equal(t, maxAttempts, s.Attempts)
	}
}

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{Points: pointsFixture()}.Validate(), ErrEmptyQuestion)
	assert.ErrorIs(t, Request{Question: "q"}.Validate(), ErrNoKnowledgePoints)
	assert.NoError(t, Request{Question: "q", Points: pointsFixture()}.Validate())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "extracting", PhaseExtracting.String())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseReviewing.Terminal())
}
