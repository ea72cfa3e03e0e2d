package solving

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

// DefaultMaxAttempts is the number of generations a solve may use.
const DefaultMaxAttempts = 3

// Phase is a state of the solve workflow.
type Phase int

const (
	PhaseSolving Phase = iota
	PhaseReviewing
	PhaseExtracting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSolving:
		return "solving"
	case PhaseReviewing:
		return "reviewing"
	case PhaseExtracting:
		return "extracting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// EventKind identifies what happened in a step.
type EventKind int

const (
	EventGenerated EventKind = iota
	EventReviewed
	EventExtracted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventGenerated:
		return "generated"
	case EventReviewed:
		return "reviewed"
	case EventExtracted:
		return "extracted"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is the outcome of one workflow step.
type Event struct {
	Kind       EventKind
	Solution   string                     // EventGenerated
	Verdict    Verdict                    // EventReviewed
	Extraction knowledge.ExtractionResult // EventExtracted
	Err        error                      // EventFailed; on EventExtracted, a non-fatal extraction failure
}

// Verdict is a reviewer's judgment of one solution.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// Request is the input of one solve.
type Request struct {
	Question      string
	Points        []knowledge.View
	CorrectAnswer string

	// KnowledgeIncomplete is set by the caller when the points are known
	// not to cover the question. Only then does a passed solve run
	// extraction.
	KnowledgeIncomplete bool
}

// Validate checks the request as accepted by caller-facing entrypoints.
// The workflow itself tolerates an empty point set.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Points) == 0 {
		return ErrNoKnowledgePoints
	}
	return nil
}

// State is the working record of one solve. It is a value: Transition
// returns a new State and never mutates its argument.
type State struct {
	Question      string
	Points        []knowledge.View
	CorrectAnswer string
	Incomplete    bool

	// Solution is the latest generated solution, overwritten on retry.
	Solution string

	// Review is nil until the current Solution has been reviewed.
	Review *Verdict

	// Attempts is the 1-based number of the current generation.
	Attempts int

	Phase Phase
	Err   error

	// Extraction is set only when extraction ran and succeeded.
	Extraction *knowledge.ExtractionResult
	// ExtractionErr records a failed extraction, which does not fail the solve.
	ExtractionErr error
}

// NewState returns the initial state for req: solving, attempt 1.
func NewState(req Request) State {
	return State{
		Question:      req.Question,
		Points:        slices.Clone(req.Points),
		CorrectAnswer: req.CorrectAnswer,
		Incomplete:    req.KnowledgeIncomplete,
		Attempts:      1,
		Phase:         PhaseSolving,
	}
}

// Transition applies ev to s and returns the resulting state.
//
//	solving    --generated-->  reviewing
//	reviewing  --reviewed-->   solving     (rejected, attempts < max; attempts+1)
//	reviewing  --reviewed-->   extracting  (passed, incomplete, points non-empty)
//	reviewing  --reviewed-->   done        (otherwise)
//	extracting --extracted-->  done
//	any non-terminal --failed--> failed
func Transition(s State, ev Event, maxAttempts int) (State, error) {
	if s.Phase.Terminal() {
		return s, fmt.Errorf("%w: %s in terminal phase %s", ErrInvalidTransition, ev.Kind, s.Phase)
	}

	next := s
	switch {
	case ev.Kind == EventFailed:
		next.Err = ev.Err
		next.Phase = PhaseFailed

	case s.Phase == PhaseSolving && ev.Kind == EventGenerated:
		next.Solution = ev.Solution
		next.Review = nil
		next.Phase = PhaseReviewing

	case s.Phase == PhaseReviewing && ev.Kind == EventReviewed:
		v := ev.Verdict
		next.Review = &v
		switch {
		case !v.Passed && s.Attempts < maxAttempts:
			next.Attempts = s.Attempts + 1
			next.Phase = PhaseSolving
		case v.Passed && s.Incomplete && len(s.Points) > 0:
			next.Phase = PhaseExtracting
		default:
			next.Phase = PhaseDone
		}

	case s.Phase == PhaseExtracting && ev.Kind == EventExtracted:
		if ev.Err != nil {
			next.ExtractionErr = ev.Err
		} else {
			x := ev.Extraction
			next.Extraction = &x
		}
		next.Phase = PhaseDone

	default:
		return s, fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, ev.Kind, s.Phase)
	}

	return next, nil
}
