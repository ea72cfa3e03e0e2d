package solving

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion is returned for a request without question text.
	ErrEmptyQuestion = errors.New("question text is required")

	// ErrNoKnowledgePoints is returned by Request.Validate when no
	// knowledge point references were supplied.
	ErrNoKnowledgePoints = errors.New("at least one knowledge point is required")

	// ErrInvalidTransition reports an event that is not legal in the
	// current phase.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// GenerationError reports that the model call producing a solution failed
// outright. It aborts the solve and does not count as a failed review.
type GenerationError struct {
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("solution generation failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Stage names the workflow stage that failed.
func (e *GenerationError) Stage() string { return "generation" }

// ReviewError reports that the reviewing model call failed outright. A
// review that merely rejects the solution is not an error.
type ReviewError struct {
	Attempt int
	Err     error
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("solution review failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *ReviewError) Unwrap() error { return e.Err }

// Stage names the workflow stage that failed.
func (e *ReviewError) Stage() string { return "review" }

// StageOf returns the stage name carried by a workflow error, or "" for
// errors from elsewhere.
func StageOf(err error) string {
	var staged interface{ Stage() string }
	if errors.As(err, &staged) {
		return staged.Stage()
	}
	return ""
}
