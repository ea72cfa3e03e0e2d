// Package solving runs the generate → review → retry → extract loop that
// produces a reviewed solution for a wrong-answer question.
//
// The loop is an explicit state machine: Transition is a pure function
// over State values and Workflow.Solve is the driver that calls the
// generator, reviewer and extractor for the current phase. Each Solve call
// owns its State; a Workflow is safe for concurrent use.
package solving
