package solving

import (
	"fmt"
	"strings"

	"github.com/abhisek/mistakebook/internal/knowledge"
)

const generatorSystemPrompt = `You are a patient tutor writing worked solutions for students reviewing questions they got wrong.

Rules:
- Solve the question step by step and state the final answer clearly at the end.
- When knowledge points are listed, say explicitly which of them each step uses.
- Show intermediate results so a reviewer can check every calculation.
- If a previous attempt was rejected, fix the problem the reviewer described instead of repeating it.`

const reviewerSystemPrompt = `You are a strict reviewer of worked solutions.

Check whether the solution is correct:
1. Is the reasoning correct?
2. Is an appropriate method used?
3. Are there calculation errors?
4. Are there conceptual errors?

Set passed to true only if the solution is fully correct. Keep reason to a few sentences and name the first error you find.`

// buildGeneratorMessage renders the user message for one generation.
func buildGeneratorMessage(in GenerateInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question:\n%s\n\n", in.Question)

	switch {
	case len(in.Points) == 0:
		b.WriteString("No knowledge points are available for this question. Solve it from your own knowledge.\n")
	case in.KnowledgeIncomplete:
		b.WriteString("Reference knowledge points (may be incomplete):\n")
		writePoints(&b, in.Points, true)
		b.WriteString("\nThe list may be missing concepts. Bring in whatever else the solution needs and say so.\n")
	default:
		b.WriteString("Knowledge points (complete):\n")
		writePoints(&b, in.Points, true)
		b.WriteString("\nBase the solution strictly on the knowledge points above.\n")
	}

	if in.Attempt > 1 && in.PriorReviewReason != "" {
		fmt.Fprintf(&b, "\nThis is attempt %d. The previous solution was rejected by the reviewer:\n%s\nCorrect that problem in this attempt.\n",
			in.Attempt, in.PriorReviewReason)
	}

	return b.String()
}

// buildReviewerMessage renders the user message for one review.
func buildReviewerMessage(in ReviewInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question:\n%s\n\n", in.Question)

	if len(in.Points) > 0 {
		b.WriteString("Relevant knowledge points:\n")
		writePoints(&b, in.Points, false)
		b.WriteString("\n")
	}

	if strings.TrimSpace(in.CorrectAnswer) != "" {
		fmt.Fprintf(&b, "Reference answer:\n%s\n\n", in.CorrectAnswer)
	} else {
		b.WriteString("No reference answer is available. Judge the solution on its own reasoning.\n\n")
	}

	fmt.Fprintf(&b, "Solution to review:\n%s\n", in.Solution)
	return b.String()
}

func writePoints(b *strings.Builder, points []knowledge.View, withDetails bool) {
	for _, p := range points {
		b.WriteString("- ")
		if p.ID > 0 {
			fmt.Fprintf(b, "[%d] ", p.ID)
		}
		b.WriteString(p.Identity().Path())
		b.WriteString("\n")
		if withDetails && p.Details != "" {
			fmt.Fprintf(b, "  %s\n", p.Details)
		}
	}
}
