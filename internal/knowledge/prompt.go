package knowledge

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"text/template"
)

const extractionSystemPrompt = `You analyze worked solutions and identify the curriculum knowledge points they rely on.

Rules:
- Only report an existing knowledge point as used if the solution genuinely depends on it. Use the numeric IDs exactly as listed; never invent IDs.
- Propose a new knowledge point only when the solution needs a concept that is not already listed. Do not restate a listed point under a new name.
- Every new point needs subject, chapter, section and item. Keep details to one or two sentences.
- If nothing is missing, return an empty new_points array.`

var extractionUserTemplate = template.Must(template.New("extraction").Parse(`Question:
{{.Question}}

Solution:
{{.Solution}}
{{if .Existing}}
Existing knowledge points:
{{range .Existing}}- [{{.ID}}] {{.Subject}}/{{.Chapter}}/{{.Section}}: {{.Item}}{{if .Details}} - {{.Details}}{{end}}
{{end}}{{else}}
No knowledge points are on record for this question. Extract every key knowledge point the solution uses.
{{end}}`))

type extractionPromptData struct {
	Question string
	Solution string
	Existing []View
}

func buildExtractionMessage(question, solution string, existing []View) (string, error) {
	var buf bytes.Buffer
	err := extractionUserTemplate.Execute(&buf, extractionPromptData{
		Question: question,
		Solution: solution,
		Existing: existing,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

const classifySystemPrompt = `You classify exam questions into subject, chapter and section.
Give a confidence from 0 (guess) to 10 (certain).`

const completenessSystemPrompt = `You judge whether a list of knowledge points is sufficient to solve a question.
Set is_complete to true only if every concept the solution needs is covered.
Give a confidence from 0 to 10, list missing concepts, and keep reasoning brief.`

const categorySystemPrompt = `You match a question against a fixed list of knowledge categories.
Only return categories that appear in the list, copied exactly.`

func buildCompletenessMessage(question string, points []View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nKnowledge points:\n", question)
	for _, p := range points {
		fmt.Fprintf(&b, "- %s\n", p.Identity().Path())
	}
	return b.String()
}

// buildCategoryMessage renders the category list as CSV with a header row.
func buildCategoryMessage(question string, categories []Category) (string, error) {
	var csvBuf bytes.Buffer
	w := csv.NewWriter(&csvBuf)
	if err := w.Write([]string{"subject", "chapter", "section"}); err != nil {
		return "", err
	}
	for _, c := range categories {
		if err := w.Write([]string{c.Subject, c.Chapter, c.Section}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nCategories (CSV):\n%s", question, csvBuf.String())
	return b.String(), nil
}
