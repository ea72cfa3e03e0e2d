// Package knowledge models curriculum knowledge points and the LLM-backed
// helpers that relate questions and solutions to them.
package knowledge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// KnowledgePoint is an atomic curriculum concept. Its identity is the
// (subject, chapter, section, item) tuple; ID is a surrogate key.
type KnowledgePoint struct {
	ID        int       `json:"id"`
	Subject   string    `json:"subject"`
	Chapter   string    `json:"chapter"`
	Section   string    `json:"section"`
	Item      string    `json:"item"`
	Details   string    `json:"details,omitempty"`
	MarkCount int       `json:"mark_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the natural key of the point.
func (kp *KnowledgePoint) Identity() Identity {
	return Identity{Subject: kp.Subject, Chapter: kp.Chapter, Section: kp.Section, Item: kp.Item}
}

// View returns the prompt-facing projection of the point.
func (kp *KnowledgePoint) View() View {
	return View{
		ID:      kp.ID,
		Subject: kp.Subject,
		Chapter: kp.Chapter,
		Section: kp.Section,
		Item:    kp.Item,
		Details: kp.Details,
	}
}

// Identity is the natural key of a knowledge point.
type Identity struct {
	Subject string
	Chapter string
	Section string
	Item    string
}

// ErrIncompleteIdentity is returned when any identity component is blank.
var ErrIncompleteIdentity = errors.New("knowledge point identity requires subject, chapter, section and item")

// Normalize trims surrounding whitespace from every component.
func (id Identity) Normalize() Identity {
	return Identity{
		Subject: strings.TrimSpace(id.Subject),
		Chapter: strings.TrimSpace(id.Chapter),
		Section: strings.TrimSpace(id.Section),
		Item:    strings.TrimSpace(id.Item),
	}
}

// Validate reports ErrIncompleteIdentity if a component is blank after
// trimming.
func (id Identity) Validate() error {
	n := id.Normalize()
	if n.Subject == "" || n.Chapter == "" || n.Section == "" || n.Item == "" {
		return ErrIncompleteIdentity
	}
	return nil
}

// Path renders the identity as "subject/chapter/section: item".
func (id Identity) Path() string {
	return fmt.Sprintf("%s/%s/%s: %s", id.Subject, id.Chapter, id.Section, id.Item)
}

// View is the knowledge point as seen by prompts and solve requests.
// ID is 0 for inline references that have not been persisted.
type View struct {
	ID      int    `json:"id,omitempty"`
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
	Section string `json:"section"`
	Item    string `json:"item"`
	Details string `json:"details,omitempty"`
}

// Identity returns the natural key of the view.
func (v View) Identity() Identity {
	return Identity{Subject: v.Subject, Chapter: v.Chapter, Section: v.Section, Item: v.Item}
}

// Draft is a proposed knowledge point that has not been persisted.
type Draft struct {
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
	Section string `json:"section"`
	Item    string `json:"item"`
	Details string `json:"details,omitempty"`
}

// Identity returns the normalized natural key of the draft.
func (d Draft) Identity() Identity {
	return Identity{Subject: d.Subject, Chapter: d.Chapter, Section: d.Section, Item: d.Item}.Normalize()
}

// Normalize returns the draft with trimmed identity and details.
func (d Draft) Normalize() Draft {
	id := d.Identity()
	return Draft{
		Subject: id.Subject,
		Chapter: id.Chapter,
		Section: id.Section,
		Item:    id.Item,
		Details: strings.TrimSpace(d.Details),
	}
}

// Category is a (subject, chapter, section) triple used to bucket points.
type Category struct {
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
	Section string `json:"section"`
}

func (c Category) String() string {
	return c.Subject + "/" + c.Chapter + "/" + c.Section
}
