// Package confirm is the terminal prompt that lets a user veto extracted
// knowledge points before they are marked.
package confirm

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/ui/theme"
)

// Selection is what the user kept.
type Selection struct {
	ExistingIDs []int
	Drafts      []knowledge.Draft
	Cancelled   bool
}

// Empty reports whether nothing was kept.
func (s Selection) Empty() bool {
	return len(s.ExistingIDs) == 0 && len(s.Drafts) == 0
}

type item struct {
	id      int // 0 for drafts
	draft   knowledge.Draft
	label   string
	checked bool
}

func (it item) isNew() bool { return it.id == 0 }

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.All, k.Confirm, k.Cancel}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys("space"), key.WithHelp("space", "toggle")),
		All:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc/q", "cancel")),
	}
}

// Model lists the points a solve used and proposed, each with a checkbox.
// Everything starts checked.
type Model struct {
	question string
	items    []item
	cursor   int
	done     bool
	result   Selection
	keys     keyMap
	help     help.Model
}

// New creates the prompt.
func New(question string, used []knowledge.View, proposed []knowledge.Draft) Model {
	items := make([]item, 0, len(used)+len(proposed))
	for _, v := range used {
		items = append(items, item{id: v.ID, label: v.Identity().Path(), checked: true})
	}
	for _, d := range proposed {
		items = append(items, item{draft: d, label: d.Identity().Path(), checked: true})
	}
	return Model{
		question: question,
		items:    items,
		keys:     defaultKeys(),
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(kmsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(kmsg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(kmsg, m.keys.Toggle):
		if m.cursor < len(m.items) {
			m.update(func(i int, it *item) {
				if i == m.cursor {
					it.checked = !it.checked
				}
			})
		}
	case key.Matches(kmsg, m.keys.All):
		all := !m.allChecked()
		m.update(func(_ int, it *item) { it.checked = all })
	case key.Matches(kmsg, m.keys.Confirm):
		m.done = true
		m.result = m.selection()
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.Cancel):
		m.done = true
		m.result = Selection{Cancelled: true}
		return m, tea.Quit
	}
	return m, nil
}

// update applies fn to a copy of the items. Earlier copies of the model
// share the old slice and must not observe the change.
func (m *Model) update(fn func(i int, it *item)) {
	items := make([]item, len(m.items))
	copy(items, m.items)
	for i := range items {
		fn(i, &items[i])
	}
	m.items = items
}

func (m Model) allChecked() bool {
	for _, it := range m.items {
		if !it.checked {
			return false
		}
	}
	return true
}

func (m Model) selection() Selection {
	var s Selection
	for _, it := range m.items {
		switch {
		case !it.checked:
		case it.isNew():
			s.Drafts = append(s.Drafts, it.draft)
		default:
			s.ExistingIDs = append(s.ExistingIDs, it.id)
		}
	}
	return s
}

// Result returns the selection once the prompt has finished.
func (m Model) Result() (Selection, bool) {
	return m.result, m.done
}

func (m Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Confirm knowledge points"))
	b.WriteString("\n")
	if m.question != "" {
		b.WriteString(theme.Hint.Render(truncate(m.question, 72)))
		b.WriteString("\n")
	}

	section := func(title string, isNew bool) {
		first := true
		for i, it := range m.items {
			if it.isNew() != isNew {
				continue
			}
			if first {
				b.WriteString("\n" + theme.Heading.Render(title) + "\n")
				first = false
			}
			b.WriteString(m.line(i, it) + "\n")
		}
	}
	section("Used", false)
	section("Proposed", true)

	if len(m.items) == 0 {
		b.WriteString("\n" + theme.Dim.Render("Nothing to confirm.") + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Model) line(i int, it item) string {
	box := "[ ]"
	if it.checked {
		box = "[x]"
	}
	prefix := "  "
	style := theme.Unselected
	if i == m.cursor {
		prefix = "▸ "
		style = theme.Selected
	}
	label := it.label
	if it.isNew() {
		label += " " + theme.New.Render("(new)")
	} else {
		label += " " + theme.Dim.Render(fmt.Sprintf("#%d", it.id))
	}
	return style.Render(prefix+box+" ") + label
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run shows the prompt and blocks until the user confirms or cancels. With
// nothing to confirm it returns an empty selection without prompting.
func Run(ctx context.Context, question string, used []knowledge.View, proposed []knowledge.Draft, opts ...tea.ProgramOption) (Selection, error) {
	if len(used) == 0 && len(proposed) == 0 {
		return Selection{}, nil
	}
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(New(question, used, proposed), opts...).Run()
	if err != nil {
		return Selection{}, fmt.Errorf("confirm prompt: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Selection{}, fmt.Errorf("confirm prompt: unexpected model %T", final)
	}
	sel, done := m.Result()
	if !done {
		return Selection{Cancelled: true}, nil
	}
	return sel, nil
}
