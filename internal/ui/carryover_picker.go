package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/josephgoksu/PlanWing/internal/carryover"
)

type pickerKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	None    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var pickerKeys = pickerKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Toggle:  key.NewBinding(key.WithKeys(" ", "space", "x")),
	All:     key.NewBinding(key.WithKeys("a")),
	None:    key.NewBinding(key.WithKeys("n")),
	Confirm: key.NewBinding(key.WithKeys("enter")),
	Cancel:  key.NewBinding(key.WithKeys("esc", "q", "ctrl+c")),
}

// CarryOverPicker is a checklist over the carry-over candidates of a closed
// week. Every candidate starts checked.
type CarryOverPicker struct {
	session   *carryover.Session
	cursor    int
	confirmed bool
	quitting  bool
}

// NewCarryOverPicker creates the checklist for s.
func NewCarryOverPicker(s *carryover.Session) CarryOverPicker {
	return CarryOverPicker{session: s}
}

// Confirmed reports whether the user accepted the selection.
func (m CarryOverPicker) Confirmed() bool { return m.confirmed }

func (m CarryOverPicker) Init() tea.Cmd {
	return nil
}

func (m CarryOverPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	candidates := m.session.Candidates()

	switch {
	case key.Matches(keyMsg, pickerKeys.Cancel):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, pickerKeys.Confirm):
		m.confirmed = true
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, pickerKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, pickerKeys.Down):
		if m.cursor < len(candidates)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, pickerKeys.Toggle):
		if m.cursor < len(candidates) {
			m.session.Toggle(candidates[m.cursor].Task.ID)
		}
	case key.Matches(keyMsg, pickerKeys.All):
		m.session.SelectAll()
	case key.Matches(keyMsg, pickerKeys.None):
		m.session.SelectNone()
	}
	return m, nil
}

func (m CarryOverPicker) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	src := m.session.Source()
	sb.WriteString(StyleSelectTitle.Render(fmt.Sprintf("Carry over from week of %s to %s", src.WeekStart, m.session.Target())))
	sb.WriteString("\n\n")

	candidates := m.session.Candidates()
	if len(candidates) == 0 {
		sb.WriteString(StyleSelectDim.Render("  Every task of this week is closed."))
		sb.WriteString("\n")
	}
	for i, c := range candidates {
		box := "[ ]"
		if c.Selected {
			box = StyleSuccess.Render("[✓]")
		}
		line := fmt.Sprintf("%s %s", box, taskNote(c.Task.Note, c.Task.ID))
		if c.Task.DayOfWeek != nil {
			line += StyleSelectDim.Render("  " + DayLabel(src.WeekStart, c.Task.DayOfWeek))
		}
		if i == m.cursor {
			sb.WriteString(StyleSelectActive.Render("▶ ") + line + "\n")
		} else {
			sb.WriteString("  " + StyleSelectNormal.Render(line) + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(StyleSelectDim.Render(fmt.Sprintf("%d of %d selected • space toggle • a all • n none • enter confirm • esc cancel",
		len(m.session.Selection()), len(candidates))))
	sb.WriteString("\n")
	return sb.String()
}

func taskNote(note string, id int64) string {
	if note == "" {
		return fmt.Sprintf("task %d", id)
	}
	return Truncate(note, MaxNoteWidth)
}

// PromptCarryOver lets the user edit the selection of s. It reports false
// when the user cancelled.
func PromptCarryOver(s *carryover.Session) (bool, error) {
	p := tea.NewProgram(NewCarryOverPicker(s))
	finalModel, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("error running carry-over picker: %w", err)
	}
	picker, ok := finalModel.(CarryOverPicker)
	if !ok {
		return false, fmt.Errorf("unexpected model type")
	}
	return picker.Confirmed(), nil
}
