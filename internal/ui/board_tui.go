package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/dnd"
	"github.com/josephgoksu/PlanWing/internal/mutation"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// Layout constants
const (
	MinColumnWidth = 28
	MaxNoteWidth   = 40
)

type boardKeyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Pick     key.Binding
	Cancel   key.Binding
	Complete key.Binding
	Generate key.Binding
	Retry    key.Binding
	Dismiss  key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func newBoardKeyMap() boardKeyMap {
	return boardKeyMap{
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "task")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "task")),
		Pick:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pick/drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "done/reopen")),
		Generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "next week")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Dismiss:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Refresh:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pick, k.Complete, k.Generate, k.Retry, k.Dismiss, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Pick, k.Cancel, k.Complete, k.Generate},
		{k.Retry, k.Dismiss, k.Refresh, k.Quit},
	}
}

// MsgMutationDone reports a finished server call started from the board.
type MsgMutationDone struct {
	Op   string
	Task task.Task
	Err  error
}

// MsgRefreshed reports a finished reload.
type MsgRefreshed struct {
	Err error
}

// MsgWeekGenerated reports a generated week.
type MsgWeekGenerated struct {
	Week task.Week
	Err  error
}

// BoardModel is the interactive board: one column per container, keyboard
// drag-and-drop between them.
type BoardModel struct {
	ctx   context.Context
	board *app.Board
	view  app.View

	col, row int
	width    int
	inFlight int
	status   string

	keys    boardKeyMap
	help    help.Model
	spinner spinner.Model
}

// NewBoardModel creates the model over an already loaded board.
func NewBoardModel(ctx context.Context, board *app.Board) BoardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StylePrimary
	return BoardModel{
		ctx:     ctx,
		board:   board,
		view:    board.View(),
		width:   120,
		keys:    newBoardKeyMap(),
		help:    help.New(),
		spinner: s,
	}
}

// RunBoard runs the interactive board until the user quits.
func RunBoard(ctx context.Context, board *app.Board) error {
	p := tea.NewProgram(NewBoardModel(ctx, board), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running board: %w", err)
	}
	return nil
}

func (m BoardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MsgMutationDone:
		m.inFlight--
		if msg.Err == nil {
			m.status = fmt.Sprintf("%s: task %d", msg.Op, msg.Task.ID)
		} else if errors.Is(msg.Err, mutation.ErrStale) {
			m.status = "change discarded after reload"
		} else {
			m.status = ""
		}
		m.sync()
		return m, nil

	case MsgRefreshed:
		m.inFlight--
		m.status = "board reloaded"
		if msg.Err != nil {
			m.status = "reload failed: " + msg.Err.Error()
		}
		m.sync()
		return m, nil

	case MsgWeekGenerated:
		m.inFlight--
		if msg.Err != nil {
			m.status = "generate failed: " + msg.Err.Error()
		} else {
			m.status = "generated week of " + msg.Week.WeekStart
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m BoardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.row = 0
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(m.view.Columns)-1 {
			m.col++
			m.row = 0
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.current().Tasks)-1 {
			m.row++
		}

	case key.Matches(msg, m.keys.Pick):
		return m.pickOrDrop()

	case key.Matches(msg, m.keys.Cancel):
		m.board.Drag().Cancel()
		m.status = ""

	case key.Matches(msg, m.keys.Complete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		status := task.StatusClosed
		if t.IsDone() {
			status = task.StatusOpened
		}
		pending, err := m.board.StartUpdateTask(m.ctx, t.ID, task.Changes{Status: &status})
		return m.started("updated", pending, err)

	case key.Matches(msg, m.keys.Generate):
		m.inFlight++
		m.status = "generating week..."
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			w, err := board.GenerateNextWeek(ctx)
			return MsgWeekGenerated{Week: w, Err: err}
		}

	case key.Matches(msg, m.keys.Retry):
		if m.board.LastError() == nil {
			return m, nil
		}
		m.inFlight++
		m.status = "retrying..."
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			t, err := board.Retry(ctx)
			return MsgMutationDone{Op: "retried", Task: t, Err: err}
		}

	case key.Matches(msg, m.keys.Dismiss):
		m.board.Dismiss()
		m.sync()

	case key.Matches(msg, m.keys.Refresh):
		m.inFlight++
		m.status = "reloading..."
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			return MsgRefreshed{Err: board.Refresh(ctx)}
		}
	}
	return m, nil
}

func (m BoardModel) pickOrDrop() (tea.Model, tea.Cmd) {
	if _, dragging := m.board.Drag().InFlight(); !dragging {
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if t.IsPlaceholder() {
			m.status = "task is still being saved"
			return m, nil
		}
		m.board.Drag().Pick(dnd.Payload{TaskID: t.ID, From: m.current().Container})
		m.status = fmt.Sprintf("moving task %d: choose a column and press space", t.ID)
		return m, nil
	}

	pending, moved, err := m.board.StartDrop(m.ctx, m.current().Container)
	if err == nil && !moved {
		m.status = "nothing to move"
		return m, nil
	}
	return m.started("moved", pending, err)
}

// started renders the optimistic state of a pending mutation and waits for
// the server in a command.
func (m BoardModel) started(op string, pending *mutation.Pending, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.status = ""
		m.sync()
		return m, nil
	}
	m.inFlight++
	m.status = op + "..."
	m.sync()
	ctx := m.ctx
	return m, func() tea.Msg {
		t, err := pending.Wait(ctx)
		return MsgMutationDone{Op: op, Task: t, Err: err}
	}
}

// sync re-reads the board and keeps the cursor in range.
func (m *BoardModel) sync() {
	m.view = m.board.View()
	if m.col >= len(m.view.Columns) {
		m.col = len(m.view.Columns) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	if n := len(m.current().Tasks); m.row >= n {
		m.row = max(n-1, 0)
	}
}

func (m BoardModel) current() app.Column {
	if m.col < 0 || m.col >= len(m.view.Columns) {
		return app.Column{}
	}
	return m.view.Columns[m.col]
}

func (m BoardModel) selected() (task.Task, bool) {
	tasks := m.current().Tasks
	if m.row < 0 || m.row >= len(tasks) {
		return task.Task{}, false
	}
	return tasks[m.row], true
}

func (m BoardModel) visibleColumns() (int, int) {
	n := max(m.width/MinColumnWidth, 1)
	start := 0
	if m.col >= n {
		start = m.col - n + 1
	}
	end := min(start+n, len(m.view.Columns))
	return start, end
}

func (m BoardModel) View() string {
	var sb strings.Builder

	name := m.view.Sprint.Name
	if name == "" {
		name = fmt.Sprintf("Sprint %d", m.view.Sprint.ID)
	}
	sb.WriteString(StyleHeader.Render(name) + " " + SprintBadge(m.view.Sprint.Status))
	if m.view.Offline {
		sb.WriteString(" " + StyleWarning.Render("offline"))
	}
	sb.WriteString("\n\n")

	payload, dragging := m.board.Drag().InFlight()
	start, end := m.visibleColumns()
	colWidth := max(m.width/max(end-start, 1)-2, MinColumnWidth-2)

	var cols []string
	for i := start; i < end; i++ {
		col := m.view.Columns[i]
		var body strings.Builder
		body.WriteString(ColumnTitle(col) + "\n")
		if len(col.Tasks) == 0 {
			body.WriteString(StyleSubtle.Render("(empty)"))
		}
		for j, t := range col.Tasks {
			cursor := "  "
			if i == m.col && j == m.row {
				cursor = StylePrimary.Render("▶ ")
			}
			if dragging && payload.TaskID == t.ID {
				cursor = StyleWarning.Render("✥ ")
			}
			line := cursor + taskLine(t, colWidth-4)
			if label := m.view.Labels[t.ID]; label != "" {
				line += "\n    " + StyleCarried.Render("↪ "+Truncate(label, colWidth-6))
			}
			body.WriteString(line + "\n")
		}

		style := StyleColumn
		switch {
		case i == m.col:
			style = StyleColumnFocused
		case col.Closed():
			style = StyleColumnClosed
		}
		cols = append(cols, style.Width(colWidth).Render(body.String()))
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n")
	if start > 0 || end < len(m.view.Columns) {
		sb.WriteString(StyleSubtle.Render(fmt.Sprintf("columns %d-%d of %d", start+1, end, len(m.view.Columns))) + "\n")
	}

	if m.inFlight > 0 {
		sb.WriteString(m.spinner.View() + " ")
	}
	if m.status != "" {
		sb.WriteString(StyleSubtle.Render(m.status))
	}
	sb.WriteString("\n")
	if m.view.LastError != "" {
		sb.WriteString(StylePrefixError.Render("✗ "+m.view.LastError) + StyleSubtle.Render("  r retry • x dismiss") + "\n")
	}
	sb.WriteString(m.help.View(m.keys) + "\n")
	return sb.String()
}

func taskLine(t task.Task, width int) string {
	mark := "○"
	style := StyleText
	if t.IsDone() {
		mark = StyleSuccess.Render("✓")
		style = StyleSubtle
	}
	note := t.Note
	if note == "" {
		note = fmt.Sprintf("task %d", t.ID)
	}
	if t.IsPlaceholder() {
		note += " (saving)"
	}
	return mark + " " + style.Render(Truncate(note, min(width, MaxNoteWidth)))
}
